package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/suite"

	"emcs/internal/arc"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemorySuite) TestReserve() {
	s.Run("first reservation wins", func() {
		ok, err := s.store.Reserve(s.ctx, arc.Code("25EU00000000000000011"))
		s.Require().NoError(err)
		s.True(ok)

		ok, err = s.store.Reserve(s.ctx, arc.Code("25EU00000000000000011"))
		s.Require().NoError(err)
		s.False(ok)
	})

	s.Run("exists after reservation", func() {
		exists, err := s.store.Exists(s.ctx, arc.Code("25EU00000000000000011"))
		s.Require().NoError(err)
		s.True(exists)

		exists, err = s.store.Exists(s.ctx, arc.Code("25EU99999999999999990"))
		s.Require().NoError(err)
		s.False(exists)
	})
}

func (s *InMemorySuite) TestConcurrentReservation() {
	const goroutines = 50
	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.store.Reserve(s.ctx, arc.Code("25EU12345678901234560")); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	s.Equal(int32(1), wins.Load())
}
