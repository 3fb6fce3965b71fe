package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type InMemoryStoreSuite struct {
	contractSuite
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	s.store = NewInMemory()
}

func (s *InMemoryStoreSuite) TestReturnedValuesAreCopies() {
	c := s.create("REF0000100", alice, bob)
	c.Status = "tampered"

	got, err := s.store.FindByReference(s.ctx, "REF0000100")
	s.Require().NoError(err)
	got.LedgerTransactionIDs[0] = "tampered"

	again, err := s.store.FindByReference(s.ctx, "REF0000100")
	s.Require().NoError(err)
	s.Equal("draft", string(again.Status))
	s.Equal("0xcreate-REF0000100", again.LedgerTransactionIDs[0])
}

func (s *InMemoryStoreSuite) TestCancelledContext() {
	s.create("REF0000101", alice, bob)
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := s.store.Execute(ctx, "REF0000101", s.dispatch("REF0000101", s.now))
	s.Error(err)
}
