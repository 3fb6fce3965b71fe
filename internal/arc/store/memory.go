// Package store holds reference code reservation backends.
package store

import (
	"context"
	"sync"

	"emcs/internal/arc"
)

// InMemory reserves codes in a process-local set.
type InMemory struct {
	mu    sync.Mutex
	codes map[arc.Code]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{codes: make(map[arc.Code]struct{})}
}

// Reserve claims code; false means it was already claimed.
func (s *InMemory) Reserve(_ context.Context, code arc.Code) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.codes[code]; ok {
		return false, nil
	}
	s.codes[code] = struct{}{}
	return true, nil
}

// Exists reports whether code has been reserved.
func (s *InMemory) Exists(_ context.Context, code arc.Code) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.codes[code]
	return ok, nil
}
