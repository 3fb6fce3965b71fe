package store

import (
	"context"
	"sort"
	"sync"

	"emcs/internal/consignment/models"
	id "emcs/pkg/domain"
	"emcs/pkg/platform/sentinel"
)

type storedEvent struct {
	event     *models.MovementEvent
	published bool
}

// InMemory keeps consignments and events in process memory.
type InMemory struct {
	mu           sync.RWMutex
	consignments map[string]*models.Consignment
	events       map[string][]*storedEvent
	order        []*storedEvent
	locks        referenceLocks
}

func NewInMemory() *InMemory {
	return &InMemory{
		consignments: make(map[string]*models.Consignment),
		events:       make(map[string][]*storedEvent),
	}
}

// Create inserts c together with its creation event. A duplicate reference
// yields sentinel.ErrConflict.
func (s *InMemory) Create(_ context.Context, c *models.Consignment, event *models.MovementEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.consignments[c.Reference]; ok {
		return sentinel.ErrConflict
	}
	stored := c.Clone()
	stored.Version = 1
	c.Version = 1
	s.consignments[c.Reference] = stored
	s.appendLocked(event)
	return nil
}

func (s *InMemory) appendLocked(event *models.MovementEvent) {
	if event == nil {
		return
	}
	e := *event
	se := &storedEvent{event: &e}
	s.events[e.Reference] = append(s.events[e.Reference], se)
	s.order = append(s.order, se)
}

func (s *InMemory) FindByReference(_ context.Context, reference string) (*models.Consignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.consignments[reference]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *InMemory) Exists(_ context.Context, reference string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.consignments[reference]
	return ok, nil
}

// ListByParty returns consignments where party is sender or receiver, oldest first.
func (s *InMemory) ListByParty(_ context.Context, party id.PartyID) ([]*models.Consignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Consignment, 0)
	for _, c := range s.consignments {
		if c.Involves(party) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Reference < out[j].Reference
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Execute runs fn against the consignment under the reference lock and
// persists the result with its event.
func (s *InMemory) Execute(ctx context.Context, reference string, fn MutateFunc) (*models.Consignment, error) {
	unlock, err := s.locks.lock(ctx, reference)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	event, err := fn(current)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	current.Version++
	s.consignments[reference] = current.Clone()
	s.appendLocked(event)
	return current, nil
}

// ListEvents returns the events for reference in timestamp order. An unknown
// reference yields an empty slice.
func (s *InMemory) ListEvents(_ context.Context, reference string) ([]*models.MovementEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.MovementEvent, 0, len(s.events[reference]))
	for _, se := range s.events[reference] {
		e := *se.event
		out = append(out, &e)
	}
	sortEvents(out)
	return out, nil
}

// PendingEvents returns up to limit unpublished events in append order.
func (s *InMemory) PendingEvents(_ context.Context, limit int) ([]*models.MovementEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.MovementEvent, 0)
	for _, se := range s.order {
		if se.published {
			continue
		}
		e := *se.event
		out = append(out, &e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *InMemory) MarkPublished(_ context.Context, ids []string) error {
	want := make(map[string]struct{}, len(ids))
	for _, i := range ids {
		want[i] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, se := range s.order {
		if _, ok := want[se.event.ID]; ok {
			se.published = true
		}
	}
	return nil
}

// sortEvents orders by timestamp; ties keep append order.
func sortEvents(events []*models.MovementEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
