// Package store persists consignments and their movement events.
//
// Every backend guarantees that Execute calls for the same reference are
// serialized, so at most one lifecycle transition per consignment is in
// flight at a time.
package store

import (
	"context"
	"sync"

	"emcs/internal/consignment/models"
	dErrors "emcs/pkg/domain-errors"
)

// MutateFunc receives a copy of the stored consignment, mutates it, and
// returns the event to append. Returning an error discards the mutation.
type MutateFunc func(c *models.Consignment) (*models.MovementEvent, error)

// numShards must stay a power of two for the modulo to spread evenly.
const numShards = 128

// referenceLocks serializes work per reference with sharded mutexes so that
// unrelated consignments rarely contend.
type referenceLocks struct {
	shards [numShards]sync.Mutex
}

func (l *referenceLocks) lock(ctx context.Context, reference string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	m := &l.shards[hashReference(reference)%numShards]
	m.Lock()
	if err := ctx.Err(); err != nil {
		m.Unlock()
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return m.Unlock, nil
}

// hashReference is FNV-1a.
func hashReference(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
