package service

import (
	"context"

	"emcs/internal/arc"
)

// ReferenceLookup adapts a Store to the reference code uniqueness check.
type ReferenceLookup struct {
	Store interface {
		Exists(ctx context.Context, reference string) (bool, error)
	}
}

func (l ReferenceLookup) Exists(ctx context.Context, code arc.Code) (bool, error) {
	return l.Store.Exists(ctx, code.String())
}
