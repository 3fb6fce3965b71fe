package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"emcs/internal/platform/logger"
	"emcs/pkg/platform/circuit"
	"emcs/pkg/platform/sentinel"
)

// GuardedClient fails fast while the backend is known to be down. Calls are
// rejected with sentinel.ErrUnavailable while the breaker is open, except for
// one probe per cooldown period.
type GuardedClient struct {
	next    Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuardedClient(next Client, breaker *circuit.Breaker, log *slog.Logger) *GuardedClient {
	if log == nil {
		log = logger.Discard()
	}
	return &GuardedClient{next: next, breaker: breaker, logger: log}
}

func (g *GuardedClient) SubmitOnce(ctx context.Context, op Operation, signer Signer) (TransactionID, error) {
	if err := g.admit(); err != nil {
		return "", err
	}
	id, err := g.next.SubmitOnce(ctx, op, signer)
	g.record(ctx, err)
	return id, err
}

func (g *GuardedClient) Query(ctx context.Context, filter Filter) ([]Event, error) {
	if err := g.admit(); err != nil {
		return nil, err
	}
	events, err := g.next.Query(ctx, filter)
	g.record(ctx, err)
	return events, err
}

func (g *GuardedClient) GetObject(ctx context.Context, id string) (*RawRecord, error) {
	if err := g.admit(); err != nil {
		return nil, err
	}
	rec, err := g.next.GetObject(ctx, id)
	g.record(ctx, err)
	return rec, err
}

func (g *GuardedClient) admit() error {
	if g.breaker.Allow() {
		return nil
	}
	return fmt.Errorf("ledger circuit %s open: %w", g.breaker.Name(), sentinel.ErrUnavailable)
}

// record counts only backend failures. A missing record is an answer.
func (g *GuardedClient) record(ctx context.Context, err error) {
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "ledger circuit closed", "circuit", g.breaker.Name())
		}
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.WarnContext(ctx, "ledger circuit opened", "circuit", g.breaker.Name(), "error", err)
	}
}
