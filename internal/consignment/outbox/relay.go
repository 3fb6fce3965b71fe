// Package outbox relays persisted movement events to downstream consumers.
//
// Events are written in the same store transaction as the state change they
// describe, so a relay that publishes and then marks them delivers every
// event at least once.
package outbox

import (
	"context"
	"log/slog"
	"time"

	"emcs/internal/consignment/metrics"
	"emcs/internal/consignment/models"
	"emcs/internal/platform/logger"
)

const (
	DefaultInterval  = time.Second
	DefaultBatchSize = 100
)

// Source is the outbox side of the consignment store.
type Source interface {
	PendingEvents(ctx context.Context, limit int) ([]*models.MovementEvent, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// Publisher delivers a batch of events. A batch is either fully accepted or
// the call fails and the batch is retried.
type Publisher interface {
	Publish(ctx context.Context, events []*models.MovementEvent) error
}

// Relay polls the source and forwards pending events to the publisher.
type Relay struct {
	source    Source
	publisher Publisher
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Relay)

func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		r.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Relay) {
		r.metrics = m
	}
}

func WithInterval(d time.Duration) Option {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRelay(source Source, publisher Publisher, opts ...Option) *Relay {
	if source == nil || publisher == nil {
		panic("outbox: source and publisher are required")
	}
	r := &Relay{
		source:    source,
		publisher: publisher,
		interval:  DefaultInterval,
		batchSize: DefaultBatchSize,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run flushes on every tick until ctx is cancelled. Publish failures are
// logged and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		if _, err := r.Flush(ctx); err != nil && ctx.Err() == nil {
			r.metrics.IncOutboxFailures()
			r.logger.WarnContext(ctx, "outbox flush failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Flush publishes pending events batch by batch until none remain and
// returns how many were published.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		events, err := r.source.PendingEvents(ctx, r.batchSize)
		if err != nil {
			return total, err
		}
		if len(events) == 0 {
			return total, nil
		}
		if err := r.publisher.Publish(ctx, events); err != nil {
			return total, err
		}
		ids := make([]string, len(events))
		for i, e := range events {
			ids[i] = e.ID
		}
		if err := r.source.MarkPublished(ctx, ids); err != nil {
			return total, err
		}
		total += len(events)
		r.metrics.AddOutboxPublished(len(events))
		r.logger.DebugContext(ctx, "outbox batch published", "count", len(events))
		if len(events) < r.batchSize {
			return total, nil
		}
	}
}
