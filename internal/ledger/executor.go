package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"emcs/internal/ledger/metrics"
	"emcs/internal/platform/logger"
	dErrors "emcs/pkg/domain-errors"
	"emcs/pkg/platform/sentinel"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

var tracer = otel.Tracer("emcs/internal/ledger")

// Executor wraps a Client with bounded retries and exponential backoff.
//
// Operations are assumed safe to resubmit: a submission that timed out on the
// caller's side may still have committed, and the retry will then record it a
// second time. Backends that cannot tolerate this must deduplicate on
// (Kind, Reference).
type Executor struct {
	client         Client
	maxAttempts    int
	baseDelay      time.Duration
	attemptTimeout time.Duration
	sleep          func(ctx context.Context, d time.Duration) error
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Executor)

func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) {
		e.metrics = m
	}
}

func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the wait after the first failed attempt. Each further
// failure doubles it.
func WithBaseDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.baseDelay = d
		}
	}
}

// WithAttemptTimeout bounds each individual attempt. A timed-out attempt
// counts as a failed attempt.
func WithAttemptTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.attemptTimeout = d
	}
}

// WithSleep replaces the backoff wait, mainly so tests can record delays.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) {
		e.sleep = fn
	}
}

// NewExecutor constructs an Executor around client.
func NewExecutor(client Client, opts ...Option) *Executor {
	if client == nil {
		panic("ledger: client is required")
	}
	e := &Executor{
		client:      client,
		maxAttempts: DefaultMaxAttempts,
		baseDelay:   DefaultBaseDelay,
		sleep:       sleepContext,
		logger:      logger.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Submit sends op to the ledger, retrying failed attempts.
func (e *Executor) Submit(ctx context.Context, op Operation, signer Signer) (TransactionID, error) {
	ctx, span := tracer.Start(ctx, "ledger.Submit")
	defer span.End()
	span.SetAttributes(
		attribute.String("ledger.kind", string(op.Kind)),
		attribute.String("ledger.reference", op.Reference),
	)

	if signer == nil {
		signer = NoSigner{}
	}
	var id TransactionID
	err := e.retry(ctx, "submission", func(ctx context.Context) error {
		var err error
		id, err = e.client.SubmitOnce(ctx, op, signer)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger submission failed")
		return "", err
	}
	span.SetAttributes(attribute.String("ledger.tx_id", string(id)))
	e.logger.InfoContext(ctx, "ledger transaction submitted",
		"kind", op.Kind,
		"reference", op.Reference,
		"tx_id", id,
	)
	return id, nil
}

// QueryEvents returns events matching filter. No match is an empty slice.
func (e *Executor) QueryEvents(ctx context.Context, filter Filter) ([]Event, error) {
	ctx, span := tracer.Start(ctx, "ledger.QueryEvents")
	defer span.End()

	var events []Event
	err := e.retry(ctx, "query", func(ctx context.Context) error {
		var err error
		events, err = e.client.Query(ctx, filter)
		return err
	})
	if errors.Is(err, sentinel.ErrNotFound) {
		return []Event{}, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ledger query failed")
		return nil, err
	}
	if events == nil {
		events = []Event{}
	}
	return events, nil
}

// GetByReference returns every event recorded for a consignment reference.
func (e *Executor) GetByReference(ctx context.Context, reference string) ([]Event, error) {
	return e.QueryEvents(ctx, Filter{Reference: reference})
}

// GetByParty returns every event that names party.
func (e *Executor) GetByParty(ctx context.Context, party string) ([]Event, error) {
	return e.QueryEvents(ctx, Filter{Party: party})
}

// GetObject fetches a raw ledger object by identifier.
func (e *Executor) GetObject(ctx context.Context, id string) (*RawRecord, error) {
	var rec *RawRecord
	err := e.retry(ctx, "object lookup", func(ctx context.Context) error {
		var err error
		rec, err = e.client.GetObject(ctx, id)
		return err
	})
	if errors.Is(err, sentinel.ErrNotFound) || (err == nil && rec == nil) {
		return nil, dErrors.New(dErrors.CodeNotFound, "ledger object not found")
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// retry runs fn up to maxAttempts times. After failed attempt k it waits
// baseDelay * 2^(k-1). sentinel.ErrNotFound is final and returned as is.
func (e *Executor) retry(ctx context.Context, operation string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return e.cancelled(operation, attempt-1, lastErr, err)
		}

		start := time.Now()
		err := e.attempt(ctx, fn)
		e.metrics.ObserveAttempt(operation, time.Since(start), err)
		if err == nil {
			return nil
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		lastErr = err
		if ctx.Err() != nil {
			return e.cancelled(operation, attempt, lastErr, ctx.Err())
		}
		if attempt == e.maxAttempts {
			break
		}

		delay := e.baseDelay << (attempt - 1)
		e.logger.WarnContext(ctx, "ledger attempt failed, retrying",
			"operation", operation,
			"attempt", attempt,
			"max_attempts", e.maxAttempts,
			"backoff", delay,
			"error", err,
		)
		if err := e.sleep(ctx, delay); err != nil {
			return e.cancelled(operation, attempt, lastErr, err)
		}
	}

	e.metrics.IncExhausted(operation)
	e.logger.ErrorContext(ctx, "ledger call exhausted retries",
		"operation", operation,
		"max_attempts", e.maxAttempts,
		"error", lastErr,
	)
	return dErrors.Wrap(lastErr, dErrors.CodeExhaustedRetries,
		fmt.Sprintf("ledger %s failed after %d attempts", operation, e.maxAttempts))
}

func (e *Executor) attempt(ctx context.Context, fn func(context.Context) error) error {
	if e.attemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout)
	defer cancel()
	return fn(attemptCtx)
}

func (e *Executor) cancelled(operation string, attempts int, lastErr, ctxErr error) error {
	cause := lastErr
	if cause == nil {
		cause = ctxErr
	}
	return dErrors.Wrap(cause, dErrors.CodeTimeout,
		fmt.Sprintf("ledger %s cancelled after %d attempts", operation, attempts))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
