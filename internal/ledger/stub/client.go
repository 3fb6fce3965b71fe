// Package stub is an in-memory ledger used in tests and local development.
package stub

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"emcs/internal/ledger"
	"emcs/pkg/platform/sentinel"
)

// Client records submissions and returns synthetic transaction identifiers.
type Client struct {
	mu       sync.Mutex
	events   []ledger.Event
	counter  uint64
	failures []error
	now      func() time.Time
}

// New constructs an empty stub ledger.
func New() *Client {
	return &Client{now: time.Now}
}

// WithClock overrides the timestamp source.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// FailNext makes the next n calls return err.
func (c *Client) FailNext(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; i < n; i++ {
		c.failures = append(c.failures, err)
	}
}

func (c *Client) popFailure() error {
	if len(c.failures) == 0 {
		return nil
	}
	err := c.failures[0]
	c.failures = c.failures[1:]
	return err
}

// SubmitOnce records op and returns a 0x-prefixed 64 hex digit identifier.
func (c *Client) SubmitOnce(ctx context.Context, op ledger.Operation, signer ledger.Signer) (ledger.TransactionID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.popFailure(); err != nil {
		return "", err
	}

	c.counter++
	body, err := json.Marshal(op)
	if err != nil {
		return "", fmt.Errorf("encode operation: %w", err)
	}
	sum := sha256.Sum256(append([]byte(fmt.Sprintf("%d:", c.counter)), body...))
	id := ledger.TransactionID("0x" + hex.EncodeToString(sum[:]))

	addr := ""
	if signer != nil {
		addr = signer.Address()
	}
	c.events = append(c.events, ledger.Event{
		TransactionID: id,
		Kind:          op.Kind,
		Reference:     op.Reference,
		Parties:       append([]string(nil), op.Parties...),
		Payload:       op.Payload,
		Signer:        addr,
		Timestamp:     c.now().UTC(),
	})
	return id, nil
}

// Query returns recorded events in submission order.
func (c *Client) Query(ctx context.Context, filter ledger.Filter) ([]ledger.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.popFailure(); err != nil {
		return nil, err
	}
	out := make([]ledger.Event, 0)
	for _, e := range c.events {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetObject returns the submission recorded under id.
func (c *Client) GetObject(ctx context.Context, id string) (*ledger.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.popFailure(); err != nil {
		return nil, err
	}
	for _, e := range c.events {
		if string(e.TransactionID) == id {
			return &ledger.RawRecord{
				ID:   id,
				Type: string(e.Kind),
				Content: map[string]any{
					"reference": e.Reference,
					"payload":   e.Payload,
					"signer":    e.Signer,
				},
			}, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// Submissions returns a copy of every recorded event.
func (c *Client) Submissions() []ledger.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ledger.Event(nil), c.events...)
}
