// Package rpc talks to a ledger node over JSON-RPC 2.0.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"emcs/internal/ledger"
	"emcs/pkg/platform/sentinel"
)

const (
	MethodSubmit    = "ledger_submitTransaction"
	MethodQuery     = "ledger_queryEvents"
	MethodGetObject = "ledger_getObject"

	// CodeNotFound is the node's error code for a missing object.
	CodeNotFound = -32004

	maxResponseBytes = 4 << 20
)

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("ledger rpc error %d: %s", e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == sentinel.ErrNotFound && e.Code == CodeNotFound
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error"`
}

// SubmitParams is the payload of MethodSubmit.
type SubmitParams struct {
	Operation ledger.Operation `json:"operation"`
	Signer    string           `json:"signer,omitempty"`
	Signature []byte           `json:"signature,omitempty"`
}

// SubmitResult is the node's reply to MethodSubmit.
type SubmitResult struct {
	TransactionID ledger.TransactionID `json:"tx_id"`
}

// Client implements ledger.Client against a remote node.
type Client struct {
	endpoint string
	http     *http.Client
	nextID   atomic.Uint64
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// New constructs a client for the node at endpoint.
func New(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SubmitOnce(ctx context.Context, op ledger.Operation, signer ledger.Signer) (ledger.TransactionID, error) {
	if signer == nil {
		signer = ledger.NoSigner{}
	}
	msg, err := json.Marshal(op)
	if err != nil {
		return "", fmt.Errorf("encode operation: %w", err)
	}
	sig, err := signer.Sign(msg)
	if err != nil {
		return "", fmt.Errorf("sign operation: %w", err)
	}

	var res SubmitResult
	params := SubmitParams{Operation: op, Signer: signer.Address(), Signature: sig}
	if err := c.call(ctx, MethodSubmit, params, &res); err != nil {
		return "", err
	}
	if res.TransactionID == "" {
		return "", errors.New("ledger node returned an empty transaction id")
	}
	return res.TransactionID, nil
}

func (c *Client) Query(ctx context.Context, filter ledger.Filter) ([]ledger.Event, error) {
	var events []ledger.Event
	if err := c.call(ctx, MethodQuery, filter, &events); err != nil {
		return nil, err
	}
	return events, nil
}

func (c *Client) GetObject(ctx context.Context, id string) (*ledger.RawRecord, error) {
	var rec *ledger.RawRecord
	if err := c.call(ctx, MethodGetObject, map[string]string{"id": id}, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, sentinel.ErrNotFound
	}
	return rec, nil
}

func (c *Client) call(ctx context.Context, method string, params, out any) error {
	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encode %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("%s: ledger node returned HTTP %d", method, resp.StatusCode)
	}

	var rpcResp response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&rpcResp); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil || len(rpcResp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}
