// Package chain is an in-process, hash-chained, append-only ledger.
package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"emcs/internal/ledger"
	"emcs/pkg/platform/sentinel"
)

const genesisPrevHash = "0"

// Block is one committed operation.
type Block struct {
	Index     int              `json:"index"`
	Timestamp int64            `json:"timestamp"`
	PrevHash  string           `json:"prev_hash"`
	Operation ledger.Operation `json:"operation"`
	Signer    string           `json:"signer,omitempty"`
	Signature string           `json:"signature,omitempty"`
	Hash      string           `json:"hash"`
}

// TransactionID is the block hash rendered as a ledger identifier.
func (b Block) TransactionID() ledger.TransactionID {
	return ledger.TransactionID("0x" + b.Hash)
}

// Client implements ledger.Client over an in-memory block chain.
type Client struct {
	mu               sync.RWMutex
	blocks           []Block
	requireSignature bool
	now              func() time.Time
}

type Option func(*Client)

// RequireSignature rejects operations submitted with an empty signer address.
func RequireSignature() Option {
	return func(c *Client) {
		c.requireSignature = true
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// New creates a chain holding only the genesis block.
func New(opts ...Option) (*Client, error) {
	c := &Client{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	genesis := Block{
		Index:     0,
		Timestamp: c.now().UnixNano(),
		PrevHash:  genesisPrevHash,
		Operation: ledger.Operation{Kind: "genesis"},
	}
	hash, err := calculateHash(genesis)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate genesis block hash: %w", err)
	}
	genesis.Hash = hash
	c.blocks = []Block{genesis}
	return c, nil
}

// SubmitOnce signs op and appends it as a new block.
func (c *Client) SubmitOnce(ctx context.Context, op ledger.Operation, signer ledger.Signer) (ledger.TransactionID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if signer == nil {
		signer = ledger.NoSigner{}
	}
	if c.requireSignature && signer.Address() == "" {
		return "", fmt.Errorf("operation %s requires a signer", op.Kind)
	}
	msg, err := json.Marshal(op)
	if err != nil {
		return "", fmt.Errorf("encode operation: %w", err)
	}
	sig, err := signer.Sign(msg)
	if err != nil {
		return "", fmt.Errorf("sign operation: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	latest := c.blocks[len(c.blocks)-1]
	block := Block{
		Index:     latest.Index + 1,
		Timestamp: c.now().UnixNano(),
		PrevHash:  latest.Hash,
		Operation: op,
		Signer:    signer.Address(),
		Signature: hex.EncodeToString(sig),
	}
	hash, err := calculateHash(block)
	if err != nil {
		return "", fmt.Errorf("failed to calculate block hash: %w", err)
	}
	block.Hash = hash
	if err := validateBlock(block, latest); err != nil {
		return "", fmt.Errorf("invalid block: %w", err)
	}
	c.blocks = append(c.blocks, block)
	return block.TransactionID(), nil
}

// Query returns matching events in chain order. The genesis block is never
// reported.
func (c *Client) Query(ctx context.Context, filter ledger.Filter) ([]ledger.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ledger.Event, 0)
	for _, b := range c.blocks[1:] {
		e := toEvent(b)
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// GetObject returns the block whose transaction identifier is id.
func (c *Client) GetObject(ctx context.Context, id string) (*ledger.RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash := strings.TrimPrefix(strings.ToLower(id), "0x")

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, b := range c.blocks[1:] {
		if b.Hash != hash {
			continue
		}
		return &ledger.RawRecord{
			ID:   string(b.TransactionID()),
			Type: string(b.Operation.Kind),
			Content: map[string]any{
				"index":     b.Index,
				"prev_hash": b.PrevHash,
				"reference": b.Operation.Reference,
				"payload":   b.Operation.Payload,
				"signer":    b.Signer,
				"signature": b.Signature,
			},
		}, nil
	}
	return nil, sentinel.ErrNotFound
}

// Height is the number of blocks including genesis.
func (c *Client) Height() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.blocks)
}

// Verify revalidates the whole chain and reports the first broken link.
func (c *Client) Verify() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.blocks) == 0 {
		return fmt.Errorf("empty chain")
	}
	if c.blocks[0].PrevHash != genesisPrevHash {
		return fmt.Errorf("invalid genesis block")
	}
	for i := 1; i < len(c.blocks); i++ {
		if err := validateBlock(c.blocks[i], c.blocks[i-1]); err != nil {
			return fmt.Errorf("block %d invalid: %w", i, err)
		}
	}
	return nil
}

func validateBlock(current, previous Block) error {
	if current.Index != previous.Index+1 {
		return fmt.Errorf("invalid index: expected %d, got %d", previous.Index+1, current.Index)
	}
	if current.PrevHash != previous.Hash {
		return fmt.Errorf("invalid prev hash: expected %s, got %s", previous.Hash, current.PrevHash)
	}
	expected, err := calculateHash(current)
	if err != nil {
		return fmt.Errorf("failed to calculate hash: %w", err)
	}
	if current.Hash != expected {
		return fmt.Errorf("invalid hash: expected %s, got %s", expected, current.Hash)
	}
	return nil
}

func calculateHash(b Block) (string, error) {
	opBytes, err := json.Marshal(b.Operation)
	if err != nil {
		return "", err
	}
	data := fmt.Sprintf("%d|%d|%s|%s|%s|%s", b.Index, b.Timestamp, b.PrevHash, opBytes, b.Signer, b.Signature)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:]), nil
}

func toEvent(b Block) ledger.Event {
	return ledger.Event{
		TransactionID: b.TransactionID(),
		Kind:          b.Operation.Kind,
		Reference:     b.Operation.Reference,
		Parties:       b.Operation.Parties,
		Payload:       b.Operation.Payload,
		Signer:        b.Signer,
		Timestamp:     time.Unix(0, b.Timestamp).UTC(),
	}
}
