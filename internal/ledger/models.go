package ledger

import (
	"context"
	"time"
)

// Kind names the state change an operation records on the ledger.
type Kind string

const (
	KindCreateConsignment   Kind = "create_consignment"
	KindDispatchConsignment Kind = "dispatch_consignment"
	KindReceiveConsignment  Kind = "receive_consignment"
	KindAnchorDocument      Kind = "anchor_document"
)

// TransactionID identifies a committed ledger transaction.
type TransactionID string

func (t TransactionID) String() string {
	return string(t)
}

// Operation is the unit submitted to the ledger. Parties lists the addresses
// the operation concerns so that events can be queried by party.
type Operation struct {
	Kind      Kind           `json:"kind"`
	Reference string         `json:"reference,omitempty"`
	Parties   []string       `json:"parties,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// Event is a committed operation as reported back by the ledger.
type Event struct {
	TransactionID TransactionID  `json:"tx_id"`
	Kind          Kind           `json:"kind"`
	Reference     string         `json:"reference,omitempty"`
	Parties       []string       `json:"parties,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
	Signer        string         `json:"signer,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// Filter selects events. Empty fields match everything.
type Filter struct {
	Reference string `json:"reference,omitempty"`
	Party     string `json:"party,omitempty"`
	Kind      Kind   `json:"kind,omitempty"`
}

// Matches reports whether e satisfies every populated field of f.
func (f Filter) Matches(e Event) bool {
	if f.Reference != "" && e.Reference != f.Reference {
		return false
	}
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Party == "" {
		return true
	}
	for _, p := range e.Parties {
		if p == f.Party {
			return true
		}
	}
	return false
}

// RawRecord is an opaque ledger object fetched by identifier.
type RawRecord struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Content map[string]any `json:"content"`
}

// Signer authorizes operations on behalf of a party.
type Signer interface {
	Address() string
	Sign(msg []byte) ([]byte, error)
}

// NoSigner is used where no signing identity is available. The ledger backend
// decides whether unsigned operations are acceptable.
type NoSigner struct{}

func (NoSigner) Address() string { return "" }

func (NoSigner) Sign([]byte) ([]byte, error) { return nil, nil }

// Client performs single, unretried calls against a ledger backend.
type Client interface {
	SubmitOnce(ctx context.Context, op Operation, signer Signer) (TransactionID, error)
	Query(ctx context.Context, filter Filter) ([]Event, error)
	GetObject(ctx context.Context, id string) (*RawRecord, error)
}
