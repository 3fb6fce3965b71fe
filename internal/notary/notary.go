// Package notary produces tamper-evident fingerprints of documents and anchors
// them on the ledger.
package notary

import (
	"context"
	"log/slog"
	"time"

	"emcs/internal/ledger"
	"emcs/internal/platform/logger"
	dErrors "emcs/pkg/domain-errors"
)

// Submitter anchors operations on the ledger.
type Submitter interface {
	Submit(ctx context.Context, op ledger.Operation, signer ledger.Signer) (ledger.TransactionID, error)
}

// Record is proof that a document hash was anchored.
type Record struct {
	DocumentHash        string               `json:"document_hash"`
	LedgerTransactionID ledger.TransactionID `json:"ledger_transaction_id"`
	Timestamp           time.Time            `json:"timestamp"`
}

// Notarizer hashes documents and anchors the hash on the ledger.
type Notarizer struct {
	submitter Submitter
	digest    Digest
	clock     func() time.Time
	logger    *slog.Logger
}

type Option func(*Notarizer)

func WithLogger(l *slog.Logger) Option {
	return func(n *Notarizer) {
		n.logger = l
	}
}

func WithDigest(d Digest) Option {
	return func(n *Notarizer) {
		n.digest = d
	}
}

func WithClock(clock func() time.Time) Option {
	return func(n *Notarizer) {
		n.clock = clock
	}
}

// New constructs a Notarizer. submitter is normally a *ledger.Executor.
func New(submitter Submitter, opts ...Option) *Notarizer {
	if submitter == nil {
		panic("notary: submitter is required")
	}
	n := &Notarizer{
		submitter: submitter,
		digest:    DigestSHA256,
		clock:     time.Now,
		logger:    logger.Discard(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Hash fingerprints doc with the configured digest.
func (n *Notarizer) Hash(doc any) (string, error) {
	return HashWith(n.digest, doc)
}

// Notarize hashes doc and anchors the hash. reference ties the anchor to a
// consignment and may be empty.
func (n *Notarizer) Notarize(ctx context.Context, reference string, doc any, signer ledger.Signer) (*Record, error) {
	docHash, err := n.Hash(doc)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotarizationFailed, "document could not be canonicalized")
	}
	if signer == nil {
		signer = ledger.NoSigner{}
	}

	op := ledger.Operation{
		Kind:      ledger.KindAnchorDocument,
		Reference: reference,
		Payload: map[string]any{
			"document_hash": docHash,
			"digest":        string(n.digest),
		},
	}
	txID, err := n.submitter.Submit(ctx, op, signer)
	if err != nil {
		n.logger.ErrorContext(ctx, "document anchoring failed",
			"reference", reference,
			"document_hash", docHash,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeNotarizationFailed, "document hash could not be anchored on the ledger")
	}

	n.logger.InfoContext(ctx, "document notarized",
		"reference", reference,
		"document_hash", docHash,
		"tx_id", txID,
	)
	return &Record{
		DocumentHash:        docHash,
		LedgerTransactionID: txID,
		Timestamp:           n.clock().UTC(),
	}, nil
}

// Verify reports whether doc hashes to expected. The comparison ignores case
// and an optional 0x prefix. Any failure yields false.
func (n *Notarizer) Verify(doc any, expected string) bool {
	return VerifyWith(n.digest, doc, expected)
}
