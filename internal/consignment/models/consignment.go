package models

import (
	"time"

	"github.com/shopspring/decimal"

	id "emcs/pkg/domain"
	dErrors "emcs/pkg/domain-errors"
)

// Consignment is the aggregate root for a movement of excise goods.
//
// Invariants:
//   - Reference is immutable after construction
//   - Sender and Receiver differ
//   - Quantity is strictly positive
//   - Status transitions: draft -> in_transit -> received only
//   - CreatedAt <= DispatchedAt <= ReceivedAt where present
//   - DocumentHash is set iff DispatchedAt is set
//   - LedgerTransactionIDs gains one entry per lifecycle operation
type Consignment struct {
	Reference            string          `json:"reference"`
	Sender               id.PartyID      `json:"sender"`
	Receiver             id.PartyID      `json:"receiver"`
	GoodsCategory        GoodsCategory   `json:"goods_category"`
	Quantity             decimal.Decimal `json:"quantity"`
	Unit                 Unit            `json:"unit"`
	Status               Status          `json:"status"`
	DocumentHash         string          `json:"document_hash,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	DispatchedAt         *time.Time      `json:"dispatched_at,omitempty"`
	ReceivedAt           *time.Time      `json:"received_at,omitempty"`
	LedgerTransactionIDs []string        `json:"ledger_transaction_ids"`
	Version              int64           `json:"-"`
}

// NewConsignment constructs a draft consignment.
func NewConsignment(
	reference string,
	sender, receiver id.PartyID,
	category GoodsCategory,
	quantity decimal.Decimal,
	unit Unit,
	createdTx string,
	now time.Time,
) (*Consignment, error) {
	if reference == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "reference cannot be empty")
	}
	if sender.IsNil() || receiver.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "sender and receiver are required")
	}
	if sender == receiver {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "sender and receiver must differ")
	}
	if !category.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid goods category")
	}
	if !unit.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid unit")
	}
	if !quantity.IsPositive() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "quantity must be positive")
	}
	c := &Consignment{
		Reference:     reference,
		Sender:        sender,
		Receiver:      receiver,
		GoodsCategory: category,
		Quantity:      quantity,
		Unit:          unit,
		Status:        StatusDraft,
		CreatedAt:     now,
	}
	if createdTx != "" {
		c.LedgerTransactionIDs = []string{createdTx}
	}
	return c, nil
}

// Involves reports whether party is the sender or the receiver.
func (c *Consignment) Involves(party id.PartyID) bool {
	return c.Sender == party || c.Receiver == party
}

// CanDispatch checks identity and status for the draft -> in_transit
// transition. Identity is checked first so a wrong requester is always
// reported as unauthorized regardless of status.
func (c *Consignment) CanDispatch(requester id.PartyID) error {
	if requester != c.Sender {
		return dErrors.New(dErrors.CodeUnauthorized, "only the sender may dispatch a consignment")
	}
	if !c.Status.CanTransitionTo(StatusInTransit) {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"cannot dispatch consignment in status %s", c.Status)
	}
	return nil
}

// ApplyDispatch records the dispatch. Call CanDispatch first.
func (c *Consignment) ApplyDispatch(documentHash, txID string, now time.Time) {
	if now.Before(c.CreatedAt) {
		now = c.CreatedAt
	}
	c.Status = StatusInTransit
	c.DocumentHash = documentHash
	c.DispatchedAt = &now
	c.LedgerTransactionIDs = append(c.LedgerTransactionIDs, txID)
}

// CanReceive checks identity and status for the in_transit -> received
// transition.
func (c *Consignment) CanReceive(requester id.PartyID) error {
	if requester != c.Receiver {
		return dErrors.New(dErrors.CodeUnauthorized, "only the receiver may receive a consignment")
	}
	if !c.Status.CanTransitionTo(StatusReceived) {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"cannot receive consignment in status %s", c.Status)
	}
	return nil
}

// ApplyReceipt records the receipt. Call CanReceive first.
func (c *Consignment) ApplyReceipt(txID string, now time.Time) {
	if c.DispatchedAt != nil && now.Before(*c.DispatchedAt) {
		now = *c.DispatchedAt
	}
	c.Status = StatusReceived
	c.ReceivedAt = &now
	c.LedgerTransactionIDs = append(c.LedgerTransactionIDs, txID)
}

// Clone returns a deep copy so callers can mutate without affecting stored state.
func (c *Consignment) Clone() *Consignment {
	if c == nil {
		return nil
	}
	out := *c
	out.LedgerTransactionIDs = append([]string(nil), c.LedgerTransactionIDs...)
	if c.DispatchedAt != nil {
		t := *c.DispatchedAt
		out.DispatchedAt = &t
	}
	if c.ReceivedAt != nil {
		t := *c.ReceivedAt
		out.ReceivedAt = &t
	}
	return &out
}
