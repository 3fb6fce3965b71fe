package models

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	id "emcs/pkg/domain"
)

// EventType names a lifecycle transition.
type EventType string

const (
	EventCreated    EventType = "Created"
	EventDispatched EventType = "Dispatched"
	EventReceived   EventType = "Received"
)

// MovementEvent is an immutable log entry, one per lifecycle transition.
// IDs are ULIDs so they sort by creation time.
type MovementEvent struct {
	ID                  string     `json:"id"`
	Reference           string     `json:"reference"`
	Type                EventType  `json:"type"`
	Timestamp           time.Time  `json:"timestamp"`
	Actor               id.PartyID `json:"actor"`
	LedgerTransactionID string     `json:"ledger_transaction_id"`
	DocumentHash        string     `json:"document_hash,omitempty"`
}

// NewMovementEvent stamps a new event at now.
func NewMovementEvent(reference string, typ EventType, actor id.PartyID, txID, documentHash string, now time.Time) *MovementEvent {
	return &MovementEvent{
		ID:                  ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Reference:           reference,
		Type:                typ,
		Timestamp:           now,
		Actor:               actor,
		LedgerTransactionID: txID,
		DocumentHash:        documentHash,
	}
}
