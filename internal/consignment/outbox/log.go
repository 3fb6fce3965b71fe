package outbox

import (
	"context"
	"log/slog"

	"emcs/internal/consignment/models"
)

// LogPublisher writes events to the log. Used when no broker is configured.
type LogPublisher struct {
	Logger *slog.Logger
}

func (p LogPublisher) Publish(ctx context.Context, events []*models.MovementEvent) error {
	for _, e := range events {
		p.Logger.InfoContext(ctx, "movement event",
			"event_id", e.ID,
			"reference", e.Reference,
			"type", e.Type,
			"actor", e.Actor,
			"tx_id", e.LedgerTransactionID,
		)
	}
	return nil
}
