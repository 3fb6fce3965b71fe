package store

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// PostgresStore persists consignments in PostgreSQL. Transitions take a row
// lock and are additionally guarded by the version column.
type PostgresStore struct {
	sqlStore
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS consignments (
		reference      TEXT PRIMARY KEY,
		sender         TEXT NOT NULL,
		receiver       TEXT NOT NULL,
		goods_category TEXT NOT NULL,
		quantity       NUMERIC NOT NULL CHECK (quantity > 0),
		unit           TEXT NOT NULL,
		status         TEXT NOT NULL,
		document_hash  TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMPTZ NOT NULL,
		dispatched_at  TIMESTAMPTZ,
		received_at    TIMESTAMPTZ,
		ledger_tx_ids  TEXT NOT NULL DEFAULT '[]',
		version        BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS consignments_sender_idx ON consignments (sender)`,
	`CREATE INDEX IF NOT EXISTS consignments_receiver_idx ON consignments (receiver)`,
	`CREATE TABLE IF NOT EXISTS movement_events (
		seq           BIGSERIAL PRIMARY KEY,
		id            TEXT NOT NULL UNIQUE,
		reference     TEXT NOT NULL REFERENCES consignments (reference),
		type          TEXT NOT NULL,
		occurred_at   TIMESTAMPTZ NOT NULL,
		actor         TEXT NOT NULL,
		ledger_tx_id  TEXT NOT NULL,
		document_hash TEXT NOT NULL DEFAULT '',
		published_at  TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS movement_events_reference_idx ON movement_events (reference, occurred_at)`,
	`CREATE INDEX IF NOT EXISTS movement_events_pending_idx ON movement_events (seq) WHERE published_at IS NULL`,
}

// NewPostgres wraps an open pool. Call Migrate before first use.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{sqlStore{
		db: db,
		dialect: dialect{
			name:       "postgres",
			schema:     postgresSchema,
			forUpdate:  " FOR UPDATE",
			positional: true,
			isUnique:   isPostgresUniqueViolation,
		},
	}}
}

func isPostgresUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
