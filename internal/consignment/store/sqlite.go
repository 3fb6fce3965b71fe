package store

import (
	"database/sql"
	"strings"
)

// SQLiteStore persists consignments in a SQLite file for single-node setups.
// SQLite has no row locks, so transitions rely on the in-process reference
// lock plus the version column.
type SQLiteStore struct {
	sqlStore
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS consignments (
		reference      TEXT PRIMARY KEY,
		sender         TEXT NOT NULL,
		receiver       TEXT NOT NULL,
		goods_category TEXT NOT NULL,
		quantity       TEXT NOT NULL,
		unit           TEXT NOT NULL,
		status         TEXT NOT NULL,
		document_hash  TEXT NOT NULL DEFAULT '',
		created_at     TIMESTAMP NOT NULL,
		dispatched_at  TIMESTAMP,
		received_at    TIMESTAMP,
		ledger_tx_ids  TEXT NOT NULL DEFAULT '[]',
		version        INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS consignments_sender_idx ON consignments (sender)`,
	`CREATE INDEX IF NOT EXISTS consignments_receiver_idx ON consignments (receiver)`,
	`CREATE TABLE IF NOT EXISTS movement_events (
		seq           INTEGER PRIMARY KEY AUTOINCREMENT,
		id            TEXT NOT NULL UNIQUE,
		reference     TEXT NOT NULL REFERENCES consignments (reference),
		type          TEXT NOT NULL,
		occurred_at   TIMESTAMP NOT NULL,
		actor         TEXT NOT NULL,
		ledger_tx_id  TEXT NOT NULL,
		document_hash TEXT NOT NULL DEFAULT '',
		published_at  TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS movement_events_reference_idx ON movement_events (reference, occurred_at)`,
}

// NewSQLite wraps an open database. Call Migrate before first use.
func NewSQLite(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{sqlStore{
		db: db,
		dialect: dialect{
			name:     "sqlite",
			schema:   sqliteSchema,
			isUnique: isSQLiteUniqueViolation,
		},
	}}
}

func isSQLiteUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}
