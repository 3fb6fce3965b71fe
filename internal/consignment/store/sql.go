package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"emcs/internal/consignment/models"
	id "emcs/pkg/domain"
	"emcs/pkg/platform/sentinel"
	txctx "emcs/pkg/platform/tx"
)

// dialect captures what differs between the SQL backends.
type dialect struct {
	name       string
	schema     []string
	forUpdate  string
	positional bool
	isUnique   func(err error) bool
}

// sqlStore implements the store on database/sql. Queries are written with ?
// placeholders and rebound for dialects that use $n.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	locks   referenceLocks
}

const consignmentColumns = `reference, sender, receiver, goods_category, quantity, unit, status,
	document_hash, created_at, dispatched_at, received_at, ledger_tx_ids, version`

const eventColumns = `id, reference, type, occurred_at, actor, ledger_tx_id, document_hash`

func (s *sqlStore) rebind(query string) string {
	if !s.dialect.positional {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlStore) conn(ctx context.Context) txctx.Querier {
	return txctx.Conn(ctx, s.db)
}

// Migrate creates the tables when they do not exist.
func (s *sqlStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s migrate: %w", s.dialect.name, err)
		}
	}
	return nil
}

func (s *sqlStore) Create(ctx context.Context, c *models.Consignment, event *models.MovementEvent) error {
	return txctx.Run(ctx, s.db, func(ctx context.Context) error {
		txIDs, err := json.Marshal(c.LedgerTransactionIDs)
		if err != nil {
			return fmt.Errorf("encode ledger tx ids: %w", err)
		}
		_, err = s.conn(ctx).ExecContext(ctx, s.rebind(`
			INSERT INTO consignments (`+consignmentColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
		`),
			c.Reference, c.Sender.String(), c.Receiver.String(), string(c.GoodsCategory), c.Quantity,
			string(c.Unit), string(c.Status), c.DocumentHash, c.CreatedAt.UTC(),
			nullTime(c.DispatchedAt), nullTime(c.ReceivedAt), string(txIDs),
		)
		if err != nil {
			if s.dialect.isUnique(err) {
				return sentinel.ErrConflict
			}
			return fmt.Errorf("insert consignment: %w", err)
		}
		if err := s.insertEvent(ctx, event); err != nil {
			return err
		}
		c.Version = 1
		return nil
	})
}

func (s *sqlStore) FindByReference(ctx context.Context, reference string) (*models.Consignment, error) {
	row := s.conn(ctx).QueryRowContext(ctx, s.rebind(`
		SELECT `+consignmentColumns+` FROM consignments WHERE reference = ?
	`), reference)
	return scanConsignment(row)
}

func (s *sqlStore) Exists(ctx context.Context, reference string) (bool, error) {
	var one int
	err := s.conn(ctx).QueryRowContext(ctx, s.rebind(`SELECT 1 FROM consignments WHERE reference = ?`), reference).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check reference: %w", err)
	}
	return true, nil
}

func (s *sqlStore) ListByParty(ctx context.Context, party id.PartyID) ([]*models.Consignment, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, s.rebind(`
		SELECT `+consignmentColumns+` FROM consignments
		WHERE sender = ? OR receiver = ?
		ORDER BY created_at, reference
	`), party.String(), party.String())
	if err != nil {
		return nil, fmt.Errorf("list consignments: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Consignment, 0)
	for rows.Next() {
		c, err := scanConsignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Execute locks the row (or the reference, where row locks are unavailable),
// applies fn, and writes the result guarded by the version column.
func (s *sqlStore) Execute(ctx context.Context, reference string, fn MutateFunc) (*models.Consignment, error) {
	unlock, err := s.locks.lock(ctx, reference)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var updated *models.Consignment
	err = txctx.Run(ctx, s.db, func(ctx context.Context) error {
		row := s.conn(ctx).QueryRowContext(ctx, s.rebind(`
			SELECT `+consignmentColumns+` FROM consignments WHERE reference = ?`+s.dialect.forUpdate), reference)
		current, err := scanConsignment(row)
		if err != nil {
			return err
		}
		event, err := fn(current)
		if err != nil {
			return err
		}

		txIDs, err := json.Marshal(current.LedgerTransactionIDs)
		if err != nil {
			return fmt.Errorf("encode ledger tx ids: %w", err)
		}
		res, err := s.conn(ctx).ExecContext(ctx, s.rebind(`
			UPDATE consignments
			SET status = ?, document_hash = ?, dispatched_at = ?, received_at = ?,
				ledger_tx_ids = ?, version = version + 1
			WHERE reference = ? AND version = ?
		`),
			string(current.Status), current.DocumentHash, nullTime(current.DispatchedAt),
			nullTime(current.ReceivedAt), string(txIDs), reference, current.Version,
		)
		if err != nil {
			return fmt.Errorf("update consignment: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("update consignment: %w", err)
		}
		if n == 0 {
			return sentinel.ErrConflict
		}
		if err := s.insertEvent(ctx, event); err != nil {
			return err
		}
		current.Version++
		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *sqlStore) insertEvent(ctx context.Context, e *models.MovementEvent) error {
	if e == nil {
		return nil
	}
	_, err := s.conn(ctx).ExecContext(ctx, s.rebind(`
		INSERT INTO movement_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`), e.ID, e.Reference, string(e.Type), e.Timestamp.UTC(), e.Actor.String(), e.LedgerTransactionID, e.DocumentHash)
	if err != nil {
		return fmt.Errorf("insert movement event: %w", err)
	}
	return nil
}

func (s *sqlStore) ListEvents(ctx context.Context, reference string) ([]*models.MovementEvent, error) {
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM movement_events
		WHERE reference = ?
		ORDER BY occurred_at, seq
	`, reference)
}

func (s *sqlStore) PendingEvents(ctx context.Context, limit int) ([]*models.MovementEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.queryEvents(ctx, `
		SELECT `+eventColumns+` FROM movement_events
		WHERE published_at IS NULL
		ORDER BY seq
		LIMIT ?
	`, limit)
}

func (s *sqlStore) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return txctx.Run(ctx, s.db, func(ctx context.Context) error {
		now := time.Now().UTC()
		for _, eventID := range ids {
			if _, err := s.conn(ctx).ExecContext(ctx, s.rebind(`
				UPDATE movement_events SET published_at = ? WHERE id = ? AND published_at IS NULL
			`), now, eventID); err != nil {
				return fmt.Errorf("mark event published: %w", err)
			}
		}
		return nil
	})
}

func (s *sqlStore) queryEvents(ctx context.Context, query string, args ...any) ([]*models.MovementEvent, error) {
	rows, err := s.conn(ctx).QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query movement events: %w", err)
	}
	defer rows.Close()

	out := make([]*models.MovementEvent, 0)
	for rows.Next() {
		var (
			e     models.MovementEvent
			typ   string
			actor string
		)
		if err := rows.Scan(&e.ID, &e.Reference, &typ, &e.Timestamp, &actor, &e.LedgerTransactionID, &e.DocumentHash); err != nil {
			return nil, fmt.Errorf("scan movement event: %w", err)
		}
		e.Type = models.EventType(typ)
		e.Actor = id.PartyID(actor)
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConsignment(row scanner) (*models.Consignment, error) {
	var (
		c                      models.Consignment
		sender, receiver       string
		category, unit, status string
		dispatched, received   sql.NullTime
		txIDs                  string
	)
	err := row.Scan(&c.Reference, &sender, &receiver, &category, &c.Quantity, &unit, &status,
		&c.DocumentHash, &c.CreatedAt, &dispatched, &received, &txIDs, &c.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan consignment: %w", err)
	}
	c.Sender = id.PartyID(sender)
	c.Receiver = id.PartyID(receiver)
	c.GoodsCategory = models.GoodsCategory(category)
	c.Unit = models.Unit(unit)
	c.Status = models.Status(status)
	c.CreatedAt = c.CreatedAt.UTC()
	if dispatched.Valid {
		t := dispatched.Time.UTC()
		c.DispatchedAt = &t
	}
	if received.Valid {
		t := received.Time.UTC()
		c.ReceivedAt = &t
	}
	if err := json.Unmarshal([]byte(txIDs), &c.LedgerTransactionIDs); err != nil {
		return nil, fmt.Errorf("decode ledger tx ids: %w", err)
	}
	return &c, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
