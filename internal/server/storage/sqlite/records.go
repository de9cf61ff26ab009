package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/gymsync/internal/models"
	"github.com/iudanet/gymsync/internal/server/storage"
)

// ListSince retrieves records of the kind stamped strictly after the cursor,
// ordered ascending by (updated_at, updated_seq), limited to limit rows.
// The ordering is deterministic, so a crashed pull can safely re-request
// the same page.
func (s *Storage) ListSince(ctx context.Context, kind models.EntityKind, cur models.Cursor, limit int) (recs []*models.Record, err error) {
	query := `
		SELECT kind, guid, updated_at_ns, updated_seq, deleted, authority, payload
		FROM records
		WHERE kind = ?
		  AND (updated_at_ns > ? OR (updated_at_ns = ? AND updated_seq > ?))
		ORDER BY updated_at_ns ASC, updated_seq ASC
		LIMIT ?
	`

	curNs := cur.Ts.UnixNano()

	rows, err := s.db.QueryContext(ctx, query, string(kind), curNs, curNs, cur.Seq, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records since cursor: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close rows: %w", cerr)
		}
	}()

	return scanRecords(rows)
}

// GetRecord retrieves a single record by kind and GUID, tombstones included.
// Returns storage.ErrRecordNotFound if the record doesn't exist.
func (s *Storage) GetRecord(ctx context.Context, kind models.EntityKind, guid string) (*models.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT kind, guid, updated_at_ns, updated_seq, deleted, authority, payload
		FROM records
		WHERE kind = ? AND guid = ?
	`, string(kind), guid)

	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return rec, nil
}

// Batch executes fn inside a single SQL transaction.
// Any error from fn rolls the whole batch back.
func (s *Storage) Batch(ctx context.Context, fn func(tx storage.BatchTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	bt := &batchTx{tx: tx}

	if err := fn(bt); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("rollback failed: %v (after: %w)", rerr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// batchTx реализует storage.BatchTx поверх *sql.Tx.
type batchTx struct {
	tx *sql.Tx
}

// Get возвращает запись внутри транзакции или storage.ErrRecordNotFound.
func (b *batchTx) Get(kind models.EntityKind, guid string) (*models.Record, error) {
	row := b.tx.QueryRow(`
		SELECT kind, guid, updated_at_ns, updated_seq, deleted, authority, payload
		FROM records
		WHERE kind = ? AND guid = ?
	`, string(kind), guid)

	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return rec, nil
}

// Upsert создает или полностью заменяет запись.
func (b *batchTx) Upsert(rec *models.Record) error {
	payload := rec.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	_, err := b.tx.Exec(`
		INSERT INTO records (kind, guid, updated_at_ns, updated_seq, deleted, authority, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (kind, guid) DO UPDATE SET
			updated_at_ns = excluded.updated_at_ns,
			updated_seq = excluded.updated_seq,
			deleted = excluded.deleted,
			authority = excluded.authority,
			payload = excluded.payload
	`,
		string(rec.Kind),
		rec.GUID,
		rec.UpdatedAt.UnixNano(),
		rec.UpdatedSeq,
		boolToInt(rec.Deleted),
		string(rec.Authority),
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}

	return nil
}

// NextSeq выдает следующее значение глобального счетчика.
// UPDATE под транзакцией гарантирует строгий increment-and-fetch:
// конкурентные push никогда не получат одинаковое значение.
func (b *batchTx) NextSeq() (int64, error) {
	var value int64
	err := b.tx.QueryRow(`UPDATE sync_seq SET value = value + 1 WHERE id = 1 RETURNING value`).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence counter: %w", err)
	}

	return value, nil
}

// scanRecord is a helper to scan a single record row
func scanRecord(scan func(dest ...any) error) (*models.Record, error) {
	rec := &models.Record{}
	var kind, authority, payload string
	var updatedAtNs int64
	var deleted int

	if err := scan(&kind, &rec.GUID, &updatedAtNs, &rec.UpdatedSeq, &deleted, &authority, &payload); err != nil {
		return nil, err
	}

	rec.Kind = models.EntityKind(kind)
	rec.Authority = models.Authority(authority)
	rec.UpdatedAt = time.Unix(0, updatedAtNs).UTC()
	rec.Deleted = intToBool(deleted)
	rec.Payload = json.RawMessage(payload)

	return rec, nil
}

// scanRecords is a helper function to scan multiple records from rows
func scanRecords(rows *sql.Rows) ([]*models.Record, error) {
	var records []*models.Record

	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return records, nil
}

// Helper functions for bool/int conversion
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
