package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"scandesk/internal/domain"
	"scandesk/internal/ports"
)

// CategoryStore keeps one category's records in scan_records. Appends take
// a transaction-scoped advisory lock on the category so the guard sees
// every earlier append.
type CategoryStore struct {
	db   *DB
	name string
}

var _ ports.CategoryStore = (*CategoryStore)(nil)

func (db *DB) Category(name string) *CategoryStore {
	return &CategoryStore{db: db, name: name}
}

func (s *CategoryStore) Name() string { return s.name }

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (s *CategoryStore) List(ctx context.Context) ([]domain.ScanRecord, error) {
	return listRecords(ctx, s.db.Pool, s.name)
}

func (s *CategoryStore) AppendIf(ctx context.Context, guard func([]domain.ScanRecord) error, recs ...domain.ScanRecord) (err error) {
	tx, err := s.db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.name); err != nil {
		return err
	}

	if guard != nil {
		existing, lerr := listRecords(ctx, tx, s.name)
		if lerr != nil {
			return lerr
		}
		if err = guard(existing); err != nil {
			return err
		}
	}

	for _, rec := range recs {
		fields, merr := json.Marshal(rec.Fields)
		if merr != nil {
			return merr
		}
		if _, err = tx.Exec(ctx, `
			INSERT INTO scan_records (id, category, fields, code, item_code, status, detail, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, rec.ID, s.name, fields, rec.Code, string(rec.ItemCode), string(rec.Status), rec.Detail, rec.CreatedAt); err != nil {
			return fmt.Errorf("insert %s: %w", rec.ID, err)
		}
	}
	return nil
}

func (s *CategoryStore) UpdateStatus(ctx context.Context, id string, status domain.Status, detail string) error {
	tag, err := s.db.Pool.Exec(ctx, `
		UPDATE scan_records SET status = $3, detail = $4
		WHERE id = $1 AND category = $2
	`, id, s.name, string(status), detail)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", s.name, id, ports.ErrRecordNotFound)
	}
	return nil
}

func listRecords(ctx context.Context, q querier, category string) ([]domain.ScanRecord, error) {
	rows, err := q.Query(ctx, `
		SELECT id::text, category, fields, code, item_code, status, detail, created_at
		FROM scan_records
		WHERE category = $1
		ORDER BY seq
	`, category)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]domain.ScanRecord, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ScanRecord, error) {
		var (
			rec          domain.ScanRecord
			fields       []byte
			item, status string
			createdAt    time.Time
		)
		if err := row.Scan(&rec.ID, &rec.Category, &fields, &rec.Code, &item, &status, &rec.Detail, &createdAt); err != nil {
			return rec, err
		}
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return rec, fmt.Errorf("decode fields of %s: %w", rec.ID, err)
		}
		rec.ItemCode = domain.ItemCode(item)
		rec.Status = domain.Status(status)
		rec.CreatedAt = createdAt.UTC()
		return rec, nil
	})
}
