package postgres

import (
	"context"

	"scandesk/internal/domain"
	"scandesk/internal/ports"
)

var _ ports.PendingLister = (*CategoryStore)(nil)

// Pending returns the records of the category that carry an item code and
// are not confirmed yet, in insertion order. Served by the partial index on
// unconfirmed rows.
func (s *CategoryStore) Pending(ctx context.Context) ([]domain.ScanRecord, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT id::text, category, fields, code, item_code, status, detail, created_at
		FROM scan_records
		WHERE category = $1 AND status <> 'Confirmed' AND item_code <> ''
		ORDER BY seq
	`, s.name)
	if err != nil {
		return nil, err
	}
	return collectRecords(rows)
}
