// Package memstore keeps category tables in memory for the lifetime of a
// session.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"scandesk/internal/domain"
	"scandesk/internal/ports"
)

// Category is the in-memory table of one category. The zero value is not
// usable; construct with New.
type Category struct {
	name string

	mu      sync.RWMutex
	records []domain.ScanRecord
	index   map[string]int
}

var _ ports.CategoryStore = (*Category)(nil)

func New(name string) *Category {
	return &Category{name: name, index: map[string]int{}}
}

func (c *Category) Name() string { return c.name }

// List returns a copy of the records in insertion order.
func (c *Category) List(ctx context.Context) ([]domain.ScanRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot(), nil
}

func (c *Category) AppendIf(ctx context.Context, guard func([]domain.ScanRecord) error, recs ...domain.ScanRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if guard != nil {
		if err := guard(c.snapshot()); err != nil {
			return err
		}
	}
	for _, rec := range recs {
		if _, dup := c.index[rec.ID]; dup {
			return fmt.Errorf("record %s already stored in %s", rec.ID, c.name)
		}
	}
	for _, rec := range recs {
		rec.Fields = append([]domain.FieldValue(nil), rec.Fields...)
		c.index[rec.ID] = len(c.records)
		c.records = append(c.records, rec)
	}
	return nil
}

func (c *Category) UpdateStatus(ctx context.Context, id string, status domain.Status, detail string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i, ok := c.index[id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", c.name, id, ports.ErrRecordNotFound)
	}
	c.records[i].Status = status
	c.records[i].Detail = detail
	return nil
}

// snapshot copies records so callers never alias stored field slices.
// Callers hold c.mu.
func (c *Category) snapshot() []domain.ScanRecord {
	out := make([]domain.ScanRecord, len(c.records))
	for i, rec := range c.records {
		rec.Fields = append([]domain.FieldValue(nil), rec.Fields...)
		out[i] = rec
	}
	return out
}
