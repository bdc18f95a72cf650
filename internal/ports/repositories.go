package ports

import (
	"context"
	"errors"

	"scandesk/internal/domain"
)

var ErrRecordNotFound = errors.New("record not found")

// CategoryStore holds the accepted records of one category in insertion
// order.
type CategoryStore interface {
	Name() string
	List(ctx context.Context) ([]domain.ScanRecord, error)
	// AppendIf runs guard over the current records and appends recs only
	// when guard returns nil. Guard and append form one serialized unit
	// per category; the guard's error is returned unchanged.
	AppendIf(ctx context.Context, guard func(existing []domain.ScanRecord) error, recs ...domain.ScanRecord) error
	UpdateStatus(ctx context.Context, id string, status domain.Status, detail string) error
}

// PendingLister is implemented by stores that can list the unconfirmed
// records carrying an item code without loading the whole category.
type PendingLister interface {
	Pending(ctx context.Context) ([]domain.ScanRecord, error)
}
