package ports

import (
	"context"
	"errors"
	"fmt"

	"scandesk/internal/domain"
)

// Scanner validates submissions and exposes category tables.
type Scanner interface {
	Submit(ctx context.Context, category string, raw map[string]string) (domain.PipelineOutcome, error)
	Records(ctx context.Context, category string) ([]domain.ScanRecord, error)
	Categories() []domain.Category
}

// ShipmentLookup is the external shipment provider. Shape A deployments
// use ShipmentItems; shape B deployments use FindOrder then OrderItems.
type ShipmentLookup interface {
	ShipmentItems(ctx context.Context, trackingNumber string) ([]string, error)
	FindOrder(ctx context.Context, trackingNumber string) (orderID string, err error)
	OrderItems(ctx context.Context, orderID string) ([]string, error)
}

// Verifier confirms an item code against a shipment. It always returns an
// outcome.
type Verifier interface {
	Verify(ctx context.Context, trackingNumber string, itemCode domain.ItemCode) domain.VerificationOutcome
}

// Lookup errors shared by ShipmentLookup implementations.
var (
	ErrMissingCredentials = errors.New("shipment lookup credentials are not configured")
	ErrNoShipment         = errors.New("no shipment found for tracking number")
)

// StatusError is a non-success response from the lookup provider.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("shipment lookup returned status %d", e.Code)
	}
	return fmt.Sprintf("shipment lookup returned status %d: %s", e.Code, e.Body)
}
