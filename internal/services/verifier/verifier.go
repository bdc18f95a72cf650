package verifier

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"scandesk/internal/domain"
	"scandesk/internal/ports"
)

var tracer = otel.Tracer("scandesk/verifier")

// Shape selects the lookup protocol used by a deployment.
type Shape string

const (
	// ShapeItems queries the shipment once and requires an exact item match.
	ShapeItems Shape = "items"
	// ShapeOrder resolves the shipment's order first and accepts any order
	// item that contains the item code.
	ShapeOrder Shape = "order"
)

func ParseShape(s string) (Shape, error) {
	switch Shape(strings.ToLower(strings.TrimSpace(s))) {
	case "", ShapeItems:
		return ShapeItems, nil
	case ShapeOrder:
		return ShapeOrder, nil
	}
	return "", fmt.Errorf("unknown lookup shape %q", s)
}

type Verifier struct {
	lookup  ports.ShipmentLookup
	shape   Shape
	timeout time.Duration
	log     logrus.FieldLogger
}

func New(lookup ports.ShipmentLookup, shape Shape, timeout time.Duration, log logrus.FieldLogger) *Verifier {
	if shape == "" {
		shape = ShapeItems
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Verifier{lookup: lookup, shape: shape, timeout: timeout, log: log}
}

// Verify reports whether itemCode is on the shipment identified by
// trackingNumber. Every failure, including a panicking lookup, becomes an
// unconfirmed outcome with a detail.
func (v *Verifier) Verify(ctx context.Context, trackingNumber string, itemCode domain.ItemCode) (out domain.VerificationOutcome) {
	ctx, span := tracer.Start(ctx, "shipment.verify", trace.WithAttributes(
		attribute.String("shipment.tracking_number", trackingNumber),
		attribute.String("shipment.item_code", string(itemCode)),
		attribute.String("shipment.lookup_shape", string(v.shape)),
	))
	defer func() {
		if r := recover(); r != nil {
			out = unconfirmed(domain.FailureTransport, fmt.Sprintf("shipment lookup failed: %v", r))
		}
		span.SetAttributes(attribute.Bool("shipment.confirmed", out.Confirmed))
		if out.Failure != domain.FailureNone && out.Failure != domain.FailureNotFound {
			span.SetStatus(codes.Error, out.Detail)
			v.log.WithFields(logrus.Fields{
				"tracking": trackingNumber,
				"item":     itemCode,
				"failure":  out.Failure,
			}).Warn(out.Detail)
		}
		span.End()
	}()

	if v.lookup == nil {
		return unconfirmed(domain.FailureCredentials, "shipment lookup is not configured")
	}
	if trackingNumber == "" {
		return unconfirmed(domain.FailureNotFound, "no tracking number to verify against")
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	if v.shape == ShapeOrder {
		return v.verifyOrder(ctx, trackingNumber, itemCode)
	}
	return v.verifyItems(ctx, trackingNumber, itemCode)
}

func (v *Verifier) verifyItems(ctx context.Context, tracking string, item domain.ItemCode) domain.VerificationOutcome {
	got, err := v.lookup.ShipmentItems(ctx, tracking)
	if err != nil {
		return classify(err)
	}
	if len(got) == 0 {
		return unconfirmed(domain.FailureEmpty, fmt.Sprintf("shipment %s has no items", tracking))
	}
	for _, code := range got {
		if code == string(item) {
			return confirmed(tracking, item)
		}
	}
	return notOnShipment(tracking, item)
}

func (v *Verifier) verifyOrder(ctx context.Context, tracking string, item domain.ItemCode) domain.VerificationOutcome {
	orderID, err := v.lookup.FindOrder(ctx, tracking)
	if err != nil {
		return classify(err)
	}
	got, err := v.lookup.OrderItems(ctx, orderID)
	if err != nil {
		return classify(err)
	}
	if len(got) == 0 {
		return unconfirmed(domain.FailureEmpty, fmt.Sprintf("order %s for shipment %s has no items", orderID, tracking))
	}
	// substring match, not equality
	for _, code := range got {
		if strings.Contains(code, string(item)) {
			return confirmed(tracking, item)
		}
	}
	return notOnShipment(tracking, item)
}

func classify(err error) domain.VerificationOutcome {
	var statusErr *ports.StatusError
	var netErr net.Error
	switch {
	case errors.Is(err, ports.ErrMissingCredentials):
		return unconfirmed(domain.FailureCredentials, "shipment lookup credentials are missing")
	case errors.Is(err, ports.ErrNoShipment):
		return unconfirmed(domain.FailureEmpty, "no shipment found for tracking number")
	case errors.As(err, &statusErr):
		return unconfirmed(domain.FailureStatus, fmt.Sprintf("shipment lookup returned status %d", statusErr.Code))
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return unconfirmed(domain.FailureTimeout, "shipment lookup timed out")
	}
	return unconfirmed(domain.FailureTransport, "shipment lookup failed: "+err.Error())
}

func confirmed(tracking string, item domain.ItemCode) domain.VerificationOutcome {
	return domain.VerificationOutcome{
		Confirmed: true,
		Detail:    fmt.Sprintf("%s found on shipment %s", item, tracking),
	}
}

func notOnShipment(tracking string, item domain.ItemCode) domain.VerificationOutcome {
	return unconfirmed(domain.FailureNotFound, fmt.Sprintf("%s is not on shipment %s", item, tracking))
}

func unconfirmed(kind domain.LookupFailure, detail string) domain.VerificationOutcome {
	return domain.VerificationOutcome{Detail: detail, Failure: kind}
}
