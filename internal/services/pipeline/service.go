// Package pipeline validates scan submissions field by field, appends
// accepted rows to their category store and, for reconciliation
// categories, confirms each resolved item against the shipment lookup.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"scandesk/internal/domain"
	"scandesk/internal/ports"
	"scandesk/internal/services/sku"
	"scandesk/internal/services/validation"
)

var ErrUnknownCategory = errors.New("unknown category")

type Pipeline struct {
	order    []string
	specs    map[string]domain.Category
	stores   map[string]ports.CategoryStore
	verifier ports.Verifier
	log      logrus.FieldLogger
	now      func() time.Time
}

var _ ports.Scanner = (*Pipeline)(nil)

type Option func(*Pipeline)

// WithVerifier attaches the shipment verifier used by reconciliation
// categories. Without one, their records stay Unverified.
func WithVerifier(v ports.Verifier) Option {
	return func(p *Pipeline) { p.verifier = v }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		specs:  map[string]domain.Category{},
		stores: map[string]ports.CategoryStore{},
		log:    logrus.StandardLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register adds a category and the store that holds its records.
func (p *Pipeline) Register(cat domain.Category, store ports.CategoryStore) error {
	if cat.Name == "" {
		return errors.New("category name is required")
	}
	if _, exists := p.specs[cat.Name]; exists {
		return fmt.Errorf("category %q registered twice", cat.Name)
	}
	if store == nil {
		return fmt.Errorf("category %q has no store", cat.Name)
	}
	if len(cat.Fields) == 0 {
		return fmt.Errorf("category %q has no fields", cat.Name)
	}
	seen := map[string]bool{}
	for _, f := range cat.Fields {
		if f.Name == "" || seen[f.Name] {
			return fmt.Errorf("category %q: empty or repeated field %q", cat.Name, f.Name)
		}
		seen[f.Name] = true
	}
	if rc := cat.Reconcile; rc != nil {
		if !seen[rc.TrackingField] || !seen[rc.CodeField] {
			return fmt.Errorf("category %q: reconcile fields must be declared fields", cat.Name)
		}
		if rc.SerialField != "" && !seen[rc.SerialField] {
			return fmt.Errorf("category %q: serial field %q is not declared", cat.Name, rc.SerialField)
		}
	}
	p.order = append(p.order, cat.Name)
	p.specs[cat.Name] = cat
	p.stores[cat.Name] = store
	return nil
}

// Categories returns the registered categories in registration order.
func (p *Pipeline) Categories() []domain.Category {
	out := make([]domain.Category, 0, len(p.order))
	for _, name := range p.order {
		out = append(out, p.specs[name])
	}
	return out
}

func (p *Pipeline) Category(name string) (domain.Category, bool) {
	c, ok := p.specs[name]
	return c, ok
}

func (p *Pipeline) Records(ctx context.Context, category string) ([]domain.ScanRecord, error) {
	_, store, err := p.lookup(category)
	if err != nil {
		return nil, err
	}
	return store.List(ctx)
}

// rejection carries the first violated rule out of the store guard.
type rejection struct {
	field string
	kind  domain.ErrorKind
	rule  domain.FieldRule
}

func (r *rejection) Error() string {
	return fmt.Sprintf("%s: %s", r.field, r.kind)
}

// Submit validates raw against the category's fields in declaration order
// and appends the accepted record(s). Validation failures are reported in
// the outcome; the error is reserved for unknown categories and store
// failures. Verification of reconciliation records blocks until every
// record has a final status.
func (p *Pipeline) Submit(ctx context.Context, category string, raw map[string]string) (domain.PipelineOutcome, error) {
	cat, store, err := p.lookup(category)
	if err != nil {
		return domain.PipelineOutcome{}, err
	}

	values := make(map[string]string, len(cat.Fields))
	fields := make([]domain.FieldValue, 0, len(cat.Fields))
	for _, f := range cat.Fields {
		v := validation.Normalize(raw[f.Name])
		values[f.Name] = v
		fields = append(fields, domain.FieldValue{Name: f.Name, Value: v})
	}

	recs := p.buildRecords(cat, fields, values)

	guard := func(existing []domain.ScanRecord) error {
		for _, f := range cat.Fields {
			if res := validation.Validate(f.Name, values[f.Name], f.Rule, existing); !res.OK {
				return &rejection{field: f.Name, kind: res.Reason, rule: f.Rule}
			}
		}
		if cat.Reconcile != nil && len(recs) == 0 {
			return &rejection{field: cat.Reconcile.CodeField, kind: domain.UnresolvedCode}
		}
		return nil
	}

	if err := store.AppendIf(ctx, guard, recs...); err != nil {
		var rej *rejection
		if errors.As(err, &rej) {
			msg := validation.Message(rej.field, rej.kind, rej.rule)
			p.log.WithFields(logrus.Fields{
				"category": category,
				"field":    rej.field,
				"reason":   rej.kind,
			}).Info("scan rejected")
			return domain.PipelineOutcome{
				RejectedField: rej.field,
				Reason:        rej.kind,
				Message:       msg,
			}, nil
		}
		return domain.PipelineOutcome{}, fmt.Errorf("append to %s: %w", category, err)
	}

	if cat.Reconcile != nil && p.verifier != nil {
		for i := range recs {
			job, _ := ports.JobFromRecord(recs[i], cat.Reconcile.TrackingField)
			res, err := p.Process(ctx, category, job)
			if err != nil {
				return domain.PipelineOutcome{}, err
			}
			recs[i].Status, recs[i].Detail = statusFor(res), res.Detail
		}
	}

	p.log.WithFields(logrus.Fields{
		"category": category,
		"records":  len(recs),
	}).Info("scan accepted")

	out := domain.PipelineOutcome{Accepted: true, Records: recs, Message: acceptedMessage(recs)}
	out.Record = &out.Records[0]
	return out, nil
}

// Process verifies one job and stores the resulting status.
func (p *Pipeline) Process(ctx context.Context, category string, job ports.VerifyJob) (domain.VerificationOutcome, error) {
	_, store, err := p.lookup(category)
	if err != nil {
		return domain.VerificationOutcome{}, err
	}
	if p.verifier == nil {
		return domain.VerificationOutcome{}, errors.New("no shipment verifier configured")
	}
	res := p.verifier.Verify(ctx, job.TrackingNumber, job.ItemCode)
	// the verifier may have consumed the caller's deadline; the status
	// write must still land
	wctx := context.WithoutCancel(ctx)
	if err := store.UpdateStatus(wctx, job.RecordID, statusFor(res), res.Detail); err != nil {
		return res, fmt.Errorf("update status of %s: %w", job.RecordID, err)
	}
	return res, nil
}

// PendingJobs lists the reconciliation records of category that are not
// confirmed yet.
func (p *Pipeline) PendingJobs(ctx context.Context, category string) ([]ports.VerifyJob, error) {
	cat, store, err := p.lookup(category)
	if err != nil {
		return nil, err
	}
	if cat.Reconcile == nil {
		return nil, nil
	}
	var recs []domain.ScanRecord
	if pl, ok := store.(ports.PendingLister); ok {
		recs, err = pl.Pending(ctx)
	} else {
		recs, err = store.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	var jobs []ports.VerifyJob
	for _, rec := range recs {
		if rec.Status == domain.StatusConfirmed {
			continue
		}
		if job, ok := ports.JobFromRecord(rec, cat.Reconcile.TrackingField); ok {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}

func (p *Pipeline) lookup(category string) (domain.Category, ports.CategoryStore, error) {
	cat, ok := p.specs[category]
	if !ok {
		return domain.Category{}, nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return cat, p.stores[category], nil
}

// buildRecords prepares the rows a successful submission appends: one for a
// plain category, one per resolved code for a reconciliation category.
func (p *Pipeline) buildRecords(cat domain.Category, fields []domain.FieldValue, values map[string]string) []domain.ScanRecord {
	now := p.now().UTC()
	base := domain.ScanRecord{
		Category:  cat.Name,
		Fields:    fields,
		Status:    domain.StatusUnverified,
		CreatedAt: now,
	}

	rc := cat.Reconcile
	if rc == nil {
		base.ID = uuid.NewString()
		return []domain.ScanRecord{base}
	}

	var recs []domain.ScanRecord
	if code := values[rc.CodeField]; code != "" {
		if item, ok := sku.Resolve(code); ok {
			r := base
			r.ID, r.Code, r.ItemCode = uuid.NewString(), code, item
			recs = append(recs, r)
		}
	}
	if rc.SerialField != "" {
		if serial := values[rc.SerialField]; serial != "" {
			if item, ok := sku.ResolveSerial(serial); ok {
				r := base
				r.ID, r.Code, r.ItemCode = uuid.NewString(), serial, item
				recs = append(recs, r)
			}
		}
	}
	return recs
}

func statusFor(res domain.VerificationOutcome) domain.Status {
	if res.Confirmed {
		return domain.StatusConfirmed
	}
	return domain.StatusRejected
}

func acceptedMessage(recs []domain.ScanRecord) string {
	for _, r := range recs {
		if r.Status == domain.StatusRejected {
			return "Scan added; " + string(r.ItemCode) + " not verified: " + r.Detail
		}
	}
	return "Scan added"
}
