package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scandesk/internal/adapters/memstore"
	"scandesk/internal/domain"
	"scandesk/internal/ports"
	"scandesk/internal/rules"
	"scandesk/internal/services/pipeline"
	"scandesk/internal/services/verifier"
)

type fakeLookup struct {
	mu    sync.Mutex
	items map[string][]string
	err   error
	calls int
}

func (f *fakeLookup) ShipmentItems(ctx context.Context, tracking string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	items, ok := f.items[tracking]
	if !ok {
		return nil, ports.ErrNoShipment
	}
	return items, nil
}

func (f *fakeLookup) FindOrder(ctx context.Context, tracking string) (string, error) {
	return "", errors.New("not used")
}

func (f *fakeLookup) OrderItems(ctx context.Context, orderID string) ([]string, error) {
	return nil, errors.New("not used")
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newPipeline(t *testing.T, lookup ports.ShipmentLookup) *pipeline.Pipeline {
	t.Helper()
	log := quietLogger()
	opts := []pipeline.Option{pipeline.WithLogger(log)}
	if lookup != nil {
		opts = append(opts, pipeline.WithVerifier(verifier.New(lookup, verifier.ShapeItems, 0, log)))
	}
	p := pipeline.New(opts...)
	for _, cat := range rules.Default() {
		require.NoError(t, p.Register(cat, memstore.New(cat.Name)))
	}
	return p
}

func TestSubmit_MissingTrackingNumberReportedFirst(t *testing.T) {
	p := newPipeline(t, nil)

	out, err := p.Submit(context.Background(), rules.CategoryShipment, map[string]string{
		"TrackingNumber": "", "QRCode": "A", "IMEI": "B",
	})
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, "TrackingNumber", out.RejectedField)
	assert.Equal(t, domain.MissingField, out.Reason)
	assert.Nil(t, out.Record)

	recs, _ := p.Records(context.Background(), rules.CategoryShipment)
	assert.Empty(t, recs)
}

func TestSubmit_FirstMissingFieldInDeclaredOrder(t *testing.T) {
	p := newPipeline(t, nil)

	cases := []struct {
		raw  map[string]string
		want string
	}{
		{map[string]string{}, "TrackingNumber"},
		{map[string]string{"TrackingNumber": "T"}, "QRCode"},
		{map[string]string{"TrackingNumber": "T", "IMEI": "I"}, "QRCode"},
		{map[string]string{"TrackingNumber": "T", "QRCode": "Q"}, "IMEI"},
		{map[string]string{"TrackingNumber": "  ", "QRCode": "Q", "IMEI": "I"}, "TrackingNumber"},
	}
	for _, tc := range cases {
		out, err := p.Submit(context.Background(), rules.CategoryShipment, tc.raw)
		require.NoError(t, err)
		assert.False(t, out.Accepted)
		assert.Equal(t, tc.want, out.RejectedField)
		assert.Equal(t, domain.MissingField, out.Reason)
	}
}

func TestSubmit_ShipmentAccepted(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	out, err := p.Submit(ctx, rules.CategoryShipment, map[string]string{
		"TrackingNumber": "1Z999", "QRCode": "Q-1", "IMEI": "351234567890123", "Ignored": "x",
	})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	require.NotNil(t, out.Record)
	assert.Equal(t, domain.StatusUnverified, out.Record.Status)
	assert.Equal(t, []domain.FieldValue{
		{Name: "TrackingNumber", Value: "1Z999"},
		{Name: "QRCode", Value: "Q-1"},
		{Name: "IMEI", Value: "351234567890123"},
	}, out.Record.Fields)
	assert.NotEmpty(t, out.Record.ID)
}

func TestSubmit_ComponentScenarios(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()
	black := "66410000000000000000"

	out, err := p.Submit(ctx, rules.CategoryComponent, map[string]string{"QRCode": "QR-1", "black_ic": black})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	assert.Equal(t, domain.StatusUnverified, out.Record.Status)

	out, err = p.Submit(ctx, rules.CategoryComponent, map[string]string{"QRCode": "QR-2", "black_ic": black})
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, "black_ic", out.RejectedField)
	assert.Equal(t, domain.DuplicateValue, out.Reason)

	recs, err := p.Records(ctx, rules.CategoryComponent)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestSubmit_ComponentDuplicateQRCode(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	_, err := p.Submit(ctx, rules.CategoryComponent, map[string]string{"QRCode": "SAME"})
	require.NoError(t, err)
	out, err := p.Submit(ctx, rules.CategoryComponent, map[string]string{"QRCode": "SAME"})
	require.NoError(t, err)
	assert.Equal(t, domain.DuplicateValue, out.Reason)
	assert.Equal(t, "QRCode", out.RejectedField)
}

func TestSubmit_EmptyOptionalFieldsNeverDuplicate(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		out, err := p.Submit(ctx, rules.CategoryComponent, map[string]string{"QRCode": fmt.Sprintf("QR-%d", i)})
		require.NoError(t, err)
		assert.True(t, out.Accepted)
	}
}

func TestSubmit_ComponentFormatRules(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	cases := []struct {
		field string
		value string
		ok    bool
	}{
		{"black_ic", "6641" + strings.Repeat("1", 16), true},
		{"black_ic", "6601" + strings.Repeat("1", 16), false},
		{"blue_ic", "6601" + strings.Repeat("2", 15), true},
		{"blue_ic", "6601" + strings.Repeat("2", 16), false},
		{"u_blue_ic", "6601" + strings.Repeat("3", 15), true},
		{"u_blue_ic", "6641" + strings.Repeat("3", 15), false},
		{"red_ic", "6601" + strings.Repeat("4", 16), true},
		{"red_ic", "6601" + strings.Repeat("4", 15), false},
	}
	for i, tc := range cases {
		out, err := p.Submit(ctx, rules.CategoryComponent, map[string]string{
			"QRCode": fmt.Sprintf("F-%d", i), tc.field: tc.value,
		})
		require.NoError(t, err)
		assert.Equal(t, tc.ok, out.Accepted, "%s=%s", tc.field, tc.value)
		if !tc.ok {
			assert.Equal(t, tc.field, out.RejectedField)
			assert.Equal(t, domain.BadFormat, out.Reason)
			assert.NotEmpty(t, out.Message)
		}
	}

	// every accepted optional IC is empty or satisfies its rule
	recs, _ := p.Records(ctx, rules.CategoryComponent)
	cat, _ := p.Category(rules.CategoryComponent)
	for _, rec := range recs {
		for _, f := range cat.Fields[1:] {
			v := rec.Value(f.Name)
			if v == "" {
				continue
			}
			assert.Len(t, v, f.Rule.ExactLength)
			assert.True(t, strings.HasPrefix(v, f.Rule.RequiredPrefix))
		}
	}
}

func TestSubmit_FirstFailingFieldWins(t *testing.T) {
	p := newPipeline(t, nil)

	out, err := p.Submit(context.Background(), rules.CategoryComponent, map[string]string{
		"QRCode": "Q", "blue_ic": "bad", "red_ic": "also-bad",
	})
	require.NoError(t, err)
	assert.Equal(t, "blue_ic", out.RejectedField)
}

func TestSubmit_UnknownCategory(t *testing.T) {
	p := newPipeline(t, nil)

	_, err := p.Submit(context.Background(), "nope", map[string]string{})
	assert.ErrorIs(t, err, pipeline.ErrUnknownCategory)
}

func TestSubmit_ReconcileConfirmed(t *testing.T) {
	lookup := &fakeLookup{items: map[string][]string{"1Z999": {"SK-001"}}}
	p := newPipeline(t, lookup)
	ctx := context.Background()

	out, err := p.Submit(ctx, rules.CategoryReconcile, map[string]string{"TrackingNumber": "1Z999", "QRCode": "1234"})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	require.Len(t, out.Records, 1)
	assert.Equal(t, domain.ItemCode("SK-001"), out.Record.ItemCode)
	assert.Equal(t, domain.StatusConfirmed, out.Record.Status)

	recs, _ := p.Records(ctx, rules.CategoryReconcile)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.StatusConfirmed, recs[0].Status)
}

func TestSubmit_ReconcileWithSerialAppendsTwo(t *testing.T) {
	lookup := &fakeLookup{items: map[string][]string{"1Z999": {"SK-001"}}}
	p := newPipeline(t, lookup)
	ctx := context.Background()

	out, err := p.Submit(ctx, rules.CategoryReconcile, map[string]string{
		"TrackingNumber": "1Z999", "QRCode": "1234", "Serial": "351234567890123",
	})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	require.Len(t, out.Records, 2)

	assert.Equal(t, domain.StatusConfirmed, out.Records[0].Status)
	assert.Equal(t, domain.ItemCode("DE-001"), out.Records[1].ItemCode)
	assert.Equal(t, "351234567890123", out.Records[1].Code)
	assert.Equal(t, domain.StatusRejected, out.Records[1].Status)
	assert.Contains(t, out.Message, "DE-001")
	assert.Equal(t, 2, lookup.calls)
}

func TestSubmit_ReconcileUnresolved(t *testing.T) {
	lookup := &fakeLookup{}
	p := newPipeline(t, lookup)

	out, err := p.Submit(context.Background(), rules.CategoryReconcile, map[string]string{"TrackingNumber": "1Z999", "QRCode": "9999"})
	require.NoError(t, err)
	assert.False(t, out.Accepted)
	assert.Equal(t, domain.UnresolvedCode, out.Reason)
	assert.Equal(t, "QRCode", out.RejectedField)
	assert.Zero(t, lookup.calls)
}

func TestSubmit_ReconcileSerialOnly(t *testing.T) {
	lookup := &fakeLookup{items: map[string][]string{"1Z999": {"DE-001"}}}
	p := newPipeline(t, lookup)

	out, err := p.Submit(context.Background(), rules.CategoryReconcile, map[string]string{
		"TrackingNumber": "1Z999", "QRCode": "not-a-sku", "Serial": "351234567890123",
	})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	require.Len(t, out.Records, 1)
	assert.Equal(t, domain.ItemCode("DE-001"), out.Record.ItemCode)
	assert.Equal(t, domain.StatusConfirmed, out.Record.Status)
}

func TestSubmit_ReconcileBadSerialRejected(t *testing.T) {
	p := newPipeline(t, &fakeLookup{})

	out, err := p.Submit(context.Background(), rules.CategoryReconcile, map[string]string{
		"TrackingNumber": "1Z999", "QRCode": "1234", "Serial": "35123",
	})
	require.NoError(t, err)
	assert.Equal(t, "Serial", out.RejectedField)
	assert.Equal(t, domain.BadFormat, out.Reason)
}

func TestSubmit_LookupFailureIsAdvisory(t *testing.T) {
	lookup := &fakeLookup{err: &ports.StatusError{Code: 500}}
	p := newPipeline(t, lookup)

	out, err := p.Submit(context.Background(), rules.CategoryReconcile, map[string]string{"TrackingNumber": "1Z999", "QRCode": "1234"})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	assert.Equal(t, domain.StatusRejected, out.Record.Status)
	assert.Contains(t, out.Record.Detail, "status 500")
}

func TestSubmit_ReconcileWithoutVerifierStaysUnverified(t *testing.T) {
	p := newPipeline(t, nil)

	out, err := p.Submit(context.Background(), rules.CategoryReconcile, map[string]string{"TrackingNumber": "1Z999", "QRCode": "1234"})
	require.NoError(t, err)
	require.True(t, out.Accepted)
	assert.Equal(t, domain.StatusUnverified, out.Record.Status)
}

func TestSubmit_ConcurrentDuplicatesAdmitOne(t *testing.T) {
	p := newPipeline(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := p.Submit(ctx, rules.CategoryComponent, map[string]string{"QRCode": "RACE"})
			if err == nil && out.Accepted {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
}

func TestPendingJobsAndProcess(t *testing.T) {
	lookup := &fakeLookup{err: errors.New("network down")}
	p := newPipeline(t, lookup)
	ctx := context.Background()

	out, err := p.Submit(ctx, rules.CategoryReconcile, map[string]string{"TrackingNumber": "1Z999", "QRCode": "1234"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusRejected, out.Record.Status)

	jobs, err := p.PendingJobs(ctx, rules.CategoryReconcile)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "1Z999", jobs[0].TrackingNumber)

	lookup.mu.Lock()
	lookup.err = nil
	lookup.items = map[string][]string{"1Z999": {"SK-001"}}
	lookup.mu.Unlock()

	res, err := p.Process(ctx, rules.CategoryReconcile, jobs[0])
	require.NoError(t, err)
	assert.True(t, res.Confirmed)

	jobs, err = p.PendingJobs(ctx, rules.CategoryReconcile)
	require.NoError(t, err)
	assert.Empty(t, jobs)

	none, err := p.PendingJobs(ctx, rules.CategoryShipment)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRegister_Errors(t *testing.T) {
	p := pipeline.New()
	good := domain.Category{Name: "a", Fields: []domain.FieldSpec{{Name: "X"}}}

	require.NoError(t, p.Register(good, memstore.New("a")))
	assert.Error(t, p.Register(good, memstore.New("a")))
	assert.Error(t, p.Register(domain.Category{Name: "b"}, memstore.New("b")))
	assert.Error(t, p.Register(domain.Category{Name: "c", Fields: []domain.FieldSpec{{Name: "X"}, {Name: "X"}}}, memstore.New("c")))
	assert.Error(t, p.Register(domain.Category{
		Name:      "d",
		Fields:    []domain.FieldSpec{{Name: "X"}},
		Reconcile: &domain.ReconcileSpec{TrackingField: "T", CodeField: "X"},
	}, memstore.New("d")))
	assert.Error(t, p.Register(domain.Category{Name: "e", Fields: []domain.FieldSpec{{Name: "X"}}}, nil))

	assert.Len(t, p.Categories(), 1)
}

// pendingStore answers Pending from its own list so the test can tell
// which path PendingJobs used.
type pendingStore struct {
	*memstore.Category
	pending []domain.ScanRecord
}

func (s *pendingStore) Pending(context.Context) ([]domain.ScanRecord, error) {
	return s.pending, nil
}

func TestPendingJobs_UsesStorePendingQuery(t *testing.T) {
	var cat domain.Category
	for _, c := range rules.Default() {
		if c.Name == rules.CategoryReconcile {
			cat = c
		}
	}
	store := &pendingStore{
		Category: memstore.New(cat.Name),
		pending: []domain.ScanRecord{{
			ID:       "r1",
			Fields:   []domain.FieldValue{{Name: "TrackingNumber", Value: "1Z777"}},
			ItemCode: "IC-002",
			Status:   domain.StatusRejected,
		}},
	}
	p := pipeline.New(pipeline.WithLogger(quietLogger()))
	require.NoError(t, p.Register(cat, store))

	jobs, err := p.PendingJobs(context.Background(), cat.Name)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, ports.VerifyJob{RecordID: "r1", TrackingNumber: "1Z777", ItemCode: "IC-002"}, jobs[0])
}
