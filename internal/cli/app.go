package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	httpadapter "scandesk/internal/adapters/http"
	"scandesk/internal/adapters/memstore"
	"scandesk/internal/adapters/postgres"
	"scandesk/internal/adapters/rediscache"
	"scandesk/internal/adapters/shipment"
	"scandesk/internal/config"
	"scandesk/internal/ports"
	"scandesk/internal/rules"
	"scandesk/internal/services/pipeline"
	"scandesk/internal/services/verifier"
	"scandesk/internal/workers/reverify"
)

// app is the wired service graph shared by serve and verify.
type app struct {
	cfg      config.Config
	log      logrus.FieldLogger
	pipeline *pipeline.Pipeline
	verifier *verifier.Verifier
	closers  []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// newLookup returns the shipment client, behind the Redis cache when
// REDIS_URL is set and reachable.
func newLookup(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (ports.ShipmentLookup, func()) {
	client := shipment.New(cfg.LookupBaseURL, cfg.LookupAPIKey, cfg.LookupAPISecret, cfg.LookupTimeout)
	if !cfg.HasLookupCredentials() {
		log.Warn("LOOKUP_API_KEY/LOOKUP_API_SECRET not set; verifications will report missing credentials")
	}
	if cfg.RedisURL == "" {
		return client, func() {}
	}
	rdb, err := rediscache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("redis unavailable; lookups are not cached")
		return client, func() {}
	}
	return rediscache.New(client, rdb, cfg.LookupCacheTTL, log), func() { _ = rdb.Close() }
}

func newVerifier(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*verifier.Verifier, func(), error) {
	shape, err := verifier.ParseShape(cfg.LookupShape)
	if err != nil {
		return nil, nil, err
	}
	lookup, closeLookup := newLookup(ctx, cfg, log)
	return verifier.New(lookup, shape, cfg.LookupTimeout, log), closeLookup, nil
}

func newApp(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	cats, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return nil, err
	}

	v, closeLookup, err := newVerifier(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	a.verifier = v
	a.closers = append(a.closers, closeLookup)

	storeFor := func(name string) ports.CategoryStore { return memstore.New(name) }
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("db connect: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		if err := db.Migrate(ctx, log); err != nil {
			a.Close()
			return nil, err
		}
		storeFor = func(name string) ports.CategoryStore { return db.Category(name) }
	} else {
		log.Info("DATABASE_URL not set; records are kept in memory")
	}

	a.pipeline = pipeline.New(pipeline.WithVerifier(v), pipeline.WithLogger(log))
	for _, cat := range cats {
		if err := a.pipeline.Register(cat, storeFor(cat.Name)); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) reverifier() httpadapter.Reverifier {
	return httpadapter.ReverifierFunc(func(ctx context.Context, category string) (reverify.Summary, error) {
		return reverify.Category(ctx, a.pipeline, a.pipeline, category, a.cfg.ReverifyWorkers, a.log)
	})
}
