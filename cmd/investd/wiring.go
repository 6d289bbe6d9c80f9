package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/ze-codes/invest-agent/internal/cache"
	"github.com/ze-codes/invest-agent/internal/calendar"
	"github.com/ze-codes/invest-agent/internal/config"
	"github.com/ze-codes/invest-agent/internal/domain/registry"
	"github.com/ze-codes/invest-agent/internal/domain/snapshot"
	"github.com/ze-codes/invest-agent/internal/metrics"
	"github.com/ze-codes/invest-agent/internal/persistence"
	"github.com/ze-codes/invest-agent/internal/persistence/postgres"
)

// app bundles the wired components a command needs, plus their teardown.
type app struct {
	cfg      config.Config
	registry *registry.Registry
	engine   *snapshot.Engine
	series   persistence.SeriesRepo
	snaps    persistence.SnapshotRepo
	cache    *cache.SnapshotCache
	metrics  *metrics.Metrics
	prom     *prometheus.Registry

	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("shutdown cleanup failed")
		}
	}
}

// buildApp loads config and registry, connects the stores, and assembles
// the engine. Any failure tears down what was already opened.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	reg, err := registry.Load(cfg.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("load registry: %w", err)
	}
	log.Info().Int("indicators", reg.Len()).Str("path", cfg.RegistryPath).Msg("registry loaded")

	a := &app{cfg: cfg, registry: reg}

	db, err := postgres.Connect(ctx, cfg.Database.DSN, cfg.Database.QueryTimeout)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)

	if err := postgres.Migrate(ctx, db); err != nil {
		a.Close()
		return nil, err
	}

	a.series = postgres.NewSeriesRepo(db, cfg.Database.QueryTimeout)
	a.snaps = postgres.NewSnapshotRepo(db, cfg.Database.QueryTimeout)
	store := persistence.NewBreakerStore(a.series, cfg.Breaker)

	a.prom = prometheus.NewRegistry()
	a.metrics = metrics.New(a.prom)

	opts := []snapshot.Option{snapshot.WithMetrics(a.metrics)}
	if cfg.CacheEnabled {
		a.cache = cache.New(cfg.Cache)
		a.closers = append(a.closers, a.cache.Close)
		opts = append(opts, snapshot.WithCache(a.cache))
	}

	engine, err := snapshot.New(reg, store, calendar.New(cfg.Location()), cfg.Engine, opts...)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	a.engine = engine
	return a, nil
}
