package snapshot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ze-codes/invest-agent/internal/domain/registry"
	"github.com/ze-codes/invest-agent/internal/metrics"
)

// ObservationStore supplies point-in-time observation windows. The engine
// consumes only this read interface; fetching, retries, and persistence
// belong to the adapter behind it.
type ObservationStore interface {
	// GetWindow returns up to limit observations of the series, ascending
	// by observation date, as known at asOf. An unknown series yields an
	// empty window, not an error.
	GetWindow(ctx context.Context, seriesID string, asOf time.Time, limit int) (Window, error)
}

// Cache is an optional read-through snapshot cache keyed by
// (horizon, frozen-inputs id).
type Cache interface {
	Get(ctx context.Context, horizon, frozenID string) (*Snapshot, bool, error)
	Put(ctx context.Context, horizon, frozenID string, snap *Snapshot) error
}

// Config aggregates every engine tunable.
type Config struct {
	Evaluator        EvaluatorConfig `yaml:"evaluator"`
	Scorer           ScorerConfig    `yaml:"scorer"`
	Router           RouterConfig    `yaml:"router"`
	Guard            GuardConfig     `yaml:"guard"`
	WindowLimit      int             `yaml:"window_limit"`      // observations fetched per series
	FetchConcurrency int             `yaml:"fetch_concurrency"` // parallel window fetches
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Evaluator:        DefaultEvaluatorConfig(),
		Scorer:           DefaultScorerConfig(),
		Router:           DefaultRouterConfig(),
		Guard:            DefaultGuardConfig(),
		WindowLimit:      120,
		FetchConcurrency: 8,
	}
}

// Options tune a single evaluation run.
type Options struct {
	// Full includes every available bucket member in the evidence list,
	// not just representatives.
	Full bool
	// K overrides the router pick count; 0 keeps the default, other values
	// are clamped to the configured range.
	K int
}

// Engine runs the snapshot pipeline: fan-out window gathering, staleness
// gate, evaluation, bucket aggregation, regime scoring, router selection,
// and assembly. A run shares no mutable state with other runs; concurrent
// runs for different horizons or as-of instants are fully independent.
type Engine struct {
	reg   *registry.Registry
	store ObservationStore
	cal   BusinessCalendar
	cfg   Config

	evaluator  *Evaluator
	aggregator *Aggregator
	scorer     *Scorer
	router     *Router
	guard      *Guard
	builder    *Builder

	cache Cache
	met   *metrics.Metrics

	mu       sync.Mutex
	inflight map[string]*inflightCall
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithCache attaches a read-through snapshot cache.
func WithCache(c Cache) Option { return func(e *Engine) { e.cache = c } }

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.met = m } }

// New validates the configuration and builds an engine. Configuration
// violations are fatal here; no evaluation may start on a malformed setup.
func New(reg *registry.Registry, store ObservationStore, cal BusinessCalendar, cfg Config, opts ...Option) (*Engine, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, &registry.ConfigError{Reason: "empty registry"}
	}
	if store == nil {
		return nil, fmt.Errorf("observation store is required")
	}
	if cal == nil {
		return nil, fmt.Errorf("business calendar is required")
	}
	if err := cfg.Scorer.Validate(); err != nil {
		return nil, err
	}
	if cfg.WindowLimit <= 0 {
		cfg.WindowLimit = DefaultConfig().WindowLimit
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = DefaultConfig().FetchConcurrency
	}

	e := &Engine{
		reg:        reg,
		store:      store,
		cal:        cal,
		cfg:        cfg,
		evaluator:  NewEvaluator(cfg.Evaluator),
		aggregator: NewAggregator(reg),
		scorer:     NewScorer(cfg.Scorer),
		router:     NewRouter(cfg.Router, reg),
		guard:      NewGuard(cfg.Guard, cal),
		builder:    NewBuilder(),
		inflight:   make(map[string]*inflightCall),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ComputeSnapshot evaluates one (horizon, as-of) run. The result is either
// a snapshot or an abstention; errors mean the run was discarded with no
// partial state, and any previous snapshot remains the last valid answer.
func (e *Engine) ComputeSnapshot(ctx context.Context, horizon string, asOf time.Time, opts Options) (*Outcome, error) {
	started := time.Now()
	outcome, err := e.compute(ctx, horizon, asOf, opts)
	if e.met != nil {
		e.met.EvaluationDuration.WithLabelValues(horizon).Observe(time.Since(started).Seconds())
		switch {
		case err != nil:
			e.met.EvaluationRuns.WithLabelValues(horizon, "error").Inc()
		case outcome.Abstained():
			e.met.EvaluationRuns.WithLabelValues(horizon, "abstain").Inc()
			e.met.Abstentions.WithLabelValues(horizon).Inc()
		default:
			e.met.EvaluationRuns.WithLabelValues(horizon, "snapshot").Inc()
		}
	}
	return outcome, err
}

// ComputeRouter returns the ordered evidence picks for one run; it derives
// from the same snapshot computation.
func (e *Engine) ComputeRouter(ctx context.Context, horizon string, asOf time.Time, k int) ([]RouterPick, *AbstainResult, error) {
	outcome, err := e.ComputeSnapshot(ctx, horizon, asOf, Options{K: k})
	if err != nil {
		return nil, nil, err
	}
	if outcome.Abstained() {
		return nil, outcome.Abstain, nil
	}
	return outcome.Snapshot.Picks, nil, nil
}

func (e *Engine) compute(ctx context.Context, horizon string, asOf time.Time, opts Options) (*Outcome, error) {
	asOf = asOf.UTC()

	seriesWindows, err := e.gather(ctx, asOf)
	if err != nil {
		return nil, err
	}

	// Per-indicator view over the shared series windows.
	windows := make(map[string]map[string]Window, e.reg.Len())
	for _, ind := range e.reg.Indicators() {
		view := make(map[string]Window)
		for _, sid := range seriesOf(ind) {
			view[sid] = seriesWindows[sid]
		}
		windows[ind.ID] = view
	}

	// Frozen-inputs identity is derivable before scoring, which lets the
	// cache sit between gather and evaluate.
	var frozen []FrozenInput
	for _, ind := range e.reg.Indicators() {
		frozen = append(frozen, frozenInputsFor(ind, windows[ind.ID])...)
	}
	frozenID := FrozenInputsID(frozen)

	report := e.guard.Check(e.reg.Indicators(), windows, asOf)
	if e.met != nil {
		e.met.StaleIndicators.WithLabelValues(horizon).Set(float64(len(report.Stale)))
	}
	if e.guard.ShouldAbstain(report) {
		log.Warn().Str("horizon", horizon).Strs("stale_core", report.StaleCore).
			Msg("abstaining: insufficient fresh core data")
		return &Outcome{Abstain: &AbstainResult{
			AsOf:           asOf,
			Horizon:        horizon,
			Reason:         ReasonInsufficientFreshData,
			StaleCore:      report.StaleCore,
			FrozenInputsID: frozenID,
		}}, nil
	}

	// Only the default response shape is cached; full-mode or k-override
	// responses are derived views and always recomputed.
	cacheable := e.cache != nil && !opts.Full && e.cfg.Router.ClampK(opts.K) == e.cfg.Router.K

	key := horizon + "|" + frozenID + "|" + optionsKey(opts)
	return e.computeShared(ctx, key, func() (*Outcome, error) {
		if cacheable {
			if snap, ok, cacheErr := e.cache.Get(ctx, horizon, frozenID); cacheErr == nil && ok {
				if e.met != nil {
					e.met.CacheHits.Inc()
				}
				return &Outcome{Snapshot: snap}, nil
			} else if cacheErr != nil {
				log.Warn().Err(cacheErr).Msg("snapshot cache read failed, computing")
			}
			if e.met != nil {
				e.met.CacheMisses.Inc()
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		snap := e.evaluate(asOf, horizon, windows, frozen, report, opts)
		if cacheable {
			if err := e.cache.Put(ctx, horizon, frozenID, snap); err != nil {
				log.Warn().Err(err).Msg("snapshot cache write failed")
			}
		}
		log.Info().Str("horizon", horizon).Str("frozen_inputs_id", frozenID).
			Str("label", snap.Regime.Label).Int("score", snap.Regime.Score).
			Msg("snapshot computed")
		return &Outcome{Snapshot: snap}, nil
	})
}

// evaluate runs the pure pipeline over gathered windows.
func (e *Engine) evaluate(asOf time.Time, horizon string, windows map[string]map[string]Window, frozen []FrozenInput, report StaleReport, opts Options) *Snapshot {
	rows := make([]EvidenceRow, 0, e.reg.Len())
	rowByID := make(map[string]EvidenceRow, e.reg.Len())
	for _, ind := range e.reg.Indicators() {
		row := e.evaluator.Evaluate(ind, windows[ind.ID])
		rows = append(rows, row)
		rowByID[row.IndicatorID] = row
	}

	buckets := e.aggregator.Aggregate(rows)
	regime := e.scorer.Score(buckets)
	picks := e.router.Select(buckets, rowByID, opts.K)

	return e.builder.Build(BuildInputs{
		AsOf:         asOf,
		Horizon:      horizon,
		Regime:       regime,
		Rows:         rows,
		Buckets:      buckets,
		Picks:        picks,
		FrozenInputs: frozen,
		StaleCount:   len(report.Stale),
		Full:         opts.Full,
	})
}

// gather fans out window fetches across all distinct series and joins
// before any scoring starts. The first fetch error aborts the run.
func (e *Engine) gather(ctx context.Context, asOf time.Time) (map[string]Window, error) {
	seen := map[string]bool{}
	var series []string
	for _, ind := range e.reg.Indicators() {
		for _, sid := range seriesOf(ind) {
			if !seen[sid] {
				seen[sid] = true
				series = append(series, sid)
			}
		}
	}

	type fetched struct {
		seriesID string
		window   Window
		err      error
	}

	jobs := make(chan string)
	results := make(chan fetched, len(series))
	workers := e.cfg.FetchConcurrency
	if workers > len(series) {
		workers = len(series)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sid := range jobs {
				win, err := e.store.GetWindow(ctx, sid, asOf, e.cfg.WindowLimit)
				results <- fetched{seriesID: sid, window: win, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, sid := range series {
			select {
			case jobs <- sid:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make(map[string]Window, len(series))
	var firstErr error
	for f := range results {
		if e.met != nil {
			e.met.WindowFetches.Inc()
			if f.err != nil {
				e.met.WindowFetchErrors.Inc()
			}
		}
		if f.err != nil && firstErr == nil {
			firstErr = fmt.Errorf("fetch window for %s: %w", f.seriesID, f.err)
		}
		out[f.seriesID] = f.window
	}
	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type inflightCall struct {
	done    chan struct{}
	outcome *Outcome
	err     error
}

// computeShared guarantees at most one computation in flight per key; a
// miss on one key never blocks other keys. Waiters share the leader's
// result but still honor their own context.
func (e *Engine) computeShared(ctx context.Context, key string, fn func() (*Outcome, error)) (*Outcome, error) {
	e.mu.Lock()
	if call, ok := e.inflight[key]; ok {
		e.mu.Unlock()
		select {
		case <-call.done:
			return call.outcome, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	call := &inflightCall{done: make(chan struct{})}
	e.inflight[key] = call
	e.mu.Unlock()

	call.outcome, call.err = fn()
	close(call.done)

	e.mu.Lock()
	delete(e.inflight, key)
	e.mu.Unlock()

	return call.outcome, call.err
}

func optionsKey(opts Options) string {
	return fmt.Sprintf("full=%t,k=%d", opts.Full, opts.K)
}
