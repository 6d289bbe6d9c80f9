// Package metrics exposes Prometheus instrumentation for the snapshot
// engine and its collaborators.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the engine reports into.
type Metrics struct {
	EvaluationRuns     *prometheus.CounterVec
	EvaluationDuration *prometheus.HistogramVec
	Abstentions        *prometheus.CounterVec
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter
	WindowFetches      prometheus.Counter
	WindowFetchErrors  prometheus.Counter
	StaleIndicators    *prometheus.GaugeVec
}

// New creates the metric set and registers it on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EvaluationRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investagent_evaluation_runs_total",
				Help: "Evaluation runs by horizon and outcome (snapshot, abstain, error)",
			},
			[]string{"horizon", "outcome"},
		),
		EvaluationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "investagent_evaluation_duration_seconds",
				Help:    "Wall time of one evaluation run",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
			},
			[]string{"horizon"},
		),
		Abstentions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "investagent_abstentions_total",
				Help: "Runs that refused to score for insufficient fresh data",
			},
			[]string{"horizon"},
		),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "investagent_snapshot_cache_hits_total",
			Help: "Snapshot cache hits keyed by (horizon, frozen-inputs id)",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "investagent_snapshot_cache_misses_total",
			Help: "Snapshot cache misses",
		}),
		WindowFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "investagent_window_fetches_total",
			Help: "Observation window fetches from the store adapter",
		}),
		WindowFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "investagent_window_fetch_errors_total",
			Help: "Failed observation window fetches",
		}),
		StaleIndicators: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "investagent_stale_indicators",
				Help: "Stale indicators observed by the last run",
			},
			[]string{"horizon"},
		),
	}

	reg.MustRegister(
		m.EvaluationRuns,
		m.EvaluationDuration,
		m.Abstentions,
		m.CacheHits,
		m.CacheMisses,
		m.WindowFetches,
		m.WindowFetchErrors,
		m.StaleIndicators,
	)
	return m
}
