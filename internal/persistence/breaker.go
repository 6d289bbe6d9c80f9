package persistence

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"github.com/ze-codes/invest-agent/internal/domain/snapshot"
)

// BreakerConfig tunes the circuit breaker in front of the observation store.
type BreakerConfig struct {
	Name                string        `yaml:"name"`
	MaxRequests         uint32        `yaml:"max_requests"`
	Interval            time.Duration `yaml:"interval"`
	Timeout             time.Duration `yaml:"timeout"`
	ConsecutiveFailures uint32        `yaml:"consecutive_failures"`
}

// DefaultBreakerConfig returns the default breaker policy.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:                "observation-store",
		MaxRequests:         3,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// BreakerStore wraps an observation store with a circuit breaker so a
// failing database fails evaluations fast instead of piling up timeouts.
// An open breaker surfaces as a fetch error; the engine discards the run
// and the last valid snapshot stands.
type BreakerStore struct {
	inner   snapshot.ObservationStore
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps inner with the configured breaker.
func NewBreakerStore(inner snapshot.ObservationStore, cfg BreakerConfig) *BreakerStore {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("observation store breaker state change")
		},
	}
	return &BreakerStore{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// GetWindow proxies to the wrapped store through the breaker.
func (s *BreakerStore) GetWindow(ctx context.Context, seriesID string, asOf time.Time, limit int) (snapshot.Window, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.GetWindow(ctx, seriesID, asOf, limit)
	})
	if err != nil {
		return nil, err
	}
	window, _ := result.(snapshot.Window)
	return window, nil
}

// State reports the current breaker state for health checks.
func (s *BreakerStore) State() gobreaker.State {
	return s.breaker.State()
}
