package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ze-codes/invest-agent/internal/domain/snapshot"
)

// SnapshotEngine is the compute surface the handlers depend on.
type SnapshotEngine interface {
	ComputeSnapshot(ctx context.Context, horizon string, asOf time.Time, opts snapshot.Options) (*snapshot.Outcome, error)
	ComputeRouter(ctx context.Context, horizon string, asOf time.Time, k int) ([]snapshot.RouterPick, *snapshot.AbstainResult, error)
}

// HealthChecker reports readiness of one dependency.
type HealthChecker func(ctx context.Context) error

// Handlers serves the read-only snapshot API.
type Handlers struct {
	engine SnapshotEngine
	checks map[string]HealthChecker
	now    func() time.Time
}

// NewHandlers builds the handler set. checks are named dependency probes
// surfaced by /health; nil is allowed.
func NewHandlers(engine SnapshotEngine, checks map[string]HealthChecker) *Handlers {
	return &Handlers{
		engine: engine,
		checks: checks,
		now:    time.Now,
	}
}

var validHorizons = map[string]bool{"1w": true, "2w": true, "1m": true}

type errorResponse struct {
	Error string `json:"error"`
}

// Snapshot handles GET /v1/snapshot?horizon=&as_of=&full=&k=.
func (h *Handlers) Snapshot(w http.ResponseWriter, r *http.Request) {
	horizon, asOf, ok := h.runParams(w, r)
	if !ok {
		return
	}

	opts := snapshot.Options{}
	if full := r.URL.Query().Get("full"); full != "" {
		b, err := strconv.ParseBool(full)
		if err != nil {
			writeError(w, http.StatusBadRequest, "full must be a boolean")
			return
		}
		opts.Full = b
	}
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		k, err := strconv.Atoi(kStr)
		if err != nil || k < 0 {
			writeError(w, http.StatusBadRequest, "k must be a non-negative integer")
			return
		}
		opts.K = k
	}

	outcome, err := h.engine.ComputeSnapshot(r.Context(), horizon, asOf, opts)
	if err != nil {
		log.Error().Err(err).Str("horizon", horizon).Msg("snapshot computation failed")
		writeError(w, http.StatusServiceUnavailable, "snapshot computation failed")
		return
	}
	if outcome.Abstained() {
		writeJSON(w, http.StatusOK, outcome)
		return
	}
	writeJSON(w, http.StatusOK, outcome.Snapshot)
}

// Router handles GET /v1/router?horizon=&as_of=&k=.
func (h *Handlers) Router(w http.ResponseWriter, r *http.Request) {
	horizon, asOf, ok := h.runParams(w, r)
	if !ok {
		return
	}

	k := 0
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "k must be a non-negative integer")
			return
		}
		k = parsed
	}

	picks, abstain, err := h.engine.ComputeRouter(r.Context(), horizon, asOf, k)
	if err != nil {
		log.Error().Err(err).Str("horizon", horizon).Msg("router computation failed")
		writeError(w, http.StatusServiceUnavailable, "router computation failed")
		return
	}
	if abstain != nil {
		writeJSON(w, http.StatusOK, snapshot.Outcome{Abstain: abstain})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"horizon":      horizon,
		"as_of":        asOf,
		"router_picks": picks,
	})
}

// Health handles GET /health: 200 when every dependency probe passes,
// 503 with per-dependency detail otherwise.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			deps[name] = "ok"
		}
	}

	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	if len(deps) > 0 {
		body["dependencies"] = deps
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}

// NotFound keeps unknown routes JSON-shaped.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeError(w, http.StatusNotFound, "not found")
}

// runParams parses the horizon and as_of query parameters shared by the
// snapshot and router endpoints. as_of defaults to now; historical values
// are served point-in-time from the vintage store.
func (h *Handlers) runParams(w http.ResponseWriter, r *http.Request) (string, time.Time, bool) {
	horizon := r.URL.Query().Get("horizon")
	if horizon == "" {
		horizon = "1w"
	}
	if !validHorizons[horizon] {
		writeError(w, http.StatusBadRequest, "horizon must be one of 1w, 2w, 1m")
		return "", time.Time{}, false
	}

	asOf := h.now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "as_of must be RFC3339")
			return "", time.Time{}, false
		}
		asOf = parsed.UTC()
	}
	return horizon, asOf, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
