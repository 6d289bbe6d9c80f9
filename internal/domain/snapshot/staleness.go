package snapshot

import (
	"sort"
	"time"

	"github.com/ze-codes/invest-agent/internal/domain/registry"
)

// BusinessCalendar resolves business days for staleness deadlines.
type BusinessCalendar interface {
	IsBusinessDay(t time.Time) bool
	RollForward(t time.Time) time.Time
}

// GuardConfig holds the cadence-specific staleness thresholds.
type GuardConfig struct {
	DailyMaxAge  time.Duration `yaml:"daily_max_age"`   // default 48h
	WeeklyMaxAge time.Duration `yaml:"weekly_max_age"`  // default 9 days
	MaxStaleCore int           `yaml:"max_stale_core"`  // abstain when exceeded
}

// DefaultGuardConfig returns the default staleness policy.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		DailyMaxAge:  48 * time.Hour,
		WeeklyMaxAge: 9 * 24 * time.Hour,
		MaxStaleCore: 2,
	}
}

// ReasonInsufficientFreshData marks an abstention caused by too many stale
// core indicators.
const ReasonInsufficientFreshData = "insufficient_fresh_data"

// StaleReport classifies indicator freshness for one evaluation instant.
type StaleReport struct {
	Stale     []string // all stale indicator ids, sorted
	StaleCore []string // stale core-category ids, sorted
}

// Guard refuses to let an evaluation score itself on insufficient fresh
// data. Abstention is a first-class outcome, not an error.
type Guard struct {
	cfg GuardConfig
	cal BusinessCalendar
}

// NewGuard creates a staleness guard bound to a business calendar.
func NewGuard(cfg GuardConfig, cal BusinessCalendar) *Guard {
	return &Guard{cfg: cfg, cal: cal}
}

// Check classifies each indicator's latest observation age against its
// cadence threshold. A staleness deadline landing on a weekend or holiday
// rolls to the next business day before it can expire. Indicators with no
// observations at all are not counted stale here; they become not-available
// in the evaluator instead.
func (g *Guard) Check(inds []*registry.Indicator, windows map[string]map[string]Window, asOf time.Time) StaleReport {
	var report StaleReport
	for _, ind := range inds {
		latest, ok := latestObservationTime(windows[ind.ID])
		if !ok {
			continue
		}
		deadline := latest.Add(g.maxAge(ind.Cadence))
		if rolled := g.cal.RollForward(deadline); !rolled.Equal(deadline) {
			deadline = endOfBusinessDay(rolled)
		}
		if asOf.After(deadline) {
			report.Stale = append(report.Stale, ind.ID)
			if ind.Category == registry.CategoryCore {
				report.StaleCore = append(report.StaleCore, ind.ID)
			}
		}
	}
	sort.Strings(report.Stale)
	sort.Strings(report.StaleCore)
	return report
}

// ShouldAbstain reports whether the run must emit an abstention instead of
// a snapshot: strictly more than MaxStaleCore stale core indicators.
func (g *Guard) ShouldAbstain(report StaleReport) bool {
	return len(report.StaleCore) > g.cfg.MaxStaleCore
}

func (g *Guard) maxAge(c registry.Cadence) time.Duration {
	if c == registry.CadenceWeekly {
		return g.cfg.WeeklyMaxAge
	}
	return g.cfg.DailyMaxAge
}

// latestObservationTime picks the freshest timestamp across an indicator's
// series windows, preferring publication time, then fetch time, then the
// observation date.
func latestObservationTime(windows map[string]Window) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, w := range windows {
		obs, ok := w.Latest()
		if !ok {
			continue
		}
		t := obs.PublicationTime
		if t.IsZero() {
			t = obs.FetchedAt
		}
		if t.IsZero() {
			t = obs.ObservationDate
		}
		if !found || t.After(latest) {
			latest = t
			found = true
		}
	}
	return latest, found
}

// endOfBusinessDay extends a rolled deadline to the end of its business day
// so a holiday roll grants the full day, not just its first instant.
func endOfBusinessDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
