package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ze-codes/invest-agent/internal/calendar"
	"github.com/ze-codes/invest-agent/internal/domain/registry"
)

func freshnessWindow(seriesID string, latest time.Time) map[string]Window {
	return map[string]Window{
		seriesID: {{
			SeriesID:        seriesID,
			ObservationDate: latest.Truncate(24 * time.Hour),
			Value:           1,
			PublicationTime: latest,
		}},
	}
}

func guardIndicator(id string, cat registry.Category, cadence registry.Cadence) *registry.Indicator {
	return mustRegister(&registry.Indicator{
		ID:             id,
		Name:           id,
		Category:       cat,
		Series:         []string{"SER_" + id},
		Cadence:        cadence,
		Directionality: registry.HigherIsSupportive,
		Scoring:        registry.ScoringStatistical,
		Trigger:        "t",
	})
}

func TestGuard_CadenceThresholds(t *testing.T) {
	cal := calendar.New(time.UTC)
	g := NewGuard(DefaultGuardConfig(), cal)
	asOf := time.Date(2025, time.June, 12, 15, 0, 0, 0, time.UTC) // Thursday

	testCases := []struct {
		name    string
		cadence registry.Cadence
		age     time.Duration
		stale   bool
	}{
		{"daily_within_48h", registry.CadenceDaily, 47 * time.Hour, false},
		{"daily_past_48h", registry.CadenceDaily, 49 * time.Hour, true},
		{"weekly_within_9d", registry.CadenceWeekly, 8 * 24 * time.Hour, false},
		{"weekly_past_9d", registry.CadenceWeekly, 10 * 24 * time.Hour, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ind := guardIndicator("x", registry.CategoryCore, tc.cadence)
			windows := map[string]map[string]Window{
				"x": freshnessWindow("SER_x", asOf.Add(-tc.age)),
			}
			report := g.Check([]*registry.Indicator{ind}, windows, asOf)
			assert.Equal(t, tc.stale, len(report.Stale) == 1)
		})
	}
}

func TestGuard_DeadlineRollsOverWeekend(t *testing.T) {
	cal := calendar.New(time.UTC)
	g := NewGuard(DefaultGuardConfig(), cal)

	// Latest print Thursday 10:00; the raw 48h deadline lands Saturday and
	// rolls to Monday, so a Monday-morning evaluation is still fresh.
	latest := time.Date(2025, time.June, 5, 10, 0, 0, 0, time.UTC) // Thursday
	ind := guardIndicator("x", registry.CategoryCore, registry.CadenceDaily)
	windows := map[string]map[string]Window{"x": freshnessWindow("SER_x", latest)}

	monday := time.Date(2025, time.June, 9, 9, 0, 0, 0, time.UTC)
	report := g.Check([]*registry.Indicator{ind}, windows, monday)
	assert.Empty(t, report.Stale)

	// By Tuesday the rolled deadline has passed.
	tuesday := monday.AddDate(0, 0, 1)
	report = g.Check([]*registry.Indicator{ind}, windows, tuesday)
	assert.Len(t, report.Stale, 1)
}

func TestGuard_AbstentionThreshold(t *testing.T) {
	cal := calendar.New(time.UTC)
	g := NewGuard(DefaultGuardConfig(), cal)
	asOf := time.Date(2025, time.June, 12, 15, 0, 0, 0, time.UTC)
	staleTime := asOf.Add(-5 * 24 * time.Hour)
	freshTime := asOf.Add(-2 * time.Hour)

	build := func(staleCore int) ([]*registry.Indicator, map[string]map[string]Window) {
		ids := []string{"c1", "c2", "c3", "c4"}
		var inds []*registry.Indicator
		windows := map[string]map[string]Window{}
		for i, id := range ids {
			inds = append(inds, guardIndicator(id, registry.CategoryCore, registry.CadenceDaily))
			ts := freshTime
			if i < staleCore {
				ts = staleTime
			}
			windows[id] = freshnessWindow("SER_"+id, ts)
		}
		return inds, windows
	}

	// Exactly 2 stale core: still scores (threshold is strictly more than 2).
	inds, windows := build(2)
	report := g.Check(inds, windows, asOf)
	assert.Len(t, report.StaleCore, 2)
	assert.False(t, g.ShouldAbstain(report))

	// Exactly 3 stale core: abstain.
	inds, windows = build(3)
	report = g.Check(inds, windows, asOf)
	assert.Len(t, report.StaleCore, 3)
	assert.True(t, g.ShouldAbstain(report))
}

func TestGuard_NonCoreStaleDoesNotAbstain(t *testing.T) {
	cal := calendar.New(time.UTC)
	g := NewGuard(DefaultGuardConfig(), cal)
	asOf := time.Date(2025, time.June, 12, 15, 0, 0, 0, time.UTC)
	staleTime := asOf.Add(-6 * 24 * time.Hour)

	var inds []*registry.Indicator
	windows := map[string]map[string]Window{}
	for _, id := range []string{"f1", "f2", "f3", "f4"} {
		inds = append(inds, guardIndicator(id, registry.CategoryFloor, registry.CadenceDaily))
		windows[id] = freshnessWindow("SER_"+id, staleTime)
	}

	report := g.Check(inds, windows, asOf)
	assert.Len(t, report.Stale, 4)
	assert.Empty(t, report.StaleCore)
	assert.False(t, g.ShouldAbstain(report))
}
