package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ze-codes/invest-agent/internal/domain/registry"
)

var testBase = time.Date(2025, time.June, 2, 0, 0, 0, 0, time.UTC)

// window builds a daily window ending the day before testBase+len.
func window(seriesID string, values ...float64) Window {
	w := make(Window, len(values))
	for i, v := range values {
		day := testBase.AddDate(0, 0, i)
		w[i] = Observation{
			SeriesID:        seriesID,
			ObservationDate: day,
			Value:           v,
			FetchedAt:       day.Add(18 * time.Hour),
			VintageID:       "v1",
		}
	}
	return w
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func statIndicator(id string, persistence int) *registry.Indicator {
	ind := &registry.Indicator{
		ID:             id,
		Name:           id,
		Category:       registry.CategoryCore,
		Series:         []string{"SER_" + id},
		Cadence:        registry.CadenceDaily,
		Directionality: registry.HigherIsSupportive,
		Scoring:        registry.ScoringStatistical,
		ZCutoff:        1.0,
		Persistence:    persistence,
		Trigger:        "|z20| >= 1.0",
	}
	return mustRegister(ind)
}

func thresholdIndicator(id string, persistence int, rule registry.ThresholdRule) *registry.Indicator {
	ind := &registry.Indicator{
		ID:             id,
		Name:           id,
		Category:       registry.CategoryFloor,
		Series:         []string{"SER_" + id},
		Cadence:        registry.CadenceDaily,
		Directionality: registry.HigherIsDraining,
		Scoring:        registry.ScoringThreshold,
		Persistence:    persistence,
		Threshold:      &rule,
		Trigger:        "breach",
	}
	return mustRegister(ind)
}

// mustRegister runs registry validation so defaults and bucket resolution
// behave exactly as in production.
func mustRegister(ind *registry.Indicator) *registry.Indicator {
	reg, err := registry.New([]*registry.Indicator{ind})
	if err != nil {
		panic(err)
	}
	out, _ := reg.Get(ind.ID)
	return out
}

func TestEvaluate_EmptyWindowIsNotAvailable(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())
	ind := statIndicator("reserves", 1)

	row := e.Evaluate(ind, map[string]Window{"SER_reserves": nil})

	assert.Equal(t, StatusNotAvailable, row.Status)
	assert.Nil(t, row.Value, "absence must never become a fabricated zero")
	assert.Equal(t, "|z20| >= 1.0", row.FlipTrigger)
}

func TestEvaluate_VarianceGuardForcesZeroZ(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())
	ind := statIndicator("tga", 1)

	// Twenty identical prints: stddev is 0, far below eps.
	row := e.Evaluate(ind, map[string]Window{"SER_tga": window("SER_tga", repeat(700.0, 20)...)})

	assert.Equal(t, StatusNeutral, row.Status)
	require.NotNil(t, row.Diagnostic.Z)
	assert.Zero(t, *row.Diagnostic.Z, "z must be exactly 0 under the variance guard")
	assert.True(t, row.Diagnostic.VarianceGuard)
	assert.Equal(t, "low_variance", row.Diagnostic.GuardReason)
}

func TestEvaluate_ThinHistoryForcesZeroZ(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())
	ind := statIndicator("rrp", 1)

	// Ten observations with plenty of spread, still below MinObservations.
	row := e.Evaluate(ind, map[string]Window{"SER_rrp": window("SER_rrp", 1, 9, 2, 8, 3, 7, 4, 6, 5, 25)})

	assert.Equal(t, StatusNeutral, row.Status)
	require.NotNil(t, row.Diagnostic.Z)
	assert.Zero(t, *row.Diagnostic.Z)
	assert.True(t, row.Diagnostic.VarianceGuard)
	assert.Equal(t, "thin_history", row.Diagnostic.GuardReason)
}

func TestEvaluate_StatisticalStatusAndDirectionality(t *testing.T) {
	cfg := DefaultEvaluatorConfig()
	e := NewEvaluator(cfg)

	// Nineteen mildly alternating prints, then a strong upside print.
	values := append(append([]float64{}, -1, 1, -1, 1, -1, 1, -1, 1, -1, 1, -1, 1, -1, 1, -1, 1, -1, 1, -1), 12)
	win := map[string]Window{"SER_up": window("SER_up", values...)}

	ind := statIndicator("up", 1)
	ind.Series = []string{"SER_up"}
	row := e.Evaluate(ind, win)
	require.NotNil(t, row.Diagnostic.Z)
	assert.Greater(t, *row.Diagnostic.Z, 1.0)
	assert.Equal(t, StatusPositive, row.Status)

	// Same series, but higher values drain liquidity: status flips.
	flipped := statIndicator("up_drain", 1)
	flipped.Series = []string{"SER_up"}
	flipped.Directionality = registry.HigherIsDraining
	row = e.Evaluate(flipped, win)
	assert.Equal(t, StatusNegative, row.Status)
}

func TestEvaluate_StatisticalPersistenceBreaksOnSinglePrint(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())

	// One outlier print at the tail; truncating it leaves a flat window
	// whose variance guard breaks the streak, so persistence 2 holds the
	// status at 0.
	values := append(repeat(100, 19), 150)
	win := map[string]Window{"SER_nl": window("SER_nl", values...)}

	ind := statIndicator("nl", 2)
	ind.Series = []string{"SER_nl"}
	row := e.Evaluate(ind, win)

	assert.Equal(t, StatusNeutral, row.Status)
	assert.Equal(t, 1, row.Diagnostic.StreakCurrent)
	assert.Equal(t, 2, row.Diagnostic.StreakRequired)
}

func TestEvaluate_ThresholdPersistenceBoundary(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())
	rule := registry.ThresholdRule{Op: ">", Value: 0}

	base := repeat(-5, 17)

	testCases := []struct {
		name     string
		tail     []float64
		expected Status
		streak   int
	}{
		{"sustained_n_minus_1_does_not_flip", []float64{3, 4}, StatusNeutral, 2},
		{"sustained_n_flips", []float64{2, 3, 4}, StatusNegative, 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ind := thresholdIndicator("sofr_iorb", 3, rule)
			values := append(append([]float64{}, base...), tc.tail...)
			row := e.Evaluate(ind, map[string]Window{"SER_sofr_iorb": window("SER_sofr_iorb", values...)})

			assert.Equal(t, tc.expected, row.Status)
			assert.Equal(t, tc.streak, row.Diagnostic.StreakCurrent)
		})
	}
}

func TestEvaluate_SpreadAlignsDatesWithoutInterpolation(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())

	sofr := window("SOFR", 5.30, 5.31, 5.33, 5.35)
	// IORB missing the second date entirely; that date must be dropped,
	// not filled.
	iorb := Window{sofr[0], sofr[2], sofr[3]}
	for i := range iorb {
		iorb[i].SeriesID = "IORB"
		iorb[i].Value = 5.30
	}

	ind := mustRegister(&registry.Indicator{
		ID:             "sofr_iorb",
		Name:           "SOFR-IORB",
		Category:       registry.CategoryFloor,
		Series:         []string{"SOFR", "IORB"},
		Cadence:        registry.CadenceDaily,
		Directionality: registry.HigherIsDraining,
		Scoring:        registry.ScoringThreshold,
		Persistence:    2,
		Threshold:      &registry.ThresholdRule{Op: ">", Value: 0, SpreadOf: []string{"SOFR", "IORB"}},
		Trigger:        "spread > 0 persisting",
	})

	row := e.Evaluate(ind, map[string]Window{"SOFR": sofr, "IORB": iorb})

	// Aligned spread: 0.00, 0.03, 0.05 -> last two breach, persistence 2.
	assert.Equal(t, 3, row.Diagnostic.WindowSize)
	assert.Equal(t, StatusNegative, row.Status)
	require.NotNil(t, row.Value)
	assert.InDelta(t, 0.05, *row.Value, 1e-9)
}

func TestEvaluate_DerivedCompositeStepAlignsWeeklyTerm(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())

	// Daily drain series over six days.
	tga := window("TGA", 10, 10, 10, 10, 10, 10)
	// Weekly balance series observed only on days 2 and 5.
	walcl := Window{tga[2], tga[5]}
	for i := range walcl {
		walcl[i].SeriesID = "WALCL"
	}
	walcl[0].Value = 100
	walcl[1].Value = 90

	ind := mustRegister(&registry.Indicator{
		ID:             "net_liq",
		Name:           "Net liquidity",
		Category:       registry.CategoryCore,
		Cadence:        registry.CadenceDaily,
		Directionality: registry.HigherIsSupportive,
		Scoring:        registry.ScoringStatistical,
		Persistence:    1,
		Derived: []registry.DerivedTerm{
			{Series: "TGA", Coefficient: -1},
			{Series: "WALCL", Coefficient: 1},
		},
		Trigger: "|z20| >= 1.0",
	})

	row := e.Evaluate(ind, map[string]Window{"TGA": tga, "WALCL": walcl})

	// Days 0-1 precede the first WALCL print and are dropped; days 2-4 use
	// the day-2 print, day 5 the day-5 print.
	assert.Equal(t, 4, row.Diagnostic.WindowSize)
	require.NotNil(t, row.Value)
	assert.InDelta(t, 80.0, *row.Value, 1e-9)
}

func TestEvaluate_FrozenInputsRecordConsumedVintages(t *testing.T) {
	e := NewEvaluator(DefaultEvaluatorConfig())
	ind := statIndicator("reserves", 1)

	row := e.Evaluate(ind, map[string]Window{"SER_reserves": window("SER_reserves", repeat(1, 20)...)})

	require.Len(t, row.Inputs, 1)
	assert.Equal(t, "reserves", row.Inputs[0].IndicatorID)
	assert.Equal(t, "SER_reserves", row.Inputs[0].SeriesID)
	assert.Equal(t, "v1", row.Inputs[0].VintageID)
	assert.NotEmpty(t, row.Inputs[0].ObservationDate)
}

func TestWinsorize_ClipsExtremes(t *testing.T) {
	values := append(repeat(10, 38), -1000, 1000)
	clipped := winsorize(values, 0.025, 0.975)

	lo, hi := clipped[0], clipped[0]
	for _, v := range clipped {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	assert.Greater(t, lo, -1000.0)
	assert.Less(t, hi, 1000.0)

	// Interior values are untouched.
	assert.Equal(t, 10.0, clipped[5])
}
