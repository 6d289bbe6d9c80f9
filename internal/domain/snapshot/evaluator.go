package snapshot

import (
	"math"
	"sort"
	"time"

	"github.com/ze-codes/invest-agent/internal/domain/registry"
)

// EvaluatorConfig holds the tunable constants of the window/score evaluator.
// All thresholds are named here rather than inlined because they are tuned
// empirically.
type EvaluatorConfig struct {
	ZWindow         int     `yaml:"z_window"`          // lookback for the z computation
	MinObservations int     `yaml:"min_observations"`  // below this, z is forced to 0
	WinsorLower     float64 `yaml:"winsor_lower"`      // lower clip percentile
	WinsorUpper     float64 `yaml:"winsor_upper"`      // upper clip percentile
	VarianceEpsAbs  float64 `yaml:"variance_eps_abs"`  // absolute stddev floor
	VarianceEpsRel  float64 `yaml:"variance_eps_rel"`  // stddev floor relative to |mean|
}

// DefaultEvaluatorConfig returns the evaluator defaults.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		ZWindow:         20,
		MinObservations: 20,
		WinsorLower:     0.025,
		WinsorUpper:     0.975,
		VarianceEpsAbs:  1e-6,
		VarianceEpsRel:  1e-3,
	}
}

// Evaluator computes per-indicator statuses from observation windows. It is
// stateless; the same inputs always produce the same row.
type Evaluator struct {
	cfg EvaluatorConfig
}

// NewEvaluator creates an evaluator with the given config. MinObservations
// has an absolute floor of 3; fewer points cannot support a dispersion
// estimate.
func NewEvaluator(cfg EvaluatorConfig) *Evaluator {
	if cfg.MinObservations < 3 {
		cfg.MinObservations = 3
	}
	return &Evaluator{cfg: cfg}
}

// Evaluate derives the evidence row for one indicator from the windows of
// its underlying series. An indicator whose scoring window is empty is
// marked not-available; absence is never turned into a zero value.
func (e *Evaluator) Evaluate(ind *registry.Indicator, windows map[string]Window) EvidenceRow {
	row := EvidenceRow{
		IndicatorID: ind.ID,
		Category:    ind.Category,
		Status:      StatusNotAvailable,
		FlipTrigger: ind.Trigger,
		WindowLabel: windowLabel(ind.Cadence),
		Provenance:  Provenance{Series: seriesOf(ind)},
		Diagnostic:  Diagnostic{StreakRequired: ind.Persistence},
	}

	scoring := e.scoringWindow(ind, windows)
	if len(scoring) == 0 {
		return row
	}

	latest := scoring[len(scoring)-1]
	v := latest.Value
	row.Value = &v
	row.Provenance.ObservationDate = latest.ObservationDate
	row.Provenance.PublicationTime = latest.PublicationTime
	row.Provenance.FetchedAt = latest.FetchedAt
	row.Provenance.VintageID = latest.VintageID
	row.Inputs = frozenInputsFor(ind, windows)
	row.Diagnostic.WindowSize = len(scoring)

	switch ind.Scoring {
	case registry.ScoringThreshold:
		e.evaluateThreshold(ind, scoring, &row)
	default:
		e.evaluateStatistical(ind, scoring, &row)
	}
	return row
}

// evaluateStatistical scores by winsorized z. The non-zero status must be
// sustained across the last Persistence truncations of the window.
func (e *Evaluator) evaluateStatistical(ind *registry.Indicator, scoring Window, row *EvidenceRow) {
	values := make([]float64, len(scoring))
	for i, o := range scoring {
		values[i] = o.Value
	}

	z, mean, std, guard, reason := e.zScore(values)
	row.Diagnostic.Mean = mean
	row.Diagnostic.StdDev = std
	row.Diagnostic.VarianceGuard = guard
	row.Diagnostic.GuardReason = reason
	row.Diagnostic.Z = &z

	row.Status = StatusNeutral
	if guard {
		return
	}

	dir := ind.Directionality.Sign()
	latestSign := qualifyingSign(z, ind.ZCutoff, dir)
	if latestSign == 0 {
		return
	}

	// Walk back, recomputing z on each truncated window; the streak breaks
	// on the first truncation that does not qualify with the same sign.
	streak := 1
	for back := 1; back < ind.Persistence && back < len(values); back++ {
		zi, _, _, guardI, _ := e.zScore(values[:len(values)-back])
		if guardI || qualifyingSign(zi, ind.ZCutoff, dir) != latestSign {
			break
		}
		streak++
	}
	row.Diagnostic.StreakCurrent = streak
	if streak >= ind.Persistence {
		row.Status = statusFromSign(latestSign)
	}
}

// evaluateThreshold scores against the fixed boundary; the condition must
// hold for the last Persistence observations.
func (e *Evaluator) evaluateThreshold(ind *registry.Indicator, scoring Window, row *EvidenceRow) {
	rule := ind.Threshold
	row.Status = StatusNeutral

	streak := 0
	for i := len(scoring) - 1; i >= 0; i-- {
		if !compare(scoring[i].Value, rule.Op, rule.Value) {
			break
		}
		streak++
	}
	row.Diagnostic.StreakCurrent = streak
	if streak >= ind.Persistence {
		row.Status = statusFromSign(ind.Directionality.Sign())
	}
}

// scoringWindow resolves the series the rule actually scores: the single
// declared series, the date-aligned spread of two series, or a coefficient
// composite of several series.
func (e *Evaluator) scoringWindow(ind *registry.Indicator, windows map[string]Window) Window {
	if ind.Scoring == registry.ScoringThreshold && ind.Threshold != nil && len(ind.Threshold.SpreadOf) == 2 {
		return spreadWindow(windows[ind.Threshold.SpreadOf[0]], windows[ind.Threshold.SpreadOf[1]])
	}
	if len(ind.Derived) > 0 {
		return derivedWindow(ind.Derived, windows)
	}
	if len(ind.Series) == 0 {
		return nil
	}
	return windows[ind.Series[0]]
}

// spreadWindow returns a-b on the dates both series observe. Dates missing
// from either side are dropped, never filled.
func spreadWindow(a, b Window) Window {
	byDate := make(map[time.Time]Observation, len(b))
	for _, o := range b {
		byDate[dateKey(o.ObservationDate)] = o
	}
	var out Window
	for _, oa := range a {
		ob, ok := byDate[dateKey(oa.ObservationDate)]
		if !ok {
			continue
		}
		out = append(out, Observation{
			SeriesID:        oa.SeriesID + "-" + ob.SeriesID,
			ObservationDate: oa.ObservationDate,
			Value:           oa.Value - ob.Value,
			PublicationTime: laterTime(oa.PublicationTime, ob.PublicationTime),
			FetchedAt:       laterTime(oa.FetchedAt, ob.FetchedAt),
		})
	}
	return out
}

// derivedWindow builds a coefficient composite. Daily terms anchor the date
// grid; weekly terms contribute their most recent observation on or before
// each anchor date (a published value carried at its step, not an
// interpolation). Anchor dates lacking any term are dropped.
func derivedWindow(terms []registry.DerivedTerm, windows map[string]Window) Window {
	if len(terms) == 0 {
		return nil
	}

	// Anchor on the intersection of dates of every term that observes at
	// the densest cadence; sparser terms are step-aligned below.
	anchor := windows[terms[0].Series]
	anchorIdx := 0
	for i, t := range terms[1:] {
		if len(windows[t.Series]) > len(anchor) {
			anchor = windows[t.Series]
			anchorIdx = i + 1
		}
	}

	var out Window
	for _, base := range anchor {
		day := dateKey(base.ObservationDate)
		sum := 0.0
		fetched := time.Time{}
		published := time.Time{}
		ok := true
		for i, t := range terms {
			var obs Observation
			var found bool
			if i == anchorIdx {
				obs, found = base, true
			} else {
				obs, found = latestOnOrBefore(windows[t.Series], day)
			}
			if !found {
				ok = false
				break
			}
			sum += t.Coefficient * obs.Value
			fetched = laterTime(fetched, obs.FetchedAt)
			published = laterTime(published, obs.PublicationTime)
		}
		if !ok {
			continue
		}
		out = append(out, Observation{
			SeriesID:        "derived",
			ObservationDate: base.ObservationDate,
			Value:           sum,
			PublicationTime: published,
			FetchedAt:       fetched,
		})
	}
	return out
}

func latestOnOrBefore(w Window, day time.Time) (Observation, bool) {
	for i := len(w) - 1; i >= 0; i-- {
		if !dateKey(w[i].ObservationDate).After(day) {
			return w[i], true
		}
	}
	return Observation{}, false
}

// zScore computes the winsorized z over the configured lookback. Thin
// history and near-zero dispersion both force z to exactly 0; the guard is
// a normal branch, not an error.
func (e *Evaluator) zScore(values []float64) (z, mean, std float64, guard bool, reason string) {
	vs := values
	if len(vs) > e.cfg.ZWindow {
		vs = vs[len(vs)-e.cfg.ZWindow:]
	}
	if len(vs) < e.cfg.MinObservations {
		return 0, 0, 0, true, "thin_history"
	}

	latest := vs[len(vs)-1]
	clipped := winsorize(vs, e.cfg.WinsorLower, e.cfg.WinsorUpper)
	mean, std = meanStd(clipped)

	eps := math.Max(e.cfg.VarianceEpsAbs, e.cfg.VarianceEpsRel*math.Abs(mean))
	if std < eps {
		return 0, mean, std, true, "low_variance"
	}
	return (latest - mean) / std, mean, std, false, ""
}

func qualifyingSign(z, cutoff float64, dir int) int {
	if math.Abs(z) < cutoff {
		return 0
	}
	if z*float64(dir) > 0 {
		return +1
	}
	return -1
}

// winsorize clips values to the [lower, upper] percentile bounds of the
// slice, using linear interpolation between closest ranks.
func winsorize(values []float64, lower, upper float64) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	lo := percentile(sorted, lower)
	hi := percentile(sorted, upper)

	out := make([]float64, len(values))
	for i, v := range values {
		switch {
		case v < lo:
			out[i] = lo
		case v > hi:
			out[i] = hi
		default:
			out[i] = v
		}
	}
	return out
}

// percentile expects sorted input and interpolates linearly between ranks.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	i := int(math.Floor(pos))
	if i >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(i)
	return sorted[i] + frac*(sorted[i+1]-sorted[i])
}

func meanStd(values []float64) (mean, std float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / n
	if n < 2 {
		return mean, 0
	}
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / (n - 1))
}

func compare(v float64, op string, bound float64) bool {
	switch op {
	case ">":
		return v > bound
	case ">=":
		return v >= bound
	case "<":
		return v < bound
	case "<=":
		return v <= bound
	}
	return false
}

func frozenInputsFor(ind *registry.Indicator, windows map[string]Window) []FrozenInput {
	var inputs []FrozenInput
	for _, sid := range seriesOf(ind) {
		latest, ok := windows[sid].Latest()
		if !ok {
			continue
		}
		inputs = append(inputs, FrozenInput{
			IndicatorID:     ind.ID,
			SeriesID:        sid,
			VintageID:       latest.VintageID,
			ObservationDate: latest.ObservationDate.Format("2006-01-02"),
		})
	}
	return inputs
}

// seriesOf lists every underlying series an indicator consumes, in a stable
// order.
func seriesOf(ind *registry.Indicator) []string {
	seen := map[string]bool{}
	var out []string
	add := func(sid string) {
		if sid != "" && !seen[sid] {
			seen[sid] = true
			out = append(out, sid)
		}
	}
	for _, s := range ind.Series {
		add(s)
	}
	if ind.Threshold != nil {
		for _, s := range ind.Threshold.SpreadOf {
			add(s)
		}
	}
	for _, t := range ind.Derived {
		add(t.Series)
	}
	return out
}

func windowLabel(c registry.Cadence) string {
	if c == registry.CadenceWeekly {
		return "w"
	}
	return "d"
}

func dateKey(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func laterTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
