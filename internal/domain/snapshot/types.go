// Package snapshot implements the liquidity snapshot compute engine: the
// window/z-score and threshold evaluator, the concept-bucket aggregator, the
// category-weighted regime scorer, the marginal-contribution router selector,
// the staleness guard, and the snapshot builder. Everything here is pure
// computation over immutable inputs; replaying the same frozen input set
// yields a byte-identical snapshot.
package snapshot

import (
	"time"

	"github.com/ze-codes/invest-agent/internal/domain/registry"
)

// Status is the qualitative contribution of one indicator at one instant.
type Status string

const (
	StatusPositive     Status = "+1"
	StatusNeutral      Status = "0"
	StatusNegative     Status = "-1"
	StatusNotAvailable Status = "n/a"
)

// Contribution maps a status to its numeric contribution. Not-available
// indicators contribute nothing anywhere; callers must exclude them before
// aggregating.
func (s Status) Contribution() float64 {
	switch s {
	case StatusPositive:
		return +1
	case StatusNegative:
		return -1
	}
	return 0
}

func statusFromSign(sign int) Status {
	switch {
	case sign > 0:
		return StatusPositive
	case sign < 0:
		return StatusNegative
	}
	return StatusNeutral
}

// Observation is one immutable point-in-time value of a series.
type Observation struct {
	SeriesID        string    `json:"series_id"`
	ObservationDate time.Time `json:"observation_date"`
	Value           float64   `json:"value"`
	VintageID       string    `json:"vintage_id,omitempty"`
	PublicationTime time.Time `json:"publication_time,omitempty"`
	FetchedAt       time.Time `json:"fetched_at,omitempty"`
}

// Window is a time-ascending sequence of observations for one series. Gaps
// are absence; the engine never interpolates.
type Window []Observation

// Latest returns the most recent observation, or false on an empty window.
func (w Window) Latest() (Observation, bool) {
	if len(w) == 0 {
		return Observation{}, false
	}
	return w[len(w)-1], true
}

// Diagnostic carries the statistical trace for one evaluation. It is
// populated for both rule families so downstream consumers can always
// display "why".
type Diagnostic struct {
	Z              *float64 `json:"z,omitempty"`
	Mean           float64  `json:"mean,omitempty"`
	StdDev         float64  `json:"std_dev,omitempty"`
	WindowSize     int      `json:"window_size"`
	VarianceGuard  bool     `json:"variance_guard,omitempty"`
	GuardReason    string   `json:"guard_reason,omitempty"`
	StreakCurrent  int      `json:"streak_current"`
	StreakRequired int      `json:"streak_required"`
}

// PersistenceSatisfied reports whether the streak requirement is met.
func (d Diagnostic) PersistenceSatisfied() bool {
	return d.StreakRequired > 0 && d.StreakCurrent >= d.StreakRequired
}

// Provenance records where an evidence row's numbers came from.
type Provenance struct {
	Series          []string  `json:"series"`
	ObservationDate time.Time `json:"observation_date,omitempty"`
	PublicationTime time.Time `json:"publication_time,omitempty"`
	FetchedAt       time.Time `json:"fetched_at,omitempty"`
	VintageID       string    `json:"vintage_id,omitempty"`
}

// EvidenceRow is the per-indicator output of the evaluator.
type EvidenceRow struct {
	IndicatorID string            `json:"id"`
	Category    registry.Category `json:"category"`
	Value       *float64          `json:"value,omitempty"`
	WindowLabel string            `json:"window,omitempty"`
	Status      Status            `json:"status"`
	FlipTrigger string            `json:"flip_trigger"`
	Diagnostic  Diagnostic        `json:"diagnostic"`
	Provenance  Provenance        `json:"provenance"`
	Inputs      []FrozenInput     `json:"-"`
}

// BucketMember is one indicator's record inside a concept bucket.
type BucketMember struct {
	IndicatorID      string   `json:"id"`
	Status           Status   `json:"status"`
	Contribution     float64  `json:"contribution"`
	Z                *float64 `json:"z,omitempty"`
	Marginal         float64  `json:"marginal_contribution"`
	IsRoot           bool     `json:"is_root"`
	IsRepresentative bool     `json:"is_representative"`
	Suppressed       bool     `json:"suppressed"`
}

// BucketRecord is one canonical concept bucket's aggregate plus its full
// member detail, suppressed duplicates included.
type BucketRecord struct {
	BucketID         string            `json:"bucket_id"`
	Category         registry.Category `json:"category"`
	Weight           float64           `json:"weight"`
	Aggregate        float64           `json:"aggregate"`
	AggregateStatus  Status            `json:"aggregate_status"`
	RepresentativeID string            `json:"representative_id,omitempty"`
	Members          []BucketMember    `json:"members"`
}

// Regime is the scored outcome: integer score with its attainable maximum,
// qualitative label, and sub-threshold tilt.
type Regime struct {
	Label     string  `json:"label"` // Positive | Neutral | Negative
	Tilt      string  `json:"tilt"`  // positive | negative | flat
	Score     int     `json:"score"`
	MaxScore  int     `json:"max_score"`
	ScoreCont float64 `json:"score_cont"`
}

// RouterPick is one evidence selection with its rationale.
type RouterPick struct {
	IndicatorID    string   `json:"id"`
	Category       registry.Category `json:"category"`
	Why            string   `json:"why"`
	Trigger        string   `json:"trigger"`
	Marginal       float64  `json:"marginal_contribution"`
	DuplicatesNote []string `json:"duplicates_note,omitempty"`
}

// FrozenInput is one (indicator, series, vintage) tuple consumed by an
// evaluation. The sorted tuple list identifies a snapshot's exact inputs.
type FrozenInput struct {
	IndicatorID     string `json:"indicator_id"`
	SeriesID        string `json:"series_id"`
	VintageID       string `json:"vintage_id,omitempty"`
	ObservationDate string `json:"observation_date,omitempty"`
}

// Snapshot is the immutable result of one evaluation run. It is never
// mutated after Build; later runs supersede it rather than overwrite it.
type Snapshot struct {
	AsOf           time.Time     `json:"as_of"`
	Horizon        string        `json:"horizon"`
	FrozenInputsID string        `json:"frozen_inputs_id"`
	Regime         Regime        `json:"regime"`
	Evidence       []EvidenceRow `json:"indicators"`
	Buckets        []BucketRecord `json:"bucket_details"`
	Picks          []RouterPick  `json:"router_picks"`
	FrozenInputs   []FrozenInput `json:"frozen_inputs"`
	StaleCount     int           `json:"stale_count"`
}

// AbstainResult is the deliberate, success-shaped refusal to score when too
// many core indicators are stale. It is not an error.
type AbstainResult struct {
	AsOf           time.Time `json:"as_of"`
	Horizon        string    `json:"horizon"`
	Reason         string    `json:"reason"`
	StaleCore      []string  `json:"stale_core"`
	FrozenInputsID string    `json:"frozen_inputs_id,omitempty"`
}

// Outcome is either a snapshot or an abstention, never both.
type Outcome struct {
	Snapshot *Snapshot      `json:"snapshot,omitempty"`
	Abstain  *AbstainResult `json:"abstain,omitempty"`
}

// Abstained reports whether the run refused to score.
func (o *Outcome) Abstained() bool { return o.Abstain != nil }
