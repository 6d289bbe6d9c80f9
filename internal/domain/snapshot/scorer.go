package snapshot

import (
	"math"
	"sort"

	"github.com/ze-codes/invest-agent/internal/domain/registry"
)

// ScorerConfig names every tunable of the regime scorer.
type ScorerConfig struct {
	Weights           map[registry.Category]float64 `yaml:"weights"`
	PositiveThreshold int                           `yaml:"positive_threshold"` // score >= this -> Positive
	NegativeThreshold int                           `yaml:"negative_threshold"` // score <= this -> Negative
	TiltDeadband      float64                       `yaml:"tilt_deadband"`      // |cont| <= this -> flat
}

// DefaultScorerConfig returns the default category weights and thresholds.
func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Weights: map[registry.Category]float64{
			registry.CategoryCore:   0.50,
			registry.CategoryFloor:  0.30,
			registry.CategorySupply: 0.20,
		},
		PositiveThreshold: 2,
		NegativeThreshold: -2,
		TiltDeadband:      0.25,
	}
}

// Validate rejects weight tables that could never score anything.
func (c ScorerConfig) Validate() error {
	total := 0.0
	for cat, w := range c.Weights {
		if w < 0 {
			return &registry.ConfigError{Entry: string(cat), Reason: "negative category weight"}
		}
		total += w
	}
	if total <= 0 {
		return &registry.ConfigError{Reason: "category weights sum to zero"}
	}
	return nil
}

// Regime labels.
const (
	LabelPositive = "Positive"
	LabelNeutral  = "Neutral"
	LabelNegative = "Negative"
)

// Tilt values.
const (
	TiltPositive = "positive"
	TiltNegative = "negative"
	TiltFlat     = "flat"
)

// Scorer turns bucket aggregates into the regime score, label, and tilt.
type Scorer struct {
	cfg ScorerConfig
}

// NewScorer creates a scorer; the config must already be validated.
func NewScorer(cfg ScorerConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score averages bucket aggregates within each category, applies category
// weights renormalized over the categories actually present, and maps the
// result to an integer score, label, and tilt. It also stamps the effective
// per-bucket weight onto each record for the response payload.
//
// A category with no available buckets drops out and the remaining weights
// rescale to sum to 1, so omission never biases the score toward either
// polarity. MaxScore is the count of scored buckets; the integer score is
// the weighted sum stretched onto that scale.
func (s *Scorer) Score(buckets []BucketRecord) Regime {
	byCategory := make(map[registry.Category][]int)
	scored := 0
	for i, b := range buckets {
		if s.cfg.Weights[b.Category] <= 0 {
			continue
		}
		byCategory[b.Category] = append(byCategory[b.Category], i)
		scored++
	}

	totalWeight := 0.0
	for cat := range byCategory {
		totalWeight += s.cfg.Weights[cat]
	}

	cont := 0.0
	if totalWeight > 0 {
		// Deterministic iteration over present categories.
		cats := make([]registry.Category, 0, len(byCategory))
		for cat := range byCategory {
			cats = append(cats, cat)
		}
		sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

		for _, cat := range cats {
			idxs := byCategory[cat]
			w := s.cfg.Weights[cat] / totalWeight
			catSum := 0.0
			for _, i := range idxs {
				buckets[i].Weight = w
				catSum += buckets[i].Aggregate
			}
			cont += w * (catSum / float64(len(idxs)))
		}
	}

	maxScore := scored
	if maxScore < 1 {
		maxScore = 1
	}
	score := int(math.Round(cont * float64(maxScore)))

	label := LabelNeutral
	switch {
	case score >= s.cfg.PositiveThreshold:
		label = LabelPositive
	case score <= s.cfg.NegativeThreshold:
		label = LabelNegative
	}

	tilt := TiltFlat
	switch {
	case cont > s.cfg.TiltDeadband:
		tilt = TiltPositive
	case cont < -s.cfg.TiltDeadband:
		tilt = TiltNegative
	}

	return Regime{Label: label, Tilt: tilt, Score: score, MaxScore: maxScore, ScoreCont: cont}
}
