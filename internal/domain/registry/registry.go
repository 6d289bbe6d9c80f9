// Package registry holds the versioned indicator definitions that drive the
// snapshot compute engine: scoring rule, directionality, persistence,
// category, and the duplicate-of links that form concept buckets. Definitions
// are validated once at load time; evaluation never revalidates.
package registry

import (
	"fmt"
	"sort"
)

// Category classifies an indicator for weighting and router quotas.
type Category string

const (
	CategoryCore   Category = "core"
	CategoryFloor  Category = "floor"
	CategorySupply Category = "supply"
	CategoryStress Category = "stress"
)

// Scoring selects the rule family used to derive an indicator's status.
type Scoring string

const (
	ScoringStatistical Scoring = "statistical"
	ScoringThreshold   Scoring = "threshold"
)

// Directionality maps an indicator's raw movement onto regime polarity.
type Directionality string

const (
	HigherIsSupportive Directionality = "higher_is_supportive"
	HigherIsDraining   Directionality = "higher_is_draining"
	LowerIsSupportive  Directionality = "lower_is_supportive"
)

// Sign returns +1 when higher values support liquidity, -1 otherwise.
func (d Directionality) Sign() int {
	if d == HigherIsDraining || d == LowerIsSupportive {
		return -1
	}
	return +1
}

// Cadence is the expected publication frequency of an indicator's series.
type Cadence string

const (
	CadenceDaily  Cadence = "daily"
	CadenceWeekly Cadence = "weekly"
)

// ThresholdRule is the fixed numeric boundary for threshold-scored
// indicators. When SpreadOf names two series, the evaluated value is the
// date-aligned difference first-minus-second.
type ThresholdRule struct {
	Op       string   `yaml:"op"` // one of > >= < <=
	Value    float64  `yaml:"value"`
	SpreadOf []string `yaml:"spread_of,omitempty"`
}

// DerivedTerm contributes coefficient*series to a derived composite series.
type DerivedTerm struct {
	Series      string  `yaml:"series"`
	Coefficient float64 `yaml:"coefficient"`
}

// Indicator is one immutable registry entry.
type Indicator struct {
	ID             string         `yaml:"id"`
	Name           string         `yaml:"name"`
	Category       Category       `yaml:"category"`
	Series         []string       `yaml:"series"`
	Cadence        Cadence        `yaml:"cadence"`
	Directionality Directionality `yaml:"directionality"`
	Scoring        Scoring        `yaml:"scoring"`
	ZCutoff        float64        `yaml:"z_cutoff,omitempty"`
	Persistence    int            `yaml:"persistence,omitempty"`
	DuplicatesOf   string         `yaml:"duplicates_of,omitempty"`
	Threshold      *ThresholdRule `yaml:"threshold,omitempty"`
	Derived        []DerivedTerm  `yaml:"derived,omitempty"`
	Trigger        string         `yaml:"trigger"`
	Notes          string         `yaml:"notes,omitempty"`

	// bucketID is the eagerly resolved canonical bucket, set by New.
	bucketID string
}

// BucketID returns the canonical concept bucket this indicator resolves to
// (itself when it names no duplicate-of target).
func (i *Indicator) BucketID() string { return i.bucketID }

// DefaultZCutoff is applied when a statistical indicator omits z_cutoff.
const DefaultZCutoff = 1.0

// Persistence defaults: floor indicators demand one extra confirming print.
const (
	DefaultPersistence      = 2
	DefaultFloorPersistence = 3
)

// ConfigError marks a malformed registry or weight table. It is fatal at
// load time; no evaluation may start once one is raised.
type ConfigError struct {
	Entry  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Entry == "" {
		return fmt.Sprintf("registry config: %s", e.Reason)
	}
	return fmt.Sprintf("registry config: %s: %s", e.Entry, e.Reason)
}

// Registry is the validated, immutable set of indicator definitions.
type Registry struct {
	indicators []*Indicator
	byID       map[string]*Indicator
}

// New validates definitions, applies defaults, resolves every indicator to
// its canonical bucket, and returns the frozen registry. The duplicate-of
// graph must be acyclic with known targets.
func New(defs []*Indicator) (*Registry, error) {
	byID := make(map[string]*Indicator, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return nil, &ConfigError{Reason: "indicator with empty id"}
		}
		if _, dup := byID[d.ID]; dup {
			return nil, &ConfigError{Entry: d.ID, Reason: "duplicate indicator id"}
		}
		byID[d.ID] = d
	}

	for _, d := range defs {
		if err := validate(d, byID); err != nil {
			return nil, err
		}
		applyDefaults(d)
	}

	// Resolve the duplicate-of graph eagerly, rejecting cycles.
	for _, d := range defs {
		root, err := resolveRoot(d, byID)
		if err != nil {
			return nil, err
		}
		d.bucketID = root
	}

	sorted := make([]*Indicator, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(a, b int) bool { return sorted[a].ID < sorted[b].ID })

	return &Registry{indicators: sorted, byID: byID}, nil
}

// Indicators returns all definitions in deterministic (lexicographic) order.
func (r *Registry) Indicators() []*Indicator { return r.indicators }

// Get looks up one definition by id.
func (r *Registry) Get(id string) (*Indicator, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Len reports the number of definitions.
func (r *Registry) Len() int { return len(r.indicators) }

func validate(d *Indicator, byID map[string]*Indicator) error {
	switch d.Category {
	case CategoryCore, CategoryFloor, CategorySupply, CategoryStress:
	default:
		return &ConfigError{Entry: d.ID, Reason: fmt.Sprintf("unknown category %q", d.Category)}
	}
	switch d.Scoring {
	case ScoringStatistical, ScoringThreshold:
	default:
		return &ConfigError{Entry: d.ID, Reason: fmt.Sprintf("unknown scoring mode %q", d.Scoring)}
	}
	switch d.Directionality {
	case HigherIsSupportive, HigherIsDraining, LowerIsSupportive:
	default:
		return &ConfigError{Entry: d.ID, Reason: fmt.Sprintf("unknown directionality %q", d.Directionality)}
	}
	switch d.Cadence {
	case CadenceDaily, CadenceWeekly:
	default:
		return &ConfigError{Entry: d.ID, Reason: fmt.Sprintf("unknown cadence %q", d.Cadence)}
	}
	if len(d.Series) == 0 && len(d.Derived) == 0 {
		return &ConfigError{Entry: d.ID, Reason: "no series declared"}
	}
	if d.Scoring == ScoringThreshold {
		if d.Threshold == nil {
			return &ConfigError{Entry: d.ID, Reason: "threshold scoring without a threshold rule"}
		}
		switch d.Threshold.Op {
		case ">", ">=", "<", "<=":
		default:
			return &ConfigError{Entry: d.ID, Reason: fmt.Sprintf("unknown threshold operator %q", d.Threshold.Op)}
		}
		if n := len(d.Threshold.SpreadOf); n != 0 && n != 2 {
			return &ConfigError{Entry: d.ID, Reason: "threshold spread_of must name exactly two series"}
		}
	}
	if d.DuplicatesOf != "" {
		if _, ok := byID[d.DuplicatesOf]; !ok {
			return &ConfigError{Entry: d.ID, Reason: fmt.Sprintf("duplicates_of target %q not in registry", d.DuplicatesOf)}
		}
	}
	if d.Persistence < 0 {
		return &ConfigError{Entry: d.ID, Reason: "negative persistence"}
	}
	return nil
}

func applyDefaults(d *Indicator) {
	if d.Persistence == 0 {
		if d.Category == CategoryFloor {
			d.Persistence = DefaultFloorPersistence
		} else {
			d.Persistence = DefaultPersistence
		}
	}
	if d.Scoring == ScoringStatistical && d.ZCutoff == 0 {
		d.ZCutoff = DefaultZCutoff
	}
}

func resolveRoot(d *Indicator, byID map[string]*Indicator) (string, error) {
	seen := map[string]bool{d.ID: true}
	cur := d
	for cur.DuplicatesOf != "" {
		next := byID[cur.DuplicatesOf]
		if seen[next.ID] {
			return "", &ConfigError{Entry: d.ID, Reason: fmt.Sprintf("duplicates_of cycle through %q", next.ID)}
		}
		seen[next.ID] = true
		cur = next
	}
	return cur.ID, nil
}
