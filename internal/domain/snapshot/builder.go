package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// FrozenInputsID derives the content identity of an input set: the sha256
// of the canonically serialized, sorted tuple list. Two evaluations that
// consumed identical tuples get the identical id, independent of process,
// wall clock, or tuple arrival order.
func FrozenInputsID(inputs []FrozenInput) string {
	sorted := make([]FrozenInput, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.IndicatorID != b.IndicatorID {
			return a.IndicatorID < b.IndicatorID
		}
		if a.SeriesID != b.SeriesID {
			return a.SeriesID < b.SeriesID
		}
		if a.ObservationDate != b.ObservationDate {
			return a.ObservationDate < b.ObservationDate
		}
		return a.VintageID < b.VintageID
	})

	h := sha256.New()
	for _, in := range sorted {
		fmt.Fprintf(h, "%s|%s|%s|%s\n", in.IndicatorID, in.SeriesID, in.VintageID, in.ObservationDate)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Builder assembles the immutable snapshot. It performs no business logic:
// everything it receives was computed upstream, and identical inputs always
// assemble into an identical snapshot.
type Builder struct{}

// NewBuilder creates a snapshot builder.
func NewBuilder() *Builder { return &Builder{} }

// BuildInputs carries the evaluated pieces into assembly.
type BuildInputs struct {
	AsOf         time.Time
	Horizon      string
	Regime       Regime
	Rows         []EvidenceRow
	Buckets      []BucketRecord
	Picks        []RouterPick
	FrozenInputs []FrozenInput
	StaleCount   int
	Full         bool
}

// Build assembles the final snapshot. In default mode the evidence list
// holds the router's picks in pick order; full mode returns every available
// row in indicator order instead.
func (b *Builder) Build(in BuildInputs) *Snapshot {
	rowByID := make(map[string]EvidenceRow, len(in.Rows))
	for _, r := range in.Rows {
		rowByID[r.IndicatorID] = r
	}

	var evidence []EvidenceRow
	if in.Full {
		evidence = make([]EvidenceRow, 0, len(in.Rows))
		for _, r := range in.Rows {
			if r.Status != StatusNotAvailable {
				evidence = append(evidence, r)
			}
		}
		sort.Slice(evidence, func(i, j int) bool { return evidence[i].IndicatorID < evidence[j].IndicatorID })
	} else {
		evidence = make([]EvidenceRow, 0, len(in.Picks))
		for _, p := range in.Picks {
			if r, ok := rowByID[p.IndicatorID]; ok {
				evidence = append(evidence, r)
			}
		}
	}

	frozen := make([]FrozenInput, len(in.FrozenInputs))
	copy(frozen, in.FrozenInputs)
	sort.Slice(frozen, func(i, j int) bool {
		a, c := frozen[i], frozen[j]
		if a.IndicatorID != c.IndicatorID {
			return a.IndicatorID < c.IndicatorID
		}
		return a.SeriesID < c.SeriesID
	})

	return &Snapshot{
		AsOf:           in.AsOf,
		Horizon:        in.Horizon,
		FrozenInputsID: FrozenInputsID(in.FrozenInputs),
		Regime:         in.Regime,
		Evidence:       evidence,
		Buckets:        in.Buckets,
		Picks:          in.Picks,
		FrozenInputs:   frozen,
		StaleCount:     in.StaleCount,
	}
}
