package snapshot

import (
	"math"
	"sort"

	"github.com/ze-codes/invest-agent/internal/domain/registry"
)

// Aggregator groups evidence rows into canonical concept buckets so that
// overlapping indicators never double-count the regime score.
type Aggregator struct {
	reg *registry.Registry
}

// NewAggregator creates a bucket aggregator over the given registry.
func NewAggregator(reg *registry.Registry) *Aggregator {
	return &Aggregator{reg: reg}
}

// Aggregate groups rows by canonical bucket and folds member contributions
// into one score per bucket. Not-available rows are excluded entirely: they
// neither count toward nor zero out a bucket, and a bucket left with no
// available members is dropped so the scorer can renormalize weights.
// Buckets are returned in lexicographic bucket-id order.
func (a *Aggregator) Aggregate(rows []EvidenceRow) []BucketRecord {
	byBucket := make(map[string][]EvidenceRow)
	for _, row := range rows {
		if row.Status == StatusNotAvailable {
			continue
		}
		ind, ok := a.reg.Get(row.IndicatorID)
		if !ok {
			continue
		}
		byBucket[ind.BucketID()] = append(byBucket[ind.BucketID()], row)
	}

	buckets := make([]BucketRecord, 0, len(byBucket))
	for bucketID, members := range byBucket {
		sort.Slice(members, func(i, j int) bool { return members[i].IndicatorID < members[j].IndicatorID })

		rec := BucketRecord{BucketID: bucketID, Category: a.bucketCategory(bucketID, members)}
		for _, m := range members {
			rec.Members = append(rec.Members, BucketMember{
				IndicatorID:  m.IndicatorID,
				Status:       m.Status,
				Contribution: m.Status.Contribution(),
				Z:            m.Diagnostic.Z,
				IsRoot:       m.IndicatorID == bucketID,
			})
		}
		rec.Aggregate = aggregateMembers(rec.Members)
		rec.AggregateStatus = statusFromSign(signOf(rec.Aggregate))
		buckets = append(buckets, rec)
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].BucketID < buckets[j].BucketID })
	return buckets
}

// bucketCategory takes the root indicator's category, falling back to the
// first member when the root itself is not in the registry.
func (a *Aggregator) bucketCategory(bucketID string, members []EvidenceRow) registry.Category {
	if root, ok := a.reg.Get(bucketID); ok {
		return root.Category
	}
	return members[0].Category
}

// aggregateMembers folds member contributions into the bucket score. When
// every member carries a z diagnostic, contributions are weighted by |z| as
// an inverse-dispersion proxy; mixed or threshold-only buckets use the
// simple mean so deterministic rules are not drowned out.
func aggregateMembers(members []BucketMember) float64 {
	if len(members) == 0 {
		return 0
	}

	allStatistical := true
	weightSum := 0.0
	for _, m := range members {
		if m.Z == nil {
			allStatistical = false
			break
		}
		weightSum += math.Abs(*m.Z)
	}

	if allStatistical && weightSum > 0 {
		sum := 0.0
		for _, m := range members {
			sum += math.Abs(*m.Z) * m.Contribution
		}
		return sum / weightSum
	}

	sum := 0.0
	for _, m := range members {
		sum += m.Contribution
	}
	return sum / float64(len(members))
}

// aggregateExcluding recomputes the bucket aggregate without one member. An
// excluded sole member leaves an empty bucket, which scores 0.
func aggregateExcluding(members []BucketMember, excludeID string) float64 {
	rest := make([]BucketMember, 0, len(members))
	for _, m := range members {
		if m.IndicatorID != excludeID {
			rest = append(rest, m)
		}
	}
	return aggregateMembers(rest)
}

func signOf(v float64) int {
	switch {
	case v > 0:
		return +1
	case v < 0:
		return -1
	}
	return 0
}
