package snapshot

import (
	"math"
	"sort"

	"github.com/ze-codes/invest-agent/internal/domain/registry"
)

// RouterConfig bounds the evidence set the router returns.
type RouterConfig struct {
	K      int                       `yaml:"k"`      // default pick count
	MinK   int                       `yaml:"min_k"`  // lowest allowed override
	MaxK   int                       `yaml:"max_k"`  // highest allowed override
	Quotas map[registry.Category]int `yaml:"quotas"` // per-category minimums filled first
}

// DefaultRouterConfig returns the default quotas and K bounds.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		K:    8,
		MinK: 6,
		MaxK: 10,
		Quotas: map[registry.Category]int{
			registry.CategoryCore:   3,
			registry.CategoryFloor:  2,
			registry.CategorySupply: 1,
			registry.CategoryStress: 1,
		},
	}
}

// ClampK folds a caller override into the allowed range; 0 means default.
func (c RouterConfig) ClampK(k int) int {
	if k == 0 {
		k = c.K
	}
	if k < c.MinK {
		k = c.MinK
	}
	if k > c.MaxK {
		k = c.MaxK
	}
	return k
}

// quotaOrder fixes the category fill order; map iteration must never decide
// pick order.
var quotaOrder = []registry.Category{
	registry.CategoryCore,
	registry.CategoryFloor,
	registry.CategorySupply,
	registry.CategoryStress,
}

// Router ranks indicators by marginal contribution and picks a bounded,
// quota-respecting evidence set.
type Router struct {
	cfg RouterConfig
	reg *registry.Registry
}

// NewRouter creates a router over the given registry.
func NewRouter(cfg RouterConfig, reg *registry.Registry) *Router {
	return &Router{cfg: cfg, reg: reg}
}

type candidate struct {
	indicatorID string
	bucketIdx   int
	category    registry.Category
	marginal    float64
	satisfied   bool
	persistence int
}

// Select annotates every bucket member with its marginal contribution,
// chooses one representative per bucket, and returns at most k picks:
// per-category quotas filled first from each category's strongest
// representatives, remaining slots filled globally. Not-available
// indicators never reach this point. The ordering is total and
// deterministic; storage order is never relied on.
func (r *Router) Select(buckets []BucketRecord, rows map[string]EvidenceRow, k int) []RouterPick {
	k = r.cfg.ClampK(k)

	candidates := make([]candidate, 0, len(buckets))
	for bi := range buckets {
		b := &buckets[bi]

		// Marginal contribution by inclusion/exclusion comparison.
		for mi := range b.Members {
			m := &b.Members[mi]
			m.Marginal = math.Abs(b.Aggregate - aggregateExcluding(b.Members, m.IndicatorID))
		}

		repIdx := r.representative(b.Members, rows)
		if repIdx < 0 {
			continue
		}
		for mi := range b.Members {
			b.Members[mi].IsRepresentative = mi == repIdx
			b.Members[mi].Suppressed = mi != repIdx
		}
		rep := b.Members[repIdx]
		b.RepresentativeID = rep.IndicatorID

		diag := rows[rep.IndicatorID].Diagnostic
		candidates = append(candidates, candidate{
			indicatorID: rep.IndicatorID,
			bucketIdx:   bi,
			category:    b.Category,
			marginal:    rep.Marginal,
			satisfied:   diag.PersistenceSatisfied(),
			persistence: diag.StreakRequired,
		})
	}

	sort.Slice(candidates, func(i, j int) bool { return lessCandidate(candidates[i], candidates[j]) })

	picked := make(map[string]bool, k)
	var order []candidate

	// Quota pass.
	for _, cat := range quotaOrder {
		quota := r.cfg.Quotas[cat]
		for _, c := range candidates {
			if quota == 0 || len(order) == k {
				break
			}
			if c.category != cat || picked[c.indicatorID] {
				continue
			}
			picked[c.indicatorID] = true
			order = append(order, c)
			quota--
		}
	}

	// Global fill by descending marginal contribution.
	for _, c := range candidates {
		if len(order) == k {
			break
		}
		if picked[c.indicatorID] {
			continue
		}
		picked[c.indicatorID] = true
		order = append(order, c)
	}

	picks := make([]RouterPick, 0, len(order))
	for _, c := range order {
		picks = append(picks, r.pick(c, buckets[c.bucketIdx]))
	}
	return picks
}

// representative returns the index of the member with the largest marginal
// contribution, breaking ties like the pick ordering does.
func (r *Router) representative(members []BucketMember, rows map[string]EvidenceRow) int {
	best := -1
	for i, m := range members {
		if best < 0 {
			best = i
			continue
		}
		b := members[best]
		bd := rows[b.IndicatorID].Diagnostic
		md := rows[m.IndicatorID].Diagnostic
		a := candidate{indicatorID: m.IndicatorID, marginal: m.Marginal, satisfied: md.PersistenceSatisfied(), persistence: md.StreakRequired}
		cur := candidate{indicatorID: b.IndicatorID, marginal: b.Marginal, satisfied: bd.PersistenceSatisfied(), persistence: bd.StreakRequired}
		if lessCandidate(a, cur) {
			best = i
		}
	}
	return best
}

// lessCandidate is the total order: marginal contribution descending, then
// satisfied persistence with the smaller requirement first, then
// lexicographic indicator id.
func lessCandidate(a, b candidate) bool {
	if a.marginal != b.marginal {
		return a.marginal > b.marginal
	}
	if a.satisfied != b.satisfied {
		return a.satisfied
	}
	if a.satisfied && a.persistence != b.persistence {
		return a.persistence < b.persistence
	}
	return a.indicatorID < b.indicatorID
}

func (r *Router) pick(c candidate, bucket BucketRecord) RouterPick {
	p := RouterPick{
		IndicatorID: c.indicatorID,
		Category:    c.category,
		Marginal:    c.marginal,
	}
	if ind, ok := r.reg.Get(c.indicatorID); ok {
		p.Trigger = ind.Trigger
		p.Why = ind.Notes
		if p.Why == "" {
			p.Why = ind.Name
		}
	}
	for _, m := range bucket.Members {
		if m.Suppressed {
			p.DuplicatesNote = append(p.DuplicatesNote, m.IndicatorID)
		}
	}
	sort.Strings(p.DuplicatesNote)
	return p
}
