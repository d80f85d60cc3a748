package fusion

import (
	"fmt"
	"sort"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/domain/strategy"
)

// DefaultK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const DefaultK = 60

// Ranked is one strategy's ordered result list.
type Ranked struct {
	Kind strategy.Kind
	Hits []candidate.Hit
}

// Fuser merges ranked lists with weighted Reciprocal Rank Fusion.
type Fuser struct {
	k int
}

// New creates a fuser. Non-positive k falls back to DefaultK.
func New(k int) *Fuser {
	if k <= 0 {
		k = DefaultK
	}
	return &Fuser{k: k}
}

// K returns the smoothing constant.
func (f *Fuser) K() int { return f.k }

// Contribution is the RRF share of a hit at 1-based rank in a list weighted by weight.
func Contribution(weight float64, k, rank int) float64 {
	return weight / float64(k+rank)
}

type fused struct {
	hit     candidate.Hit
	raw     float64
	signals map[strategy.Kind]float64
}

// Fuse merges lists in the given order.
// score(d) = sum of weight_s / (k + rank_s(d)); a list missing d contributes 0.
// Raw scores are min-max normalized to [0,1]; ties keep first-seen order.
func (f *Fuser) Fuse(lists []Ranked, w query.Weights) ([]candidate.Scored, error) {
	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("fusion weights: %w", err)
	}

	entries := f.accumulate(lists, w)
	if len(entries) == 0 {
		return nil, nil
	}

	lo, hi := entries[0].raw, entries[0].raw
	for _, e := range entries[1:] {
		lo = min(lo, e.raw)
		hi = max(hi, e.raw)
	}

	out := make([]candidate.Scored, len(entries))
	for i, e := range entries {
		out[i] = candidate.New(
			e.hit.ID, e.hit.Content, e.signals,
			normalize(e.raw, lo, hi),
			e.hit.CreatedAt, e.hit.Importance,
		)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score() > out[j].Score()
	})
	return out, nil
}

// accumulate sums contributions per ID in first-seen order.
// A repeated ID inside one list only counts at its best rank.
func (f *Fuser) accumulate(lists []Ranked, w query.Weights) []*fused {
	index := make(map[string]*fused)
	var order []*fused

	for _, l := range lists {
		weight := w.For(l.Kind)
		seen := make(map[string]bool, len(l.Hits))
		for i, h := range l.Hits {
			if seen[h.ID] {
				continue
			}
			seen[h.ID] = true

			e, ok := index[h.ID]
			if !ok {
				e = &fused{hit: h, signals: make(map[strategy.Kind]float64, len(lists))}
				index[h.ID] = e
				order = append(order, e)
			}
			mergeHit(&e.hit, h)
			e.signals[l.Kind] = h.Score
			e.raw += Contribution(weight, f.k, i+1)
		}
	}
	return order
}

// mergeHit fills attributes the first-seen hit did not carry.
func mergeHit(dst *candidate.Hit, src candidate.Hit) {
	if dst.Content == "" {
		dst.Content = src.Content
	}
	if dst.CreatedAt.Equal(time.Time{}) {
		dst.CreatedAt = src.CreatedAt
	}
	if dst.Importance == 0 {
		dst.Importance = src.Importance
	}
}

// normalize maps raw into [0,1]. A set of equal scores maps to 1 when positive.
func normalize(raw, lo, hi float64) float64 {
	if hi == lo {
		if raw > 0 {
			return 1
		}
		return 0
	}
	return (raw - lo) / (hi - lo)
}
