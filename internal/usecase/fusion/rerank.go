package fusion

import (
	"math"
	"sort"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain/candidate"
)

// Reranker reorders fused candidates. It must not add or drop any.
type Reranker interface {
	Rerank(cands []candidate.Scored) []candidate.Scored
}

// RecencyReranker blends the fused score with an exponential recency signal:
// score' = (1-w)*score + w*0.5^(age/halfLife). Candidates without a creation time get no recency credit.
type RecencyReranker struct {
	weight   float64
	halfLife time.Duration
	now      func() time.Time
}

// NewRecencyReranker creates a recency reranker. weight is clamped to [0,1];
// non-positive halfLife defaults to 30 days. now may be nil.
func NewRecencyReranker(weight float64, halfLife time.Duration, now func() time.Time) *RecencyReranker {
	if halfLife <= 0 {
		halfLife = 30 * 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &RecencyReranker{weight: min(1, max(0, weight)), halfLife: halfLife, now: now}
}

// Rerank returns a new slice ordered by the blended score.
func (r *RecencyReranker) Rerank(cands []candidate.Scored) []candidate.Scored {
	now := r.now()
	out := make([]candidate.Scored, len(cands))
	for i := range cands {
		c := &cands[i]
		var recency float64
		if !c.CreatedAt().IsZero() {
			age := max(0, now.Sub(c.CreatedAt()).Seconds())
			recency = math.Pow(0.5, age/r.halfLife.Seconds())
		}
		out[i] = c.WithScore((1-r.weight)*c.Score() + r.weight*recency)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score() > out[j].Score()
	})
	return out
}
