package scheduler

import (
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/memory"
)

// Scored is a candidate with its composite score, exposed for diagnostics.
type Scored struct {
	memory.Candidate
	Composite float64 `json:"composite"`
	AgeDays   float64 `json:"age_days"`
}

// Scheduler performs the final relevance/importance/recency top-k selection.
type Scheduler struct {
	decay    DecayModel
	now      func() time.Time
	observed prometheus.Observer
}

// New creates a scheduler. now may be nil; observed (candidate counts) may be nil.
func New(decay DecayModel, now func() time.Time, observed prometheus.Observer) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{decay: decay, now: now, observed: observed}
}

// Schedule returns the top k candidates by composite score
// wr·relevance + wi·importance + wt·decay(age). Ties go to the younger
// candidate, then to the smaller ID. k ≤ 0 yields an empty result.
func (s *Scheduler) Schedule(cands []memory.Candidate, k int, cfg memory.ScheduleConfig) ([]memory.Candidate, error) {
	scored, err := s.Score(cands, cfg)
	if err != nil {
		return nil, err
	}
	k = min(max(k, 0), len(scored))

	out := make([]memory.Candidate, k)
	for i := range k {
		out[i] = scored[i].Candidate
	}
	return out, nil
}

// Score computes and sorts composite scores without truncating.
func (s *Scheduler) Score(cands []memory.Candidate, cfg memory.ScheduleConfig) ([]Scored, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("schedule config: %w", err)
	}
	if s.observed != nil {
		s.observed.Observe(float64(len(cands)))
	}

	now := s.now()
	scored := make([]Scored, len(cands))
	for i, c := range cands {
		age := c.AgeDays(now)
		scored[i] = Scored{
			Candidate: c,
			AgeDays:   age,
			Composite: cfg.Relevance*c.Relevance + cfg.Importance*c.Importance + cfg.Recency*s.decay.Score(age),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		if a.AgeDays != b.AgeDays {
			return a.AgeDays < b.AgeDays
		}
		return a.ID < b.ID
	})
	return scored, nil
}

// FromScored converts fused candidates to scheduler input, using the fused score as relevance.
func FromScored(cands []candidate.Scored) []memory.Candidate {
	out := make([]memory.Candidate, len(cands))
	for i := range cands {
		c := &cands[i]
		out[i] = memory.Candidate{
			ID:         c.ID(),
			Content:    c.Content(),
			Importance: c.Importance(),
			Relevance:  c.Score(),
			CreatedAt:  c.CreatedAt(),
		}
	}
	return out
}

// Reorder arranges fused candidates in scheduled order, keeping only scheduled IDs.
func Reorder(cands []candidate.Scored, scheduled []memory.Candidate) []candidate.Scored {
	byID := make(map[string]candidate.Scored, len(cands))
	for i := range cands {
		byID[cands[i].ID()] = cands[i]
	}
	out := make([]candidate.Scored, 0, len(scheduled))
	for _, m := range scheduled {
		if c, ok := byID[m.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Trimmer applies a fixed schedule config to fused pipeline results.
type Trimmer struct {
	scheduler *Scheduler
	cfg       memory.ScheduleConfig
}

// NewTrimmer validates cfg and binds it to s.
func NewTrimmer(s *Scheduler, cfg memory.ScheduleConfig) (*Trimmer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("schedule config: %w", err)
	}
	return &Trimmer{scheduler: s, cfg: cfg}, nil
}

// Trim re-scores fused candidates and keeps the top k in scheduled order.
// Fused scores are left untouched.
func (t *Trimmer) Trim(cands []candidate.Scored, k int) ([]candidate.Scored, error) {
	scheduled, err := t.scheduler.Schedule(FromScored(cands), k, t.cfg)
	if err != nil {
		return nil, err
	}
	return Reorder(cands, scheduled), nil
}
