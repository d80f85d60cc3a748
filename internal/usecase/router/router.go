package router

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/feedback"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

// Seeded profile IDs.
const (
	ProfileBalanced      = "balanced"
	ProfileVectorHeavy   = "vector-heavy"
	ProfileFullTextHeavy = "fulltext-heavy"
)

// ProxyTopN is the number of fused scores averaged by EffectivenessProxy.
const ProxyTopN = 5

// Profile is a named weight vector the router can choose.
type Profile struct {
	ID      string        `json:"id" yaml:"id"`
	Weights query.Weights `json:"weights" yaml:"weights"`
}

// DefaultProfiles returns the seeded profiles in arena order.
func DefaultProfiles() []Profile {
	return []Profile{
		{ID: ProfileBalanced, Weights: query.Weights{Vector: 0.5, FullText: 0.5}},
		{ID: ProfileVectorHeavy, Weights: query.Weights{Vector: 0.8, FullText: 0.2}},
		{ID: ProfileFullTextHeavy, Weights: query.Weights{Vector: 0.2, FullText: 0.8}},
	}
}

// ProfileStats is a snapshot of one arm.
type ProfileStats struct {
	ID           string        `json:"id"`
	Weights      query.Weights `json:"weights"`
	Alpha        float64       `json:"alpha"`
	Beta         float64       `json:"beta"`
	ExpectedRate float64       `json:"expected_rate"`
	TotalTries   uint64        `json:"total_tries"`
	Successes    float64       `json:"successes"`
}

// arm is one independently locked bandit arm with its own PRNG.
type arm struct {
	mu        sync.Mutex
	profile   Profile
	alpha     float64
	beta      float64
	tries     uint64
	successes float64
	src       *rand.PCG
	seed      uint64
}

func newArm(p Profile, seed uint64) *arm {
	return &arm{
		profile: p,
		alpha:   1,
		beta:    1,
		src:     rand.NewPCG(seed, seed^0x9e3779b97f4a7c15),
		seed:    seed,
	}
}

func (a *arm) sample() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return distuv.Beta{Alpha: a.alpha, Beta: a.beta, Src: a.src}.Rand()
}

func (a *arm) stats() ProfileStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return ProfileStats{
		ID:           a.profile.ID,
		Weights:      a.profile.Weights,
		Alpha:        a.alpha,
		Beta:         a.beta,
		ExpectedRate: a.alpha / (a.alpha + a.beta),
		TotalTries:   a.tries,
		Successes:    a.successes,
	}
}

// Config configures the router.
type Config struct {
	// Seed makes sampling deterministic. Each arm derives its own stream from it.
	Seed uint64
	// Profiles are registered after the seeded ones.
	Profiles []Profile
}

// Router selects a weight profile per query by Thompson sampling.
// Arms are locked individually so concurrent requests do not serialize on one mutex.
type Router struct {
	arms       []*arm
	index      map[string]int
	selections *prometheus.CounterVec
}

// New creates a router with the seeded profiles plus cfg.Profiles.
// selections is labeled (profile) and may be nil.
func New(cfg Config, selections *prometheus.CounterVec) (*Router, error) {
	profiles := append(DefaultProfiles(), cfg.Profiles...)

	r := &Router{
		arms:       make([]*arm, 0, len(profiles)),
		index:      make(map[string]int, len(profiles)),
		selections: selections,
	}
	for i, p := range profiles {
		if p.ID == "" {
			return nil, domain.ConfigErrorf("profile %d: id is required", i)
		}
		if _, dup := r.index[p.ID]; dup {
			return nil, domain.ConfigErrorf("duplicate profile %q", p.ID)
		}
		if err := p.Weights.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.ID, err)
		}
		r.index[p.ID] = len(r.arms)
		r.arms = append(r.arms, newArm(p, cfg.Seed+uint64(i)))
	}
	return r, nil
}

// Select samples every arm, picks the highest draw and writes its weights into q.
// Ties go to the arm registered first.
func (r *Router) Select(q *query.Query) (Profile, error) {
	samples := make([]float64, len(r.arms))
	for i, a := range r.arms {
		samples[i] = a.sample()
	}
	chosen := r.arms[argmax(samples)]

	chosen.mu.Lock()
	chosen.tries++
	p := chosen.profile
	chosen.mu.Unlock()

	if r.selections != nil {
		r.selections.WithLabelValues(p.ID).Inc()
	}
	if q != nil {
		if err := q.ApplyWeights(p.Weights); err != nil {
			return Profile{}, fmt.Errorf("apply profile %q: %w", p.ID, err)
		}
	}
	return p, nil
}

// Update applies alpha += e, beta += 1-e to the profile's arm. e is clamped to [0,1].
func (r *Router) Update(profileID string, effectiveness float64) error {
	i, ok := r.index[profileID]
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownProfile, profileID)
	}
	e := feedback.Clamp(effectiveness)

	a := r.arms[i]
	a.mu.Lock()
	a.alpha += e
	a.beta += 1 - e
	a.successes += e
	a.mu.Unlock()
	return nil
}

// Profile returns a registered profile by ID.
func (r *Router) Profile(id string) (Profile, bool) {
	i, ok := r.index[id]
	if !ok {
		return Profile{}, false
	}
	return r.arms[i].profile, true
}

// Stats returns per-arm snapshots in arena order.
func (r *Router) Stats() []ProfileStats {
	out := make([]ProfileStats, len(r.arms))
	for i, a := range r.arms {
		out[i] = a.stats()
	}
	return out
}

// Reset restores every arm to the uniform prior and its initial PRNG state.
func (r *Router) Reset() {
	for _, a := range r.arms {
		a.mu.Lock()
		a.alpha, a.beta = 1, 1
		a.tries, a.successes = 0, 0
		a.src.Seed(a.seed, a.seed^0x9e3779b97f4a7c15)
		a.mu.Unlock()
	}
}

// EffectivenessProxy is the mean of the top ProxyTopN fused scores, 0 when empty.
// cands must be sorted by score descending.
func EffectivenessProxy(cands []candidate.Scored) float64 {
	n := min(len(cands), ProxyTopN)
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		sum += cands[i].Score()
	}
	return feedback.Clamp(sum / float64(n))
}

func argmax(v []float64) int {
	best := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
