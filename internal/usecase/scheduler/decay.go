package scheduler

import (
	"math"

	"github.com/kailas-cloud/recollect/internal/domain"
)

// DefaultDecayRate is λ used when none is configured.
const DefaultDecayRate = 0.1

// DecayModel maps an age in days to a freshness score in [0,1].
type DecayModel interface {
	Score(ageDays float64) float64
}

// ExponentialDecay scores exp(-λ·age).
type ExponentialDecay struct {
	lambda float64
}

// NewExponentialDecay validates λ ∈ (0,1].
func NewExponentialDecay(lambda float64) (*ExponentialDecay, error) {
	if math.IsNaN(lambda) || lambda <= 0 || lambda > 1 {
		return nil, domain.ConfigErrorf("decay rate %v must be in (0,1]", lambda)
	}
	return &ExponentialDecay{lambda: lambda}, nil
}

// NewHalfLifeDecay derives λ = ln2 / halfLifeDays. The result must still lie in (0,1],
// so half-lives shorter than ln2 days are rejected.
func NewHalfLifeDecay(halfLifeDays float64) (*ExponentialDecay, error) {
	if math.IsNaN(halfLifeDays) || halfLifeDays <= 0 {
		return nil, domain.ConfigErrorf("half-life %v must be positive", halfLifeDays)
	}
	return NewExponentialDecay(math.Ln2 / halfLifeDays)
}

// Lambda returns the decay rate.
func (d *ExponentialDecay) Lambda() float64 { return d.lambda }

// Score returns exp(-λ·age) clamped to [0,1]. Negative ages count as 0.
func (d *ExponentialDecay) Score(ageDays float64) float64 {
	if math.IsNaN(ageDays) || ageDays < 0 {
		ageDays = 0
	}
	return max(0, min(1, math.Exp(-d.lambda*ageDays)))
}
