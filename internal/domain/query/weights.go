package query

import (
	"math"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/strategy"
)

// WeightTolerance is the allowed deviation of the weight sum from 1.0.
const WeightTolerance = 0.01

// Weights are per-signal fusion weights. Fuzzy defaults to 0.
type Weights struct {
	Vector   float64 `json:"vector" yaml:"vector"`
	FullText float64 `json:"fulltext" yaml:"fulltext"`
	Fuzzy    float64 `json:"fuzzy" yaml:"fuzzy"`
}

// BalancedWeights splits weight evenly between vector and full-text.
func BalancedWeights() Weights {
	return Weights{Vector: 0.5, FullText: 0.5}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 { return w.Vector + w.FullText + w.Fuzzy }

// Validate checks each weight is in [0,1] and the sum is 1.0 within tolerance.
func (w Weights) Validate() error {
	for _, v := range []float64{w.Vector, w.FullText, w.Fuzzy} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return domain.ConfigErrorf("weight %v out of range [0,1]", v)
		}
	}
	if math.Abs(w.Sum()-1) > WeightTolerance {
		return domain.ConfigErrorf("weights sum to %.4f, want 1.0 (±%.2f)", w.Sum(), WeightTolerance)
	}
	return nil
}

// For returns the weight assigned to a signal kind.
func (w Weights) For(k strategy.Kind) float64 {
	switch k {
	case strategy.Vector:
		return w.Vector
	case strategy.FullText:
		return w.FullText
	case strategy.Fuzzy:
		return w.Fuzzy
	}
	return 0
}
