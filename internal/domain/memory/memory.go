package memory

import (
	"math"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain"
)

// Candidate is scheduler input. Age is derived at scoring time.
type Candidate struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Importance float64   `json:"importance"`
	Relevance  float64   `json:"relevance"`
	CreatedAt  time.Time `json:"created_at"`
}

// AgeDays returns the candidate age relative to now. Future timestamps count as age 0.
func (c Candidate) AgeDays(now time.Time) float64 {
	age := now.Sub(c.CreatedAt).Hours() / 24
	if age < 0 {
		return 0
	}
	return age
}

// ScheduleConfig weighs the composite score. Weights need not sum to 1.
type ScheduleConfig struct {
	Relevance  float64 `json:"relevance" yaml:"relevance"`
	Importance float64 `json:"importance" yaml:"importance"`
	Recency    float64 `json:"recency" yaml:"recency"`
}

// Validate rejects negative or non-finite weights.
func (c ScheduleConfig) Validate() error {
	for _, w := range []float64{c.Relevance, c.Importance, c.Recency} {
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			return domain.ConfigErrorf("schedule weight %v must be a non-negative number", w)
		}
	}
	return nil
}

// Preset names.
const (
	PresetRelevance  = "relevance"
	PresetImportance = "importance"
	PresetRecency    = "recency"
	PresetBalanced   = "balanced"
)

// RelevanceFocused favors fused relevance.
func RelevanceFocused() ScheduleConfig {
	return ScheduleConfig{Relevance: 0.7, Importance: 0.2, Recency: 0.1}
}

// ImportanceFocused favors stored importance.
func ImportanceFocused() ScheduleConfig {
	return ScheduleConfig{Relevance: 0.2, Importance: 0.7, Recency: 0.1}
}

// RecencyFocused favors fresh memories.
func RecencyFocused() ScheduleConfig {
	return ScheduleConfig{Relevance: 0.1, Importance: 0.1, Recency: 0.8}
}

// Balanced weighs all three signals equally.
func Balanced() ScheduleConfig {
	const third = 1.0 / 3
	return ScheduleConfig{Relevance: third, Importance: third, Recency: third}
}

// Preset returns a named preset.
func Preset(name string) (ScheduleConfig, bool) {
	switch name {
	case PresetRelevance:
		return RelevanceFocused(), true
	case PresetImportance:
		return ImportanceFocused(), true
	case PresetRecency:
		return RecencyFocused(), true
	case PresetBalanced:
		return Balanced(), true
	}
	return ScheduleConfig{}, false
}
