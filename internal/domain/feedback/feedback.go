package feedback

import (
	"time"

	"github.com/kailas-cloud/recollect/internal/domain/query"
)

// Record is one observed outcome of a routed search. Append-only.
type Record struct {
	ID            string         `json:"id"`
	Features      query.Features `json:"features"`
	ProfileID     string         `json:"profile_id"`
	Effectiveness float64        `json:"effectiveness"`
	Latency       time.Duration  `json:"latency"`
	Satisfaction  *float64       `json:"satisfaction,omitempty"`
	QueryText     string         `json:"query_text,omitempty"`
	RecordedAt    time.Time      `json:"recorded_at"`
}

// Reward blends explicit satisfaction with the effectiveness proxy.
// satisfactionWeight is the share given to satisfaction when present.
func (r Record) Reward(satisfactionWeight float64) float64 {
	e := Clamp(r.Effectiveness)
	if r.Satisfaction == nil {
		return e
	}
	w := Clamp(satisfactionWeight)
	return Clamp(w*Clamp(*r.Satisfaction) + (1-w)*e)
}

// Pattern aggregates records sharing a feature bucket.
type Pattern struct {
	Key               string        `json:"key"`
	Count             int           `json:"count"`
	MeanEffectiveness float64       `json:"mean_effectiveness"`
	MeanLatency       time.Duration `json:"mean_latency"`
	SampleQuery       string        `json:"sample_query,omitempty"`
}

// Weight is the ranking value used by top-pattern selection.
func (p Pattern) Weight() float64 { return float64(p.Count) * p.MeanEffectiveness }

// Clamp limits v to [0,1]. NaN maps to 0.
func Clamp(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
