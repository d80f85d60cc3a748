package candidate

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain/strategy"
)

// Hit is one entry of a strategy's ranked list.
// Score is backend-defined and only used for ordering; 0 is valid.
type Hit struct {
	ID          string
	Content     string
	Score       float64
	FieldScores map[string]float64
	CreatedAt   time.Time
	Importance  float64
}

// Scored is a fused candidate. Immutable after construction.
type Scored struct {
	id         string
	content    string
	signals    map[strategy.Kind]float64
	score      float64
	createdAt  time.Time
	importance float64
}

// New creates a fused candidate. The signal map is copied.
func New(
	id, content string,
	signals map[strategy.Kind]float64,
	score float64,
	createdAt time.Time,
	importance float64,
) Scored {
	return Scored{
		id:         id,
		content:    content,
		signals:    maps.Clone(signals),
		score:      score,
		createdAt:  createdAt,
		importance: importance,
	}
}

// WithScore returns a copy with a different blended score.
func (s Scored) WithScore(score float64) Scored {
	s.signals = maps.Clone(s.signals)
	s.score = score
	return s
}

// ID returns the memory identifier.
func (s *Scored) ID() string { return s.id }

// Content returns the memory text.
func (s *Scored) Content() string { return s.content }

// Signal returns the raw score a strategy assigned, if it returned this memory.
func (s *Scored) Signal(k strategy.Kind) (float64, bool) {
	v, ok := s.signals[k]
	return v, ok
}

// Signals returns a copy of the per-signal raw scores.
func (s *Scored) Signals() map[strategy.Kind]float64 { return maps.Clone(s.signals) }

// Score returns the blended score in [0,1].
func (s *Scored) Score() float64 { return s.score }

// CreatedAt returns the memory creation time (zero when unknown).
func (s *Scored) CreatedAt() time.Time { return s.createdAt }

// Importance returns the stored importance in [0,1].
func (s *Scored) Importance() float64 { return s.importance }

type scoredJSON struct {
	ID         string                    `json:"id"`
	Content    string                    `json:"content"`
	Signals    map[strategy.Kind]float64 `json:"signals,omitempty"`
	Score      float64                   `json:"score"`
	CreatedAt  time.Time                 `json:"created_at,omitzero"`
	Importance float64                   `json:"importance"`
}

// MarshalJSON implements json.Marshaler.
func (s Scored) MarshalJSON() ([]byte, error) {
	return json.Marshal(scoredJSON{
		ID: s.id, Content: s.content, Signals: s.signals,
		Score: s.score, CreatedAt: s.createdAt, Importance: s.importance,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scored) UnmarshalJSON(data []byte) error {
	var v scoredJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = Scored{
		id: v.ID, content: v.Content, signals: v.Signals,
		score: v.Score, createdAt: v.CreatedAt, importance: v.Importance,
	}
	return nil
}
