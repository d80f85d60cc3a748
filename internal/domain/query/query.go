package query

import (
	"fmt"
	"slices"
)

// Query parameter limits.
const (
	// MaxTextLength is the maximum allowed query length in bytes.
	MaxTextLength = 4096
	DefaultLimit  = 10
	MaxLimit      = 200
)

// Query is a validated retrieval request.
// Weights are written by the router before fusion.
type Query struct {
	text      string
	limit     int
	threshold *float64
	filters   Filters
	vector    []float32
	weights   Weights
	features  Features
}

// Option configures optional Query parameters.
type Option func(*Query)

// WithThreshold sets the minimum fused score a result must reach.
func WithThreshold(t float64) Option {
	return func(q *Query) { q.threshold = &t }
}

// WithFilters restricts results by owner, tag or creation time.
func WithFilters(f Filters) Option {
	return func(q *Query) { q.filters = f }
}

// WithVector supplies a precomputed query embedding.
func WithVector(v []float32) Option {
	return func(q *Query) { q.vector = slices.Clone(v) }
}

// WithWeights sets initial signal weights. The router overwrites them.
func WithWeights(w Weights) Option {
	return func(q *Query) { q.weights = w }
}

// New validates and normalizes a query.
// Empty text is allowed and yields an empty result downstream.
// Defaults: limit=10 (max 200), balanced weights.
func New(text string, limit int, opts ...Option) (Query, error) {
	if len(text) > MaxTextLength {
		return Query{}, fmt.Errorf("query too long (max %d chars)", MaxTextLength)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	q := Query{
		text:    text,
		limit:   limit,
		weights: BalancedWeights(),
	}
	for _, opt := range opts {
		opt(&q)
	}

	if q.threshold != nil && (*q.threshold < 0 || *q.threshold > 1) {
		return Query{}, fmt.Errorf("threshold must be between 0 and 1")
	}
	if err := q.weights.Validate(); err != nil {
		return Query{}, fmt.Errorf("query weights: %w", err)
	}
	q.features = ExtractFeatures(text)

	return q, nil
}

// Text returns the query text.
func (q *Query) Text() string { return q.text }

// Limit returns the maximum number of results.
func (q *Query) Limit() int { return q.limit }

// Threshold returns the minimum fused score, if set.
func (q *Query) Threshold() (float64, bool) {
	if q.threshold == nil {
		return 0, false
	}
	return *q.threshold, true
}

// Filters returns the result filters.
func (q *Query) Filters() Filters { return q.filters }

// Vector returns the precomputed embedding (nil when absent).
func (q *Query) Vector() []float32 { return q.vector }

// Weights returns the current signal weights.
func (q *Query) Weights() Weights { return q.weights }

// Features returns the features extracted at construction.
func (q *Query) Features() Features { return q.features }

// ApplyWeights validates and installs new signal weights.
func (q *Query) ApplyWeights(w Weights) error {
	if err := w.Validate(); err != nil {
		return err
	}
	q.weights = w
	return nil
}
