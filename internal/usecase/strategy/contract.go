package strategy

import (
	"context"

	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/domain/strategy"
)

// Strategy is one retrieval signal. Implementations return hits ordered best first.
type Strategy interface {
	Kind() strategy.Kind
	Search(ctx context.Context, q *query.Query, limit int) ([]candidate.Hit, error)
}

// VectorBackend returns hits sorted by similarity in [0,1], descending.
type VectorBackend interface {
	SearchVector(ctx context.Context, vec []float32, limit int, filters query.Filters) ([]candidate.Hit, error)
}

// TextBackend returns hits ranked by a lexical relevance score.
type TextBackend interface {
	SearchText(ctx context.Context, text string, limit int, filters query.Filters) ([]candidate.Hit, error)
}

// FuzzyBackend returns hits matching terms within an edit distance.
type FuzzyBackend interface {
	SearchFuzzy(
		ctx context.Context, text string, limit, fuzziness int, filters query.Filters,
	) ([]candidate.Hit, error)
}
