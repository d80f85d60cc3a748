package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/domain/strategy"
)

// DefaultFuzziness is the edit distance used when none is configured.
const DefaultFuzziness = 1

// Vector searches by dense embedding similarity.
type Vector struct {
	backend  VectorBackend
	embedder domain.Embedder
}

// NewVector creates a vector adapter. A nil embedder is treated as unconfigured:
// queries without a precomputed vector then fail with ErrEmbedding.
func NewVector(backend VectorBackend, embedder domain.Embedder) *Vector {
	if embedder == nil {
		embedder = domain.UnconfiguredEmbedder{}
	}
	return &Vector{backend: backend, embedder: embedder}
}

// Kind returns strategy.Vector.
func (v *Vector) Kind() strategy.Kind { return strategy.Vector }

// Search embeds the query text unless the query carries a vector. A query with
// blank text and a precomputed vector is searched by the vector alone.
func (v *Vector) Search(ctx context.Context, q *query.Query, limit int) ([]candidate.Hit, error) {
	if q == nil || (isEmpty(q) && len(q.Vector()) == 0) {
		return nil, nil
	}

	vec := q.Vector()
	if len(vec) == 0 {
		res, err := v.embedder.Embed(ctx, q.Text())
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: embed query: %w", domain.ErrTimeout, err)
			}
			if errors.Is(err, domain.ErrEmbedding) {
				return nil, fmt.Errorf("embed query: %w", err)
			}
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
		}
		if len(res.Embedding) == 0 {
			return nil, fmt.Errorf("%w: provider returned an empty vector", domain.ErrEmbedding)
		}
		vec = res.Embedding
	}

	hits, err := v.backend.SearchVector(ctx, vec, limit, q.Filters())
	if err != nil {
		return nil, classify(err)
	}
	return hits, nil
}

// FullText searches by lexical relevance (BM25 or equivalent).
type FullText struct {
	backend TextBackend
}

// NewFullText creates a full-text adapter.
func NewFullText(backend TextBackend) *FullText {
	return &FullText{backend: backend}
}

// Kind returns strategy.FullText.
func (f *FullText) Kind() strategy.Kind { return strategy.FullText }

// Search runs a full-text query over the query text.
func (f *FullText) Search(ctx context.Context, q *query.Query, limit int) ([]candidate.Hit, error) {
	if isEmpty(q) {
		return nil, nil
	}
	hits, err := f.backend.SearchText(ctx, q.Text(), limit, q.Filters())
	if err != nil {
		return nil, classify(err)
	}
	return hits, nil
}

// Fuzzy searches for terms within an edit distance, tolerating typos.
type Fuzzy struct {
	backend   FuzzyBackend
	fuzziness int
}

// NewFuzzy creates a fuzzy adapter. Non-positive fuzziness falls back to DefaultFuzziness.
func NewFuzzy(backend FuzzyBackend, fuzziness int) *Fuzzy {
	if fuzziness <= 0 {
		fuzziness = DefaultFuzziness
	}
	return &Fuzzy{backend: backend, fuzziness: fuzziness}
}

// Kind returns strategy.Fuzzy.
func (f *Fuzzy) Kind() strategy.Kind { return strategy.Fuzzy }

// Search runs a fuzzy term query over the query text.
func (f *Fuzzy) Search(ctx context.Context, q *query.Query, limit int) ([]candidate.Hit, error) {
	if isEmpty(q) {
		return nil, nil
	}
	hits, err := f.backend.SearchFuzzy(ctx, q.Text(), limit, f.fuzziness, q.Filters())
	if err != nil {
		return nil, classify(err)
	}
	return hits, nil
}

func isEmpty(q *query.Query) bool {
	return q == nil || strings.TrimSpace(q.Text()) == ""
}

// classify maps a backend failure onto ErrTimeout or ErrBackendUnavailable.
func classify(err error) error {
	switch {
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, domain.ErrBackendUnavailable):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrBackendUnavailable, err)
	}
}
