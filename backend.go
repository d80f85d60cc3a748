package recollect

import (
	"context"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

// VectorBackend returns hits sorted by similarity in [0,1], descending.
type VectorBackend interface {
	SearchVector(ctx context.Context, vec []float32, limit int, filters Filters) ([]Hit, error)
}

// TextBackend returns hits ranked by a lexical relevance score.
type TextBackend interface {
	SearchText(ctx context.Context, text string, limit int, filters Filters) ([]Hit, error)
}

// FuzzyBackend returns hits matching terms within an edit distance.
type FuzzyBackend interface {
	SearchFuzzy(ctx context.Context, text string, limit, fuzziness int, filters Filters) ([]Hit, error)
}

// KVStore is the shared key-value store behind the remote result cache and the
// remote embedding cache tier. Expiry is enforced by the store.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Embedder converts query text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

type vectorAdapter struct{ b VectorBackend }

func (a vectorAdapter) SearchVector(
	ctx context.Context, vec []float32, limit int, filters query.Filters,
) ([]candidate.Hit, error) {
	hits, err := a.b.SearchVector(ctx, vec, limit, fromInternalFilters(filters))
	if err != nil {
		return nil, err
	}
	return toInternalHits(hits), nil
}

type textAdapter struct{ b TextBackend }

func (a textAdapter) SearchText(
	ctx context.Context, text string, limit int, filters query.Filters,
) ([]candidate.Hit, error) {
	hits, err := a.b.SearchText(ctx, text, limit, fromInternalFilters(filters))
	if err != nil {
		return nil, err
	}
	return toInternalHits(hits), nil
}

type fuzzyAdapter struct{ b FuzzyBackend }

func (a fuzzyAdapter) SearchFuzzy(
	ctx context.Context, text string, limit, fuzziness int, filters query.Filters,
) ([]candidate.Hit, error) {
	hits, err := a.b.SearchFuzzy(ctx, text, limit, fuzziness, fromInternalFilters(filters))
	if err != nil {
		return nil, err
	}
	return toInternalHits(hits), nil
}

// embedderAdapter bridges the public Embedder to the domain interface.
type embedderAdapter struct{ e Embedder }

func (a embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := a.e.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}
	return domain.EmbeddingResult{
		Embedding:    res.Embedding,
		PromptTokens: res.PromptTokens,
		TotalTokens:  res.TotalTokens,
	}, nil
}

// toDomainEmbedder returns nil for a nil Embedder so no typed nil reaches the engine.
func toDomainEmbedder(e Embedder) domain.Embedder {
	if e == nil {
		return nil
	}
	return embedderAdapter{e: e}
}
