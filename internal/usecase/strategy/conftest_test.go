package strategy

import (
	"context"
	"testing"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

type mockVectorBackend struct {
	fn      func(ctx context.Context, vec []float32, limit int, filters query.Filters) ([]candidate.Hit, error)
	lastVec []float32
}

func (m *mockVectorBackend) SearchVector(
	ctx context.Context, vec []float32, limit int, filters query.Filters,
) ([]candidate.Hit, error) {
	m.lastVec = vec
	if m.fn != nil {
		return m.fn(ctx, vec, limit, filters)
	}
	return nil, nil
}

type mockTextBackend struct {
	fn func(ctx context.Context, text string, limit int, filters query.Filters) ([]candidate.Hit, error)
}

func (m *mockTextBackend) SearchText(
	ctx context.Context, text string, limit int, filters query.Filters,
) ([]candidate.Hit, error) {
	if m.fn != nil {
		return m.fn(ctx, text, limit, filters)
	}
	return nil, nil
}

type mockFuzzyBackend struct {
	fuzziness int
	err       error
	hits      []candidate.Hit
}

func (m *mockFuzzyBackend) SearchFuzzy(
	_ context.Context, _ string, _, fuzziness int, _ query.Filters,
) ([]candidate.Hit, error) {
	m.fuzziness = fuzziness
	return m.hits, m.err
}

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

func mustQuery(t *testing.T, text string, opts ...query.Option) *query.Query {
	t.Helper()
	q, err := query.New(text, 10, opts...)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return &q
}
