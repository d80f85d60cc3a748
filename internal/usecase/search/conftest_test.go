package search

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/feedback"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/domain/strategy"
	"github.com/kailas-cloud/recollect/internal/usecase/router"
)

// --- Mocks ---

type mockStrategy struct {
	kind  strategy.Kind
	hits  []candidate.Hit
	err   error
	block bool
	// sleep delays the result without watching ctx.
	sleep time.Duration

	mu        sync.Mutex
	calls     int
	lastLimit int
}

func (m *mockStrategy) Kind() strategy.Kind { return m.kind }

func (m *mockStrategy) Search(ctx context.Context, _ *query.Query, limit int) ([]candidate.Hit, error) {
	m.mu.Lock()
	m.calls++
	m.lastLimit = limit
	m.mu.Unlock()
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if m.sleep > 0 {
		time.Sleep(m.sleep)
	}
	return m.hits, m.err
}

type vectorBackendFunc func(ctx context.Context, vec []float32, limit int, f query.Filters) ([]candidate.Hit, error)

func (f vectorBackendFunc) SearchVector(
	ctx context.Context, vec []float32, limit int, filters query.Filters,
) ([]candidate.Hit, error) {
	return f(ctx, vec, limit, filters)
}

func (m *mockStrategy) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRouter struct {
	profile router.Profile
	err     error
	calls   int
}

func (m *mockRouter) Select(q *query.Query) (router.Profile, error) {
	m.calls++
	if m.err != nil {
		return router.Profile{}, m.err
	}
	if err := q.ApplyWeights(m.profile.Weights); err != nil {
		return router.Profile{}, err
	}
	return m.profile, nil
}

type mockCache struct {
	entries map[string][]candidate.Scored
	sets    int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]candidate.Scored)}
}

func (m *mockCache) Get(_ context.Context, key string) ([]candidate.Scored, bool) {
	c, ok := m.entries[key]
	return c, ok
}

func (m *mockCache) Set(_ context.Context, key string, cands []candidate.Scored) {
	m.sets++
	m.entries[key] = cands
}

type textKeyer struct{}

func (textKeyer) Key(q *query.Query) string { return q.Text() }

type mockSink struct {
	records []feedback.Record
}

func (m *mockSink) Publish(rec feedback.Record) { m.records = append(m.records, rec) }

type mockObserver struct {
	mu       sync.Mutex
	observed map[strategy.Kind]error
}

func (m *mockObserver) Observe(kind strategy.Kind, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.observed == nil {
		m.observed = make(map[strategy.Kind]error)
	}
	m.observed[kind] = err
}

// --- Helpers ---

func hits(ids ...string) []candidate.Hit {
	out := make([]candidate.Hit, len(ids))
	for i, id := range ids {
		out[i] = candidate.Hit{ID: id, Content: "memory " + id, Score: float64(len(ids) - i)}
	}
	return out
}

func balanced() router.Profile {
	return router.Profile{ID: router.ProfileBalanced, Weights: query.Weights{Vector: 0.5, FullText: 0.5}}
}

func ids(cands []candidate.Scored) []string {
	out := make([]string, len(cands))
	for i := range cands {
		out[i] = cands[i].ID()
	}
	return out
}
