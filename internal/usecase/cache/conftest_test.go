package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/recollect/internal/db"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/feedback"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

// manualClock is a settable clock for TTL tests.
type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memStore is an in-memory RemoteStore with optional injected failures.
type memStore struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	scanErr error
	dels    int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *memStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dels++
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memStore) Scan(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var out []string
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

type mockPatterns struct {
	patterns []feedback.Pattern
}

func (m *mockPatterns) TopPatterns(n int) []feedback.Pattern {
	return m.patterns[:min(n, len(m.patterns))]
}

type mockComputer struct {
	mu      sync.Mutex
	calls   []string
	err     error
	partial bool
}

func (m *mockComputer) Compute(_ context.Context, q *query.Query) ([]candidate.Scored, bool, error) {
	m.mu.Lock()
	m.calls = append(m.calls, q.Text())
	partial := m.partial
	m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	return []candidate.Scored{candidate.New("m-"+q.Text(), q.Text(), nil, 1, time.Time{}, 0)}, partial, nil
}

func (m *mockComputer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func mustQuery(t *testing.T, text string, limit int, opts ...query.Option) *query.Query {
	t.Helper()
	q, err := query.New(text, limit, opts...)
	if err != nil {
		t.Fatalf("query.New: %v", err)
	}
	return &q
}

func sampleCandidates() []candidate.Scored {
	return []candidate.Scored{
		candidate.New("a", "alpha", nil, 1, time.Time{}, 0.5),
		candidate.New("b", "beta", nil, 0.4, time.Time{}, 0),
	}
}
