package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/memory"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/repository/memstore"
	"github.com/kailas-cloud/recollect/internal/usecase/cache"
	"github.com/kailas-cloud/recollect/internal/usecase/learning"
	"github.com/kailas-cloud/recollect/internal/usecase/router"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type topicEmbedder struct{}

func (topicEmbedder) Embed(_ context.Context, text string) (domain.EmbeddingResult, error) {
	if strings.Contains(strings.ToLower(text), "coffee") {
		return domain.EmbeddingResult{Embedding: []float32{1, 0}}, nil
	}
	return domain.EmbeddingResult{Embedding: []float32{0, 1}}, nil
}

type brokenText struct{}

func (brokenText) SearchText(context.Context, string, int, query.Filters) ([]candidate.Hit, error) {
	return nil, errors.New("connection refused")
}

const memories = `{"id":"m1","content":"I drink coffee every morning","created_at":"2024-05-01T08:00:00Z","importance":0.4}
{"id":"m2","content":"The project deadline is Friday","created_at":"2024-05-20T12:00:00Z","importance":0.9}
{"id":"m3","content":"Bought a new coffee grinder","created_at":"2024-05-25T12:00:00Z","importance":0.2}
`

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	store, err := memstore.New(topicEmbedder{}, nil)
	if err != nil {
		t.Fatalf("memstore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if _, err := store.Load(context.Background(), strings.NewReader(memories), 0); err != nil {
		t.Fatalf("load: %v", err)
	}

	base := []Option{
		WithVectorBackend(store),
		WithTextBackend(store),
		WithFuzzyBackend(store, 1),
		WithEmbedder(topicEmbedder{}),
		WithRouter(7),
		WithClock(func() time.Time { return testNow }),
	}
	e, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func mustQuery(t *testing.T, text string) query.Query {
	t.Helper()
	q, err := query.New(text, 10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return q
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func ids(cands []candidate.Scored) []string {
	out := make([]string, len(cands))
	for i := range cands {
		out[i] = cands[i].ID()
	}
	return out
}

func TestNew_RequiresBackend(t *testing.T) {
	_, err := New()
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestNew_InvalidDecay(t *testing.T) {
	store, err := memstore.New(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	_, err = New(WithTextBackend(store), WithDecayRate(2))
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestSearch(t *testing.T) {
	e := newEngine(t)

	got, err := e.Search(context.Background(), mustQuery(t, "coffee"))
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) < 2 {
		t.Fatalf("expected both coffee memories, got %v", ids(got))
	}
	top := map[string]bool{got[0].ID(): true, got[1].ID(): true}
	if !top["m1"] || !top["m3"] {
		t.Errorf("coffee memories should rank first, got %v", ids(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score() > got[i-1].Score() {
			t.Fatalf("results not sorted by score: %v", ids(got))
		}
	}
}

func TestSearch_CacheHit(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	first, err := e.Search(ctx, mustQuery(t, "coffee"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := e.Search(ctx, mustQuery(t, "  Coffee "))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(ids(first), ",") != strings.Join(ids(second), ",") {
		t.Errorf("cached result differs: %v vs %v", ids(first), ids(second))
	}
	if hits := e.CacheStats().Results.L1Hits; hits != 1 {
		t.Errorf("L1 hits = %d, want 1", hits)
	}
}

func TestSearch_FeedbackReachesRouter(t *testing.T) {
	e := newEngine(t)

	if _, err := e.Search(context.Background(), mustQuery(t, "coffee")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "feedback ingestion", func() bool { return e.LearningReport().TotalIngested == 1 })

	var tries uint64
	var evidence float64
	for _, s := range e.RouterStats() {
		tries += s.TotalTries
		evidence += s.Alpha + s.Beta - 2
	}
	if tries != 1 {
		t.Errorf("total tries = %d, want 1", tries)
	}
	if evidence < 0.999 || evidence > 1.001 {
		t.Errorf("router should hold one unit of evidence, got %v", evidence)
	}
	if e.PendingFeedback() != 0 {
		t.Errorf("pending = %d, want 0", e.PendingFeedback())
	}
}

func TestRecordFeedback_Satisfaction(t *testing.T) {
	e := newEngine(t, WithLearning(learning.Config{SatisfactionWeight: 0.7}, 0))
	sat := 1.0

	e.RecordFeedback(query.ExtractFeatures("coffee"), router.ProfileBalanced, 0, 10*time.Millisecond, &sat)
	waitFor(t, "feedback ingestion", func() bool { return e.LearningReport().TotalIngested == 1 })

	for _, s := range e.RouterStats() {
		if s.ID != router.ProfileBalanced {
			continue
		}
		if s.Alpha < 1.699 || s.Alpha > 1.701 {
			t.Errorf("alpha = %v, want 1.7", s.Alpha)
		}
	}
	if !e.HasProfile(router.ProfileBalanced) || e.HasProfile("nope") {
		t.Error("HasProfile mismatch")
	}
}

func TestResetRouter(t *testing.T) {
	e := newEngine(t)
	e.RecordFeedback(query.ExtractFeatures("coffee"), router.ProfileVectorHeavy, 1, 0, nil)
	waitFor(t, "feedback ingestion", func() bool { return e.LearningReport().TotalIngested == 1 })

	e.ResetRouter()
	for _, s := range e.RouterStats() {
		if s.Alpha != 1 || s.Beta != 1 || s.TotalTries != 0 {
			t.Errorf("profile %s not reset: %+v", s.ID, s)
		}
	}
}

func TestSchedule(t *testing.T) {
	e := newEngine(t)
	cands := []memory.Candidate{
		{ID: "old-important", Importance: 0.9, Relevance: 0.5, CreatedAt: testNow.AddDate(0, 0, -30)},
		{ID: "fresh-trivial", Importance: 0.1, Relevance: 0.5, CreatedAt: testNow},
	}

	got, err := e.Schedule(cands, "what matters", 1, memory.ImportanceFocused())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "old-important" {
		t.Errorf("importance focus picked %v", got)
	}

	got, err = e.Schedule(cands, "what's new", 1, memory.RecencyFocused())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != "fresh-trivial" {
		t.Errorf("recency focus picked %v", got)
	}

	if _, err := e.Schedule(cands, "", 1, memory.ScheduleConfig{Relevance: -1}); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
	if e.DefaultSchedule() != memory.Balanced() {
		t.Errorf("default schedule = %+v", e.DefaultSchedule())
	}
}

func TestWarm(t *testing.T) {
	e := newEngine(t,
		WithLearning(learning.Config{MinSamples: 1}, 0),
		WithWarming(cache.WarmConfig{}),
	)
	ctx := context.Background()

	if _, err := e.Search(ctx, mustQuery(t, "coffee")); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "feedback ingestion", func() bool { return e.LearningReport().TotalIngested == 1 })

	if err := e.ClearCache(ctx); err != nil {
		t.Fatalf("ClearCache: %v", err)
	}
	if size := e.CacheStats().Results.L1Size; size != 0 {
		t.Fatalf("L1 size after clear = %d", size)
	}

	n, err := e.Warm(ctx)
	if err != nil {
		t.Fatalf("Warm: %v", err)
	}
	if n != 1 {
		t.Fatalf("warmed %d, want 1", n)
	}

	if _, err := e.Search(ctx, mustQuery(t, "coffee")); err != nil {
		t.Fatal(err)
	}
	stats := e.CacheStats()
	if stats.Results.L1Hits != 1 {
		t.Errorf("expected warmed entry to be hit, stats %+v", stats.Results)
	}
	if stats.Warming.Runs != 1 || stats.Warming.Items != 1 {
		t.Errorf("warming stats = %+v", stats.Warming)
	}
}

func TestWarm_Disabled(t *testing.T) {
	e := newEngine(t)
	n, err := e.Warm(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("Warm = %d, %v", n, err)
	}
}

func TestSearch_AllStrategiesFailed(t *testing.T) {
	e, err := New(WithTextBackend(brokenText{}))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	_, err = e.Search(context.Background(), mustQuery(t, "coffee"))
	if !errors.Is(err, domain.ErrAllStrategiesFailed) {
		t.Fatalf("expected ErrAllStrategiesFailed, got %v", err)
	}
	if e.CacheStats().Results.Sets != 0 {
		t.Error("failed search must not be cached")
	}
	stats := e.StrategyStats()
	for kind, s := range stats {
		if s.Failures != 1 {
			t.Errorf("%s failures = %d, want 1", kind, s.Failures)
		}
	}
}

func TestClose_Twice(t *testing.T) {
	e := newEngine(t)
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
}
