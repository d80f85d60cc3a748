package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/domain"
)

func TestEmbed_CacheMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{
		Embedding:    []float32{0.1, 0.2, 0.3},
		PromptTokens: 10,
		TotalTokens:  10,
	}}
	ce, ms := newTestCachedEmbedder(t, inner)

	var setKey string
	var setTTL time.Duration
	ms.setFn = func(_ context.Context, key string, _ []byte, ttl time.Duration) error {
		setKey, setTTL = key, ttl
		return nil
	}

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.1 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if result.TotalTokens != 10 || result.Cached {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !strings.HasPrefix(setKey, "test:emb:") {
		t.Errorf("remote key = %q, want prefix test:emb:", setKey)
	}
	if setTTL != time.Minute {
		t.Errorf("remote ttl = %v, want 1m", setTTL)
	}
	if s := ce.Stats(); s.Misses != 1 {
		t.Errorf("expected 1 miss, got %+v", s)
	}
}

func TestEmbed_LocalHitSkipsRemoteAndProvider(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	if _, err := ce.Embed(ctx, "Hello   World"); err != nil {
		t.Fatalf("first embed: %v", err)
	}

	ms.getFn = func(context.Context, string) ([]byte, error) {
		t.Fatal("remote tier must not be consulted on a local hit")
		return nil, nil
	}

	result, err := ce.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("second embed: %v", err)
	}
	if !result.Cached || result.TotalTokens != 0 {
		t.Fatalf("expected cached result, got %+v", result)
	}
	if inner.calls != 1 {
		t.Errorf("provider called %d times, want 1", inner.calls)
	}
	if s := ce.Stats(); s.LocalHits != 1 {
		t.Errorf("expected one local hit, got %+v", s)
	}
}

func TestEmbed_RemoteHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	cached := vectorToCacheBytes([]float32{0.4, 0.5, 0.6})
	ms.getFn = func(context.Context, string) ([]byte, error) { return cached, nil }

	result, err := ce.Embed(context.Background(), "test text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 || result.Embedding[0] != 0.4 {
		t.Fatalf("expected cached vector, got: %v", result.Embedding)
	}
	if inner.calls != 0 {
		t.Errorf("provider must not be called on remote hit")
	}
	if s := ce.Stats(); s.RemoteHits != 1 {
		t.Errorf("expected one remote hit, got %+v", s)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.setFn = func(context.Context, string, []byte, time.Duration) error {
		t.Fatal("nothing should be cached on provider error")
		return nil
	}

	_, err := ce.Embed(context.Background(), "test")
	if err == nil || !strings.Contains(err.Error(), "provider down") {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}
}

func TestEmbed_RemoteErrorDegradesToMiss(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.7}}}
	ce, ms := newTestCachedEmbedder(t, inner)

	ms.getFn = func(context.Context, string) ([]byte, error) { return nil, errors.New("connection reset") }
	ms.setFn = func(context.Context, string, []byte, time.Duration) error { return errors.New("connection reset") }

	result, err := ce.Embed(context.Background(), "test")
	if err != nil {
		t.Fatalf("cache failures must not surface, got %v", err)
	}
	if result.Embedding[0] != 0.7 {
		t.Fatalf("unexpected vector: %v", result.Embedding)
	}
	if s := ce.Stats(); s.Errors != 2 {
		t.Errorf("expected 2 cache errors, got %+v", s)
	}
}

func TestEmbed_CorruptRemotePayload(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.3}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getFn = func(context.Context, string) ([]byte, error) { return []byte{1, 2, 3}, nil }

	result, err := ce.Embed(context.Background(), "test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 || result.Embedding[0] != 0.3 {
		t.Fatalf("expected provider fallback, got %+v", result)
	}
}

func TestEmbed_NoRemoteTier(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.9}}}
	ce, err := New(inner, nil, Config{}, nil, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ce.Close()

	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ce.Embed(context.Background(), "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("provider called %d times, want 1", inner.calls)
	}
}

func TestEmbed_MetricsCounter(t *testing.T) {
	total := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_emb_cache_total"}, []string{"tier", "result"})
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}}}
	ce, err := New(inner, &mockKVStore{}, Config{}, total, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ce.Close()

	_, _ = ce.Embed(context.Background(), "q")
	_, _ = ce.Embed(context.Background(), "q")

	if got := testutil.ToFloat64(total.WithLabelValues("local", "miss")); got != 1 {
		t.Errorf("miss = %v, want 1", got)
	}
	if got := testutil.ToFloat64(total.WithLabelValues("local", "hit")); got != 1 {
		t.Errorf("hit = %v, want 1", got)
	}
}

func TestCacheKey_Normalized(t *testing.T) {
	ce, _ := newTestCachedEmbedder(t, &mockEmbedder{})
	if ce.cacheKey("  Foo\tBAR ") != ce.cacheKey("foo bar") {
		t.Error("keys must match after normalization")
	}
	if ce.cacheKey("foo") == ce.cacheKey("bar") {
		t.Error("different texts must not collide")
	}
}

func TestBytesToVector_Invalid(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for non-multiple-of-4 payload")
	}
	vec, err := bytesToVector(vectorToCacheBytes([]float32{1.5, -2}))
	if err != nil || vec[0] != 1.5 || vec[1] != -2 {
		t.Fatalf("unexpected decode: %v %v", vec, err)
	}
}
