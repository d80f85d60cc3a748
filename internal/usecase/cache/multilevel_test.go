package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/domain"
)

func newLocal(t *testing.T, size int, ttl time.Duration, clock *manualClock) *Local {
	t.Helper()
	l, err := NewLocal(size, ttl, clock.Now)
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return l
}

func TestLocal_TTLScenario(t *testing.T) {
	clock := newManualClock()
	m := NewMultiLevel(newLocal(t, 10, time.Second, clock), nil, Metrics{}, zap.NewNop())
	ctx := context.Background()

	m.Set(ctx, "k", sampleCandidates())

	got, ok := m.Get(ctx, "k")
	if !ok || len(got) != 2 || got[0].ID() != "a" {
		t.Fatalf("expected hit at t=0, got %v %v", got, ok)
	}

	clock.Advance(2 * time.Second)
	got, ok = m.Get(ctx, "k")
	if ok || got != nil {
		t.Fatalf("expected miss at t=2s, got %v %v", got, ok)
	}
	if m.local.Len() != 0 {
		t.Error("expired entry must be evicted on read")
	}
}

func TestLocal_LRUEviction(t *testing.T) {
	clock := newManualClock()
	m := NewMultiLevel(newLocal(t, 2, time.Minute, clock), nil, Metrics{}, nil)
	ctx := context.Background()

	m.Set(ctx, "a", sampleCandidates())
	m.Set(ctx, "b", sampleCandidates())
	m.Get(ctx, "a")
	m.Set(ctx, "c", sampleCandidates())

	if _, ok := m.Get(ctx, "b"); ok {
		t.Error("least recently used entry must be evicted")
	}
	if _, ok := m.Get(ctx, "a"); !ok {
		t.Error("recently used entry must survive")
	}
}

func TestMultiLevel_PromotesL2Hit(t *testing.T) {
	clock := newManualClock()
	store := newMemStore()
	local := newLocal(t, 10, time.Minute, clock)
	m := NewMultiLevel(local, NewRemote(store, "test:", time.Hour), Metrics{}, nil)
	ctx := context.Background()

	m.Set(ctx, "k", sampleCandidates())
	if store.ttls["test:k"] != time.Hour {
		t.Errorf("remote ttl = %v, want 1h", store.ttls["test:k"])
	}

	_ = local.clear(ctx)
	if _, ok := m.Get(ctx, "k"); !ok {
		t.Fatal("expected L2 hit")
	}
	if local.Len() != 1 {
		t.Fatal("L2 hit must be promoted to L1")
	}

	store.getErr = errors.New("must not reach L2")
	if _, ok := m.Get(ctx, "k"); !ok {
		t.Fatal("expected L1 hit after promotion")
	}

	s := m.Stats()
	if s.L1Hits != 1 || s.L2Hits != 1 || s.Sets != 1 || s.Errors != 0 {
		t.Errorf("unexpected stats: %+v", s)
	}
	if len(s.Enabled) != 2 {
		t.Errorf("levels = %v", s.Enabled)
	}
}

func TestMultiLevel_MissesPerLevel(t *testing.T) {
	clock := newManualClock()
	store := newMemStore()
	local := newLocal(t, 10, time.Minute, clock)
	m := NewMultiLevel(local, NewRemote(store, "test:", time.Hour), Metrics{}, nil)
	ctx := context.Background()

	if _, ok := m.Get(ctx, "absent"); ok {
		t.Fatal("expected miss")
	}
	m.Set(ctx, "k", sampleCandidates())
	_ = local.clear(ctx)
	if _, ok := m.Get(ctx, "k"); !ok {
		t.Fatal("expected L2 hit")
	}

	s := m.Stats()
	if s.L1Misses != 2 || s.L2Misses != 1 {
		t.Errorf("L1Misses/L2Misses = %d/%d, want 2/1", s.L1Misses, s.L2Misses)
	}
	if s.Misses != 1 || s.L2Hits != 1 {
		t.Errorf("Misses/L2Hits = %d/%d, want 1/1", s.Misses, s.L2Hits)
	}
}

func TestMultiLevel_ErrorsAreMisses(t *testing.T) {
	errTotal := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_errors_total"}, []string{"level", "op"})
	store := newMemStore()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	m := NewMultiLevel(nil, NewRemote(store, "", 0), Metrics{Errors: errTotal}, nil)
	ctx := context.Background()

	m.Set(ctx, "k", sampleCandidates())
	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatal("failure must read as a miss")
	}

	if got := testutil.ToFloat64(errTotal.WithLabelValues("l2", "get")); got != 1 {
		t.Errorf("get errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(errTotal.WithLabelValues("l2", "set")); got != 1 {
		t.Errorf("set errors = %v, want 1", got)
	}
	if s := m.Stats(); s.Errors != 2 || s.Misses != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestMultiLevel_CorruptPayload(t *testing.T) {
	store := newMemStore()
	store.data[DefaultRemotePrefix+"k"] = []byte("{not json")
	m := NewMultiLevel(nil, NewRemote(store, "", 0), Metrics{}, nil)

	if _, ok := m.Get(context.Background(), "k"); ok {
		t.Fatal("corrupt payload must be a miss")
	}
}

func TestMultiLevel_Clear(t *testing.T) {
	clock := newManualClock()
	store := newMemStore()
	store.data["other:keep"] = []byte("x")
	m := NewMultiLevel(newLocal(t, 10, time.Minute, clock), NewRemote(store, "test:", 0), Metrics{}, nil)
	ctx := context.Background()

	m.Set(ctx, "k1", sampleCandidates())
	m.Set(ctx, "k2", sampleCandidates())
	if err := m.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok := m.Get(ctx, "k1"); ok {
		t.Error("expected miss after Clear")
	}
	if _, ok := store.data["other:keep"]; !ok {
		t.Error("Clear must only delete keys under its prefix")
	}

	store.scanErr = errors.New("scan failed")
	if err := m.Clear(ctx); !errors.Is(err, domain.ErrCache) {
		t.Fatalf("expected ErrCache, got %v", err)
	}
}

func TestMultiLevel_NoLevels(t *testing.T) {
	m := NewMultiLevel(nil, nil, Metrics{}, nil)
	m.Set(context.Background(), "k", sampleCandidates())
	if _, ok := m.Get(context.Background(), "k"); ok {
		t.Fatal("cache without levels never hits")
	}
}
