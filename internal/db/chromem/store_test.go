package chromem

import (
	"context"
	"testing"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain/query"
)

var now = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = s.Put(context.Background(),
		Memory{ID: "a", Content: "alpha", Embedding: []float32{1, 0, 0}, OwnerID: "u1", Tags: []string{"x"}, CreatedAt: now, Importance: 0.9},
		Memory{ID: "b", Content: "beta", Embedding: []float32{0.8, 0.6, 0}, OwnerID: "u2", Tags: []string{"y"}, CreatedAt: now.AddDate(0, -1, 0), Importance: 0.1},
		Memory{ID: "c", Content: "gamma", Embedding: []float32{0, 0, 1}, OwnerID: "u1", Tags: []string{"x", "y"}},
	)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	return s
}

func TestSearchVector_Order(t *testing.T) {
	s := newTestStore(t)

	hits, err := s.SearchVector(context.Background(), []float32{1, 0, 0}, 10, query.Filters{})
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if hits[i].ID != id {
			t.Errorf("hit %d = %s, want %s", i, hits[i].ID, id)
		}
	}
	if hits[0].Score < 0.99 || hits[0].Score > 1 {
		t.Errorf("identical vector score = %v, want ~1", hits[0].Score)
	}
	if hits[2].Score != 0 {
		t.Errorf("orthogonal vector score = %v, want 0", hits[2].Score)
	}
	if hits[0].Content != "alpha" || hits[0].Importance != 0.9 || !hits[0].CreatedAt.Equal(now) {
		t.Errorf("hit not hydrated: %+v", hits[0])
	}
}

func TestSearchVector_LimitAboveCount(t *testing.T) {
	s := newTestStore(t)

	hits, err := s.SearchVector(context.Background(), []float32{1, 0, 0}, 100, query.Filters{})
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("expected all 3 hits, got %d", len(hits))
	}
}

func TestSearchVector_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	hits, err := s.SearchVector(ctx, []float32{1, 0, 0}, 1, query.Filters{OwnerIDs: []string{"u2"}})
	if err != nil {
		t.Fatalf("SearchVector: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "b" {
		t.Fatalf("owner filter: got %+v", hits)
	}

	hits, _ = s.SearchVector(ctx, []float32{1, 0, 0}, 10, query.Filters{Tags: []string{"y"}})
	if len(hits) != 2 || hits[0].ID != "b" || hits[1].ID != "c" {
		t.Errorf("tag filter: got %+v", hits)
	}
}

func TestSearchVector_Empty(t *testing.T) {
	s, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	hits, err := s.SearchVector(context.Background(), []float32{1, 0}, 5, query.Filters{})
	if err != nil || hits != nil {
		t.Fatalf("expected nil, nil; got %v, %v", hits, err)
	}
}

func TestPutValidationAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, Memory{ID: "x"}); err == nil {
		t.Error("expected error without embedding")
	}
	if err := s.Put(ctx, Memory{Embedding: []float32{1}}); err == nil {
		t.Error("expected error without ID")
	}

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if s.Count() != 2 {
		t.Errorf("Count() = %d, want 2", s.Count())
	}
}
