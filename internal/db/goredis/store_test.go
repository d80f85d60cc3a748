package goredis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kailas-cloud/recollect/internal/db"
)

func TestNewStore_Validation(t *testing.T) {
	if _, err := NewStore(Config{}); err == nil {
		t.Error("expected error without addrs")
	}
	if _, err := NewStore(Config{URL: "://bad"}); err == nil {
		t.Error("expected error for malformed url")
	}
}

func TestNewStore_URL(t *testing.T) {
	s, err := NewStore(Config{URL: "redis://localhost:6379/2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Close()
}

// unreachable points at a port nothing listens on so every command fails fast.
func unreachable(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Config{
		Addrs:       []string{"127.0.0.1:1"},
		DialTimeout: 200 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestStore_ErrorsAreWrapped(t *testing.T) {
	s := unreachable(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	checks := map[string]error{
		"ping": s.Ping(ctx),
		"set":  s.SetWithTTL(ctx, "k", []byte("v"), time.Second),
		"del":  s.Del(ctx, "k"),
	}
	_, checks["get"] = s.Get(ctx, "k")
	_, checks["scan"] = s.Scan(ctx, "k*")

	for name, err := range checks {
		var dbErr *db.Error
		if !errors.As(err, &dbErr) {
			t.Errorf("%s: expected db.Error, got %v", name, err)
		}
		if errors.Is(err, db.ErrKeyNotFound) {
			t.Errorf("%s: connection failure must not look like a miss", name)
		}
	}
}

func TestDel_NoKeys(t *testing.T) {
	s := unreachable(t)
	if err := s.Del(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
