package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Local defaults.
const (
	DefaultLocalSize = 1024
	DefaultLocalTTL  = 5 * time.Minute
)

type entry struct {
	payload    []byte
	insertedAt time.Time
	ttl        time.Duration
}

func (e entry) expired(now time.Time) bool {
	return e.ttl > 0 && !now.Before(e.insertedAt.Add(e.ttl))
}

// Local is the in-process L1: a strict LRU whose entries expire on read.
type Local struct {
	lru *lru.Cache[string, entry]
	ttl time.Duration
	now func() time.Time
}

// NewLocal creates an L1 level. now may be nil.
func NewLocal(size int, ttl time.Duration, now func() time.Time) (*Local, error) {
	if size <= 0 {
		size = DefaultLocalSize
	}
	if ttl <= 0 {
		ttl = DefaultLocalTTL
	}
	if now == nil {
		now = time.Now
	}
	c, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &Local{lru: c, ttl: ttl, now: now}, nil
}

func (l *Local) name() string { return "l1" }

func (l *Local) get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := l.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if e.expired(l.now()) {
		l.lru.Remove(key)
		return nil, false, nil
	}
	return e.payload, true, nil
}

func (l *Local) set(_ context.Context, key string, payload []byte) error {
	l.lru.Add(key, entry{payload: payload, insertedAt: l.now(), ttl: l.ttl})
	return nil
}

func (l *Local) clear(context.Context) error {
	l.lru.Purge()
	return nil
}

// Len returns the number of entries, expired ones included until read.
func (l *Local) Len() int { return l.lru.Len() }
