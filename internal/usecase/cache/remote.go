package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/recollect/internal/db"
)

// Remote defaults.
const (
	DefaultRemoteTTL    = 30 * time.Minute
	DefaultRemotePrefix = "recollect:cache:"
	clearBatch          = 500
)

// RemoteStore is the shared KV backend behind L2. Both Redis drivers implement it.
type RemoteStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Remote is the shared L2. Expiry is enforced by the server.
type Remote struct {
	store  RemoteStore
	prefix string
	ttl    time.Duration
}

// NewRemote creates an L2 level over store.
func NewRemote(store RemoteStore, prefix string, ttl time.Duration) *Remote {
	if prefix == "" {
		prefix = DefaultRemotePrefix
	}
	if ttl <= 0 {
		ttl = DefaultRemoteTTL
	}
	return &Remote{store: store, prefix: prefix, ttl: ttl}
}

func (r *Remote) name() string { return "l2" }

func (r *Remote) get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.store.Get(ctx, r.prefix+key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return data, len(data) > 0, nil
}

func (r *Remote) set(ctx context.Context, key string, payload []byte) error {
	if err := r.store.SetWithTTL(ctx, r.prefix+key, payload, r.ttl); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// clear removes every key under the prefix with SCAN + DEL.
func (r *Remote) clear(ctx context.Context) error {
	keys, err := r.store.Scan(ctx, r.prefix+"*")
	if err != nil {
		return fmt.Errorf("scan %s*: %w", r.prefix, err)
	}
	for start := 0; start < len(keys); start += clearBatch {
		end := min(start+clearBatch, len(keys))
		if err := r.store.Del(ctx, keys[start:end]...); err != nil {
			return fmt.Errorf("delete cached keys: %w", err)
		}
	}
	return nil
}
