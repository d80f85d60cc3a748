package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/db"
	"github.com/kailas-cloud/recollect/internal/domain"
)

const (
	defaultNumCounters = 1e5
	defaultMaxCost     = 64 << 20
	defaultBufferItems = 64
	defaultTTL         = time.Hour
)

// store is the consumer interface for the remote tier (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Config tunes the embedding cache.
type Config struct {
	// KeyPrefix namespaces remote keys.
	KeyPrefix string
	// MaxCost bounds the local tier in bytes of vector payload.
	MaxCost int64
	// TTL applies to both tiers. Zero means the default.
	TTL time.Duration
}

// Stats is a snapshot of embedding cache counters.
type Stats struct {
	LocalHits  uint64 `json:"local_hits"`
	RemoteHits uint64 `json:"remote_hits"`
	Misses     uint64 `json:"misses"`
	Errors     uint64 `json:"errors"`
}

// CachedEmbedder caches embeddings keyed by normalized query text. The local
// tier is an in-process ristretto cache; the optional remote tier is a shared KV store.
type CachedEmbedder struct {
	inner      domain.Embedder
	local      *ristretto.Cache
	remote     store
	prefix     string
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger

	localHits  atomic.Uint64
	remoteHits atomic.Uint64
	misses     atomic.Uint64
	errs       atomic.Uint64
}

// New creates a caching decorator. remote may be nil.
// cacheTotal is a counter vec with labels "tier" and "result", passed explicitly.
func New(
	inner domain.Embedder,
	remote store,
	cfg Config,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) (*CachedEmbedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	maxCost := cfg.MaxCost
	if maxCost <= 0 {
		maxCost = defaultMaxCost
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	local, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: defaultNumCounters,
		MaxCost:     maxCost,
		BufferItems: defaultBufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("create local embedding cache: %w", err)
	}

	return &CachedEmbedder{
		inner:      inner,
		local:      local,
		remote:     remote,
		prefix:     cfg.KeyPrefix + "emb:",
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}, nil
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 and Cached = true.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if v, ok := c.local.Get(key); ok {
		if vec, ok := v.([]float32); ok {
			c.localHits.Add(1)
			c.incCache("local", "hit")
			return domain.EmbeddingResult{Embedding: cloneVec(vec), Cached: true}, nil
		}
	}

	if vec, ok := c.getFromRemote(ctx, key); ok {
		c.remoteHits.Add(1)
		c.incCache("remote", "hit")
		c.putLocal(key, vec)
		return domain.EmbeddingResult{Embedding: vec, Cached: true}, nil
	}

	c.misses.Add(1)
	c.incCache("local", "miss")

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	c.putLocal(key, result.Embedding)
	c.putToRemote(ctx, key, result.Embedding)
	return result, nil
}

// Stats returns a snapshot of the cache counters.
func (c *CachedEmbedder) Stats() Stats {
	return Stats{
		LocalHits:  c.localHits.Load(),
		RemoteHits: c.remoteHits.Load(),
		Misses:     c.misses.Load(),
		Errors:     c.errs.Load(),
	}
}

// Clear drops the local tier. Remote entries expire on their own TTL.
func (c *CachedEmbedder) Clear() {
	c.local.Clear()
}

// Close releases the local tier.
func (c *CachedEmbedder) Close() {
	c.local.Close()
}

func (c *CachedEmbedder) incCache(tier, result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(tier, result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.Sum256([]byte(domain.NormalizeText(text)))
	return c.prefix + hex.EncodeToString(h[:])
}

func (c *CachedEmbedder) putLocal(key string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	c.local.SetWithTTL(key, cloneVec(vec), int64(len(vec)*4), c.ttl)
	c.local.Wait()
}

func (c *CachedEmbedder) getFromRemote(ctx context.Context, key string) ([]float32, bool) {
	if c.remote == nil {
		return nil, false
	}
	data, err := c.remote.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.errs.Add(1)
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := bytesToVector(data)
	if err != nil {
		c.errs.Add(1)
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	return vec, true
}

func (c *CachedEmbedder) putToRemote(ctx context.Context, key string, vec []float32) {
	if c.remote == nil || len(vec) == 0 {
		return
	}
	if err := c.remote.SetWithTTL(ctx, key, vectorToCacheBytes(vec), c.ttl); err != nil {
		c.errs.Add(1)
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}

func vectorToCacheBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func bytesToVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d (not multiple of 4)", len(data))
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
