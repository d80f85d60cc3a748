package recollect

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/engine"
	"github.com/kailas-cloud/recollect/internal/repository/embcache"
	"github.com/kailas-cloud/recollect/internal/usecase/cache"
	"github.com/kailas-cloud/recollect/internal/usecase/learning"
)

// Option configures the Engine.
type Option interface {
	apply(*settings)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*settings)

func (f optionFunc) apply(s *settings) { f(s) }

type settings struct {
	opts []engine.Option
}

func with(o engine.Option) Option {
	return optionFunc(func(s *settings) { s.opts = append(s.opts, o) })
}

// WithVectorBackend enables the vector strategy.
func WithVectorBackend(b VectorBackend) Option {
	return with(engine.WithVectorBackend(vectorAdapter{b: b}))
}

// WithTextBackend enables the full-text strategy.
func WithTextBackend(b TextBackend) Option {
	return with(engine.WithTextBackend(textAdapter{b: b}))
}

// WithFuzzyBackend enables the fuzzy strategy with the given edit distance.
func WithFuzzyBackend(b FuzzyBackend, fuzziness int) Option {
	return with(engine.WithFuzzyBackend(fuzzyAdapter{b: b}, fuzziness))
}

// WithMemoryStore serves the full-text and fuzzy strategies from m, and the
// vector strategy too when m was created with an Embedder.
func WithMemoryStore(m *MemoryStore, fuzziness int) Option {
	return optionFunc(func(s *settings) {
		s.opts = append(s.opts,
			engine.WithTextBackend(m.store),
			engine.WithFuzzyBackend(m.store, fuzziness),
		)
		if m.hasEmbedder {
			s.opts = append(s.opts, engine.WithVectorBackend(m.store))
		}
	})
}

// WithEmbedder sets the query embedding provider used by the vector strategy.
func WithEmbedder(e Embedder) Option {
	return with(engine.WithEmbedder(toDomainEmbedder(e)))
}

// WithEmbeddingCache caches query embeddings in-process and, when a remote
// cache is configured, in the shared KV store.
func WithEmbeddingCache(cfg EmbeddingCacheConfig) Option {
	return with(engine.WithEmbeddingCache(embcache.Config{
		KeyPrefix: cfg.KeyPrefix,
		MaxCost:   cfg.MaxCost,
		TTL:       cfg.TTL,
	}))
}

// WithAdapterTimeout bounds each strategy call.
func WithAdapterTimeout(d time.Duration) Option {
	return with(engine.WithAdapterTimeout(d))
}

// WithOverfetch sets how many hits per result slot each strategy is asked for.
func WithOverfetch(n int) Option {
	return with(engine.WithOverfetch(n))
}

// WithRRFK sets the reciprocal rank fusion constant.
func WithRRFK(k int) Option {
	return with(engine.WithRRFK(k))
}

// WithRecencyRerank blends fused scores with a recency signal. weight 0 disables it.
func WithRecencyRerank(weight float64, halfLife time.Duration) Option {
	return with(engine.WithRecencyRerank(weight, halfLife))
}

// WithRouter seeds the router and registers extra profiles next to the seeded ones.
func WithRouter(seed uint64, profiles ...Profile) Option {
	return with(engine.WithRouter(seed, toInternalProfiles(profiles)...))
}

// WithLearning tunes the learning engine and its feedback queue.
func WithLearning(cfg LearningConfig) Option {
	return with(engine.WithLearning(learning.Config{
		Capacity:           cfg.Capacity,
		MinSamples:         cfg.MinSamples,
		SatisfactionWeight: cfg.SatisfactionWeight,
		RefreshInterval:    cfg.RefreshInterval,
		TrendWindow:        cfg.TrendWindow,
	}, cfg.QueueBuffer))
}

// WithLocalCache sizes the in-process result cache. size 0 disables it.
func WithLocalCache(size int, ttl time.Duration) Option {
	return with(engine.WithLocalCache(size, ttl))
}

// WithRemoteCache adds the shared result cache level.
func WithRemoteCache(store KVStore, prefix string, ttl time.Duration) Option {
	var rs cache.RemoteStore
	if store != nil {
		rs = store
	}
	return with(engine.WithRemoteCache(rs, prefix, ttl))
}

// WithKeyPrecision sets the vector quantization of cache keys.
func WithKeyPrecision(decimals int) Option {
	return with(engine.WithKeyPrecision(decimals))
}

// WithWarming enables learned cache warming.
func WithWarming(cfg WarmConfig) Option {
	return with(engine.WithWarming(cache.WarmConfig{
		Interval:    cfg.Interval,
		TopN:        cfg.TopN,
		Concurrency: cfg.Concurrency,
		LedgerTTL:   cfg.LedgerTTL,
	}))
}

// WithSchedule sets the scheduler weights used by Search (when trimOnSearch is
// set) and as the Schedule default.
func WithSchedule(cfg ScheduleConfig, trimOnSearch bool) Option {
	return with(engine.WithSchedule(toInternalSchedule(cfg), trimOnSearch))
}

// WithDecayRate sets the exponential decay rate λ.
func WithDecayRate(lambda float64) Option {
	return with(engine.WithDecayRate(lambda))
}

// WithHalfLife derives the decay rate from a half-life in days.
func WithHalfLife(days float64) Option {
	return with(engine.WithHalfLife(days))
}

// WithClock injects the time source used by caches, scheduling and learning.
func WithClock(now func() time.Time) Option {
	return with(engine.WithClock(now))
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return with(engine.WithLogger(l))
}
