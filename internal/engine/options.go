package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/memory"
	"github.com/kailas-cloud/recollect/internal/repository/embcache"
	"github.com/kailas-cloud/recollect/internal/usecase/cache"
	"github.com/kailas-cloud/recollect/internal/usecase/learning"
	"github.com/kailas-cloud/recollect/internal/usecase/router"
	"github.com/kailas-cloud/recollect/internal/usecase/scheduler"
	strategyuc "github.com/kailas-cloud/recollect/internal/usecase/strategy"
)

// Option configures the Engine.
type Option interface {
	apply(*engineConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*engineConfig)

func (f optionFunc) apply(c *engineConfig) { f(c) }

type engineConfig struct {
	vector    strategyuc.VectorBackend
	text      strategyuc.TextBackend
	fuzzy     strategyuc.FuzzyBackend
	fuzziness int
	embedder  domain.Embedder

	adapterTimeout time.Duration
	overfetch      int
	rrfK           int
	rerankWeight   float64
	rerankHalfLife time.Duration

	seed     uint64
	profiles []router.Profile

	learning    learning.Config
	queueBuffer int

	l1Size       int
	l1TTL        time.Duration
	remote       cache.RemoteStore
	remotePrefix string
	remoteTTL    time.Duration
	keyPrecision int
	embedCache   *embcache.Config
	warm         *cache.WarmConfig

	schedule     memory.ScheduleConfig
	trimOnSearch bool
	decayRate    float64
	halfLifeDays float64

	now    func() time.Time
	logger *zap.Logger
}

func defaultConfig() *engineConfig {
	return &engineConfig{
		fuzziness:    strategyuc.DefaultFuzziness,
		l1Size:       1000,
		l1TTL:        5 * time.Minute,
		keyPrecision: cache.DefaultKeyPrecision,
		schedule:     memory.Balanced(),
		decayRate:    scheduler.DefaultDecayRate,
		now:          time.Now,
		logger:       zap.NewNop(),
	}
}

// WithVectorBackend enables the vector strategy.
func WithVectorBackend(b strategyuc.VectorBackend) Option {
	return optionFunc(func(c *engineConfig) { c.vector = b })
}

// WithTextBackend enables the full-text strategy.
func WithTextBackend(b strategyuc.TextBackend) Option {
	return optionFunc(func(c *engineConfig) { c.text = b })
}

// WithFuzzyBackend enables the fuzzy strategy with the given edit distance.
func WithFuzzyBackend(b strategyuc.FuzzyBackend, fuzziness int) Option {
	return optionFunc(func(c *engineConfig) {
		c.fuzzy = b
		c.fuzziness = fuzziness
	})
}

// WithEmbedder sets the query embedding provider used by the vector strategy.
func WithEmbedder(e domain.Embedder) Option {
	return optionFunc(func(c *engineConfig) { c.embedder = e })
}

// WithEmbeddingCache caches query embeddings in-process and, when a remote
// cache is configured, in the shared KV store.
func WithEmbeddingCache(cfg embcache.Config) Option {
	return optionFunc(func(c *engineConfig) { c.embedCache = &cfg })
}

// WithAdapterTimeout bounds each strategy call.
func WithAdapterTimeout(d time.Duration) Option {
	return optionFunc(func(c *engineConfig) { c.adapterTimeout = d })
}

// WithOverfetch sets how many hits per result slot each strategy is asked for.
func WithOverfetch(n int) Option {
	return optionFunc(func(c *engineConfig) { c.overfetch = n })
}

// WithRRFK sets the reciprocal rank fusion constant.
func WithRRFK(k int) Option {
	return optionFunc(func(c *engineConfig) { c.rrfK = k })
}

// WithRecencyRerank blends fused scores with a recency signal. weight 0 disables it.
func WithRecencyRerank(weight float64, halfLife time.Duration) Option {
	return optionFunc(func(c *engineConfig) {
		c.rerankWeight = weight
		c.rerankHalfLife = halfLife
	})
}

// WithRouter seeds the router and registers extra profiles.
func WithRouter(seed uint64, profiles ...router.Profile) Option {
	return optionFunc(func(c *engineConfig) {
		c.seed = seed
		c.profiles = profiles
	})
}

// WithLearning tunes the learning engine and its feedback queue.
func WithLearning(cfg learning.Config, queueBuffer int) Option {
	return optionFunc(func(c *engineConfig) {
		c.learning = cfg
		c.queueBuffer = queueBuffer
	})
}

// WithLocalCache sizes the in-process result cache. size 0 disables it.
func WithLocalCache(size int, ttl time.Duration) Option {
	return optionFunc(func(c *engineConfig) {
		c.l1Size = size
		c.l1TTL = ttl
	})
}

// WithRemoteCache adds the shared result cache level.
func WithRemoteCache(store cache.RemoteStore, prefix string, ttl time.Duration) Option {
	return optionFunc(func(c *engineConfig) {
		c.remote = store
		c.remotePrefix = prefix
		c.remoteTTL = ttl
	})
}

// WithKeyPrecision sets the vector quantization of cache keys.
func WithKeyPrecision(decimals int) Option {
	return optionFunc(func(c *engineConfig) { c.keyPrecision = decimals })
}

// WithWarming enables learned cache warming.
func WithWarming(cfg cache.WarmConfig) Option {
	return optionFunc(func(c *engineConfig) { c.warm = &cfg })
}

// WithSchedule sets the scheduler weights used by Search (when trimOnSearch is
// set) and as the Schedule default.
func WithSchedule(cfg memory.ScheduleConfig, trimOnSearch bool) Option {
	return optionFunc(func(c *engineConfig) {
		c.schedule = cfg
		c.trimOnSearch = trimOnSearch
	})
}

// WithDecayRate sets the exponential decay rate λ.
func WithDecayRate(lambda float64) Option {
	return optionFunc(func(c *engineConfig) {
		c.decayRate = lambda
		c.halfLifeDays = 0
	})
}

// WithHalfLife derives the decay rate from a half-life in days.
func WithHalfLife(days float64) Option {
	return optionFunc(func(c *engineConfig) { c.halfLifeDays = days })
}

// WithClock injects the time source used by caches, scheduling and learning.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(c *engineConfig) {
		if now != nil {
			c.now = now
		}
	})
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *engineConfig) {
		if l != nil {
			c.logger = l
		}
	})
}
