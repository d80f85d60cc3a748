// Package engine wires the retrieval pipeline, router, learning loop, caches and
// scheduler into one Engine over the internal domain types. The public
// recollect package and the HTTP server are thin layers on top of it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/feedback"
	"github.com/kailas-cloud/recollect/internal/domain/memory"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/domain/strategy"
	applog "github.com/kailas-cloud/recollect/internal/logger"
	"github.com/kailas-cloud/recollect/internal/metrics"
	"github.com/kailas-cloud/recollect/internal/repository/embcache"
	"github.com/kailas-cloud/recollect/internal/usecase/cache"
	"github.com/kailas-cloud/recollect/internal/usecase/fusion"
	"github.com/kailas-cloud/recollect/internal/usecase/learning"
	"github.com/kailas-cloud/recollect/internal/usecase/router"
	"github.com/kailas-cloud/recollect/internal/usecase/scheduler"
	searchuc "github.com/kailas-cloud/recollect/internal/usecase/search"
	strategyuc "github.com/kailas-cloud/recollect/internal/usecase/strategy"
)

// Engine is the assembled retrieval engine. Safe for concurrent use.
type Engine struct {
	pipeline  *searchuc.Service
	router    *router.Router
	learning  *learning.Engine
	queue     *learning.Queue
	cache     *cache.MultiLevel
	warmer    *cache.Warmer
	tracker   *strategyuc.Tracker
	scheduler *scheduler.Scheduler
	schedule  memory.ScheduleConfig
	embedder  *embcache.CachedEmbedder
	logger    *zap.Logger

	stop      context.CancelFunc
	closeOnce sync.Once
	closeErr  error
}

// CacheStats combines result cache, warming and embedding cache counters.
type CacheStats struct {
	Results   cache.Stats     `json:"results"`
	Warming   cache.WarmStats `json:"warming"`
	Embedding *embcache.Stats `json:"embedding,omitempty"`
}

// New wires an engine. At least one backend option is required.
// The feedback consumer starts immediately; call Run for periodic pattern
// refresh and cache warming, and Close to release resources.
func New(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o.apply(cfg)
	}
	if cfg.vector == nil && cfg.text == nil && cfg.fuzzy == nil {
		return nil, domain.ConfigErrorf("engine: at least one backend is required")
	}

	e := &Engine{
		schedule: cfg.schedule,
		logger:   cfg.logger,
		tracker:  strategyuc.NewTracker(metrics.StrategyRequestsTotal, metrics.StrategyDuration),
	}

	emb, err := e.wireEmbedder(cfg)
	if err != nil {
		return nil, err
	}

	e.router, err = router.New(router.Config{Seed: cfg.seed, Profiles: cfg.profiles}, metrics.RouterSelectionsTotal)
	if err != nil {
		e.closeEmbedder()
		return nil, fmt.Errorf("engine: router: %w", err)
	}

	decay, err := newDecay(cfg)
	if err != nil {
		e.closeEmbedder()
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.scheduler = scheduler.New(decay, cfg.now, metrics.ScheduledCandidates)
	if err := cfg.schedule.Validate(); err != nil {
		e.closeEmbedder()
		return nil, fmt.Errorf("engine: %w", err)
	}

	e.learning = learning.NewEngine(cfg.learning, e.router, cfg.now, cfg.logger.Named("learning"))
	e.queue = learning.NewQueue(
		e.learning,
		learning.QueueConfig{MaxPending: cfg.queueBuffer},
		applog.NewWatermillAdapter(cfg.logger),
		metrics.FeedbackTotal,
		cfg.logger.Named("feedback"),
	)

	deps, err := e.wirePipelineDeps(cfg, emb)
	if err != nil {
		e.closeEmbedder()
		return nil, err
	}
	e.pipeline, err = searchuc.New(
		searchuc.Config{AdapterTimeout: cfg.adapterTimeout, Overfetch: cfg.overfetch},
		deps, cfg.now, cfg.logger.Named("search"),
	)
	if err != nil {
		e.closeEmbedder()
		return nil, fmt.Errorf("engine: pipeline: %w", err)
	}

	if cfg.warm != nil && e.cache != nil {
		e.warmer = cache.NewWarmer(
			*cfg.warm, e.learning, e.pipeline, e.cache, cache.NewKeyBuilder(cfg.keyPrecision),
			cache.WarmMetrics{Runs: metrics.WarmRunsTotal, Items: metrics.WarmItemsTotal},
			cfg.logger.Named("warmer"),
		)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := e.queue.Start(ctx); err != nil {
		cancel()
		e.closeEmbedder()
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.stop = cancel
	return e, nil
}

func (e *Engine) wireEmbedder(cfg *engineConfig) (domain.Embedder, error) {
	if cfg.embedder == nil || cfg.embedCache == nil {
		return cfg.embedder, nil
	}
	ce, err := embcache.New(cfg.embedder, cfg.remote, *cfg.embedCache, metrics.EmbeddingCacheTotal, cfg.logger.Named("embcache"))
	if err != nil {
		return nil, fmt.Errorf("engine: embedding cache: %w", err)
	}
	e.embedder = ce
	return ce, nil
}

func (e *Engine) wirePipelineDeps(cfg *engineConfig, emb domain.Embedder) (searchuc.Deps, error) {
	deps := searchuc.Deps{
		Router:   e.router,
		Fuser:    fusion.New(cfg.rrfK),
		Feedback: e.queue,
		Observer: e.tracker,
		Duration: metrics.SearchDuration,
	}

	if cfg.vector != nil {
		deps.Strategies = append(deps.Strategies, strategyuc.NewVector(cfg.vector, emb))
	}
	if cfg.text != nil {
		deps.Strategies = append(deps.Strategies, strategyuc.NewFullText(cfg.text))
	}
	if cfg.fuzzy != nil {
		deps.Strategies = append(deps.Strategies, strategyuc.NewFuzzy(cfg.fuzzy, cfg.fuzziness))
	}

	if cfg.rerankWeight > 0 {
		deps.Reranker = fusion.NewRecencyReranker(cfg.rerankWeight, cfg.rerankHalfLife, cfg.now)
	}
	if cfg.trimOnSearch {
		tr, err := scheduler.NewTrimmer(e.scheduler, cfg.schedule)
		if err != nil {
			return searchuc.Deps{}, fmt.Errorf("engine: %w", err)
		}
		deps.Trimmer = tr
	}

	var local *cache.Local
	if cfg.l1Size > 0 {
		l, err := cache.NewLocal(cfg.l1Size, cfg.l1TTL, cfg.now)
		if err != nil {
			return searchuc.Deps{}, fmt.Errorf("engine: local cache: %w", err)
		}
		local = l
	}
	var remote *cache.Remote
	if cfg.remote != nil {
		remote = cache.NewRemote(cfg.remote, cfg.remotePrefix, cfg.remoteTTL)
	}
	if local != nil || remote != nil {
		e.cache = cache.NewMultiLevel(local, remote, cache.Metrics{
			Lookups: metrics.CacheLookupsTotal,
			Errors:  metrics.CacheErrorsTotal,
		}, cfg.logger.Named("cache"))
		deps.Cache = e.cache
		deps.Keys = cache.NewKeyBuilder(cfg.keyPrecision)
	}
	return deps, nil
}

func newDecay(cfg *engineConfig) (*scheduler.ExponentialDecay, error) {
	if cfg.halfLifeDays > 0 {
		return scheduler.NewHalfLifeDecay(cfg.halfLifeDays)
	}
	return scheduler.NewExponentialDecay(cfg.decayRate)
}

// Search answers q through the cache and the adaptive pipeline.
func (e *Engine) Search(ctx context.Context, q query.Query) ([]candidate.Scored, error) {
	cands, err := e.pipeline.Search(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return cands, nil
}

// Schedule returns the top k candidates by relevance, importance and recency.
// queryText is only used for logging.
func (e *Engine) Schedule(
	cands []memory.Candidate, queryText string, k int, cfg memory.ScheduleConfig,
) ([]memory.Candidate, error) {
	out, err := e.scheduler.Schedule(cands, k, cfg)
	if err != nil {
		return nil, fmt.Errorf("schedule: %w", err)
	}
	e.logger.Debug("Scheduled memories",
		zap.String("query", queryText),
		zap.Int("candidates", len(cands)),
		zap.Int("selected", len(out)),
	)
	return out, nil
}

// DefaultSchedule returns the configured scheduler weights.
func (e *Engine) DefaultSchedule() memory.ScheduleConfig { return e.schedule }

// RecordFeedback enqueues an explicit outcome for the learning engine. It never
// blocks and never fails; unknown profiles are logged by the consumer.
func (e *Engine) RecordFeedback(
	features query.Features, profileID string, effectiveness float64, latency time.Duration, satisfaction *float64,
) {
	e.queue.Publish(feedback.Record{
		Features:      features,
		ProfileID:     profileID,
		Effectiveness: effectiveness,
		Latency:       latency,
		Satisfaction:  satisfaction,
	})
}

// HasProfile reports whether the router knows profileID.
func (e *Engine) HasProfile(profileID string) bool {
	_, ok := e.router.Profile(profileID)
	return ok
}

// RouterStats returns a snapshot of every router profile.
func (e *Engine) RouterStats() []router.ProfileStats { return e.router.Stats() }

// CacheStats returns cache counters.
func (e *Engine) CacheStats() CacheStats {
	var s CacheStats
	if e.cache != nil {
		s.Results = e.cache.Stats()
	}
	if e.warmer != nil {
		s.Warming = e.warmer.Stats()
	}
	if e.embedder != nil {
		es := e.embedder.Stats()
		s.Embedding = &es
	}
	return s
}

// LearningReport summarizes the feedback log.
func (e *Engine) LearningReport() learning.Report { return e.learning.GenerateReport() }

// StrategyStats returns per-strategy success, failure and latency counters.
func (e *Engine) StrategyStats() map[strategy.Kind]strategyuc.Stats { return e.tracker.Snapshot() }

// Warm runs one learned warming pass and returns the number of entries computed.
// Without a result cache or with warming disabled it is a no-op.
func (e *Engine) Warm(ctx context.Context) (int, error) {
	if e.warmer == nil {
		return 0, nil
	}
	e.learning.RefreshPatterns()
	n, err := e.warmer.WarmOnce(ctx)
	if err != nil {
		return n, fmt.Errorf("warm: %w", err)
	}
	return n, nil
}

// ClearCache drops every cached result and embedding.
func (e *Engine) ClearCache(ctx context.Context) error {
	var errs []error
	if e.cache != nil {
		if err := e.cache.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.warmer != nil {
		e.warmer.Forget()
	}
	if e.embedder != nil {
		e.embedder.Clear()
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// ResetRouter restores every profile to its uniform prior.
func (e *Engine) ResetRouter() {
	e.router.Reset()
	e.logger.Info("Router reset")
}

// PendingFeedback returns the number of queued, not yet ingested feedback records.
func (e *Engine) PendingFeedback() int64 { return e.queue.Pending() }

// Run refreshes learned patterns and warms the cache until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Go(func() { e.learning.Run(ctx) })
	if e.warmer != nil {
		wg.Go(func() { e.warmer.Run(ctx) })
	}
	wg.Wait()
}

// Close stops the feedback consumer and releases caches. Safe to call twice.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		e.stop()
		e.closeErr = e.queue.Close()
		e.closeEmbedder()
	})
	return e.closeErr
}

func (e *Engine) closeEmbedder() {
	if e.embedder != nil {
		e.embedder.Close()
	}
}
