package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/feedback"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

// Warmer defaults.
const (
	DefaultWarmInterval    = 5 * time.Minute
	DefaultWarmTopN        = 20
	DefaultWarmConcurrency = 4
	DefaultLedgerTTL       = 10 * time.Minute
)

// patternSource is the consumer interface for the learning engine (ISP).
type patternSource interface {
	TopPatterns(n int) []feedback.Pattern
}

// computer runs a query through the retrieval pipeline without touching the cache.
// partial reports that at least one strategy failed.
type computer interface {
	Compute(ctx context.Context, q *query.Query) (cands []candidate.Scored, partial bool, err error)
}

// WarmConfig tunes the warmer.
type WarmConfig struct {
	Interval    time.Duration
	TopN        int
	Concurrency int
	LedgerTTL   time.Duration
	Limit       int
}

// WarmStats is a snapshot of warming counters.
type WarmStats struct {
	Runs     uint64 `json:"runs"`
	Items    uint64 `json:"items"`
	Skipped  uint64 `json:"skipped"`
	Failures uint64 `json:"failures"`
}

// WarmMetrics are the optional Prometheus counters for warming.
type WarmMetrics struct {
	Runs  prometheus.Counter
	Items prometheus.Counter
}

// Warmer precomputes results for the most valuable learned query patterns.
type Warmer struct {
	cfg      WarmConfig
	patterns patternSource
	compute  computer
	cache    *MultiLevel
	keys     KeyBuilder
	ledger   *gocache.Cache
	metrics  WarmMetrics
	logger   *zap.Logger

	runs     atomic.Uint64
	items    atomic.Uint64
	skipped  atomic.Uint64
	failures atomic.Uint64
}

// NewWarmer creates a warmer.
func NewWarmer(
	cfg WarmConfig,
	patterns patternSource,
	compute computer,
	cache *MultiLevel,
	keys KeyBuilder,
	metrics WarmMetrics,
	logger *zap.Logger,
) *Warmer {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultWarmInterval
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultWarmTopN
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultWarmConcurrency
	}
	if cfg.LedgerTTL <= 0 {
		cfg.LedgerTTL = DefaultLedgerTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Warmer{
		cfg:      cfg,
		patterns: patterns,
		compute:  compute,
		cache:    cache,
		keys:     keys,
		ledger:   gocache.New(cfg.LedgerTTL, 2*cfg.LedgerTTL),
		metrics:  metrics,
		logger:   logger,
	}
}

// Run warms every Interval until ctx is done.
func (w *Warmer) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.WarmOnce(ctx); err != nil {
				w.logger.Warn("Cache warming run failed", zap.Error(err))
			}
		}
	}
}

// WarmOnce warms the current top patterns and returns the number of items computed.
// Items that fail are logged and skipped; only cancellation aborts the run.
func (w *Warmer) WarmOnce(ctx context.Context) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.cfg.Concurrency)

	var warmed atomic.Int64
	for _, p := range w.patterns.TopPatterns(w.cfg.TopN) {
		if p.SampleQuery == "" {
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ok, err := w.warm(gctx, p)
			if err != nil {
				w.failures.Add(1)
				w.logger.Warn("Failed to warm pattern", zap.String("pattern", p.Key), zap.Error(err))
				return nil
			}
			if ok {
				warmed.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()

	n := int(warmed.Load())
	w.runs.Add(1)
	w.items.Add(uint64(n))
	if w.metrics.Runs != nil {
		w.metrics.Runs.Inc()
	}
	if w.metrics.Items != nil {
		w.metrics.Items.Add(float64(n))
	}
	w.logger.Debug("Cache warming run finished", zap.Int("warmed", n))

	if err != nil {
		return n, fmt.Errorf("warm: %w", err)
	}
	return n, nil
}

// warm computes and stores one pattern's sample query unless it is already cached.
// A partial result counts as a failure.
func (w *Warmer) warm(ctx context.Context, p feedback.Pattern) (bool, error) {
	q, err := query.New(p.SampleQuery, w.cfg.Limit)
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	key := w.keys.Key(&q)

	if _, seen := w.ledger.Get(key); seen {
		w.skipped.Add(1)
		return false, nil
	}
	if _, hit := w.cache.Get(ctx, key); hit {
		w.ledger.SetDefault(key, struct{}{})
		w.skipped.Add(1)
		return false, nil
	}

	cands, partial, err := w.compute.Compute(ctx, &q)
	if err != nil {
		return false, fmt.Errorf("compute %q: %w", p.SampleQuery, err)
	}
	// Partial results stay out of the cache and the ledger so the next run retries them.
	if partial {
		return false, fmt.Errorf("compute %q: partial result", p.SampleQuery)
	}
	w.cache.Set(ctx, key, cands)
	w.ledger.SetDefault(key, struct{}{})
	return true, nil
}

// Stats returns a snapshot of the warming counters.
func (w *Warmer) Stats() WarmStats {
	return WarmStats{
		Runs:     w.runs.Load(),
		Items:    w.items.Load(),
		Skipped:  w.skipped.Load(),
		Failures: w.failures.Load(),
	}
}

// Forget drops the ledger so the next run rechecks every pattern.
func (w *Warmer) Forget() {
	w.ledger.Flush()
}
