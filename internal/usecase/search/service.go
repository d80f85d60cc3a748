package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/feedback"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/usecase/fusion"
	"github.com/kailas-cloud/recollect/internal/usecase/router"
	strategyuc "github.com/kailas-cloud/recollect/internal/usecase/strategy"
)

// Pipeline defaults.
const (
	DefaultAdapterTimeout = 2 * time.Second
	DefaultOverfetch      = 2
)

// Search outcome labels.
const (
	statusHit     = "hit"
	statusOK      = "ok"
	statusPartial = "partial"
	statusEmpty   = "empty"
	statusError   = "error"
)

// Config tunes the pipeline.
type Config struct {
	// AdapterTimeout bounds each strategy call. The caller deadline still applies.
	AdapterTimeout time.Duration
	// Overfetch multiplies the query limit when asking each strategy for hits.
	Overfetch int
}

func (c Config) withDefaults() Config {
	if c.AdapterTimeout <= 0 {
		c.AdapterTimeout = DefaultAdapterTimeout
	}
	if c.Overfetch <= 0 {
		c.Overfetch = DefaultOverfetch
	}
	return c
}

// Deps are the collaborators of the pipeline. Everything except Strategies,
// Router and Fuser is optional. Without a Trimmer results are truncated to the limit.
type Deps struct {
	Strategies []strategyuc.Strategy
	Router     ProfileSelector
	Fuser      Fuser
	Reranker   fusion.Reranker
	Trimmer    Trimmer
	Cache      ResultCache
	Keys       Keyer
	Feedback   FeedbackSink
	Observer   Observer
	Duration   *prometheus.HistogramVec
}

// Service runs the retrieval pipeline: cache lookup, routing, parallel
// strategy fan-out, fusion, scheduling and feedback publication.
type Service struct {
	cfg    Config
	deps   Deps
	now    func() time.Time
	logger *zap.Logger
}

// New creates a pipeline service.
func New(cfg Config, deps Deps, now func() time.Time, logger *zap.Logger) (*Service, error) {
	if len(deps.Strategies) == 0 {
		return nil, domain.ConfigErrorf("at least one strategy is required")
	}
	if deps.Router == nil || deps.Fuser == nil {
		return nil, domain.ConfigErrorf("router and fuser are required")
	}
	seen := make(map[string]bool, len(deps.Strategies))
	for _, s := range deps.Strategies {
		k := string(s.Kind())
		if seen[k] {
			return nil, domain.ConfigErrorf("duplicate strategy %q", k)
		}
		seen[k] = true
	}
	if (deps.Cache == nil) != (deps.Keys == nil) {
		return nil, domain.ConfigErrorf("cache and key builder must be set together")
	}
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{cfg: cfg.withDefaults(), deps: deps, now: now, logger: logger}, nil
}

// Search answers a query. Empty queries yield an empty result. Cache hits skip
// routing and feedback. Only complete results are cached.
func (s *Service) Search(ctx context.Context, q query.Query) ([]candidate.Scored, error) {
	start := s.now()
	if isEmpty(&q) {
		s.observe(statusEmpty, start)
		return []candidate.Scored{}, nil
	}

	var key string
	if s.deps.Cache != nil {
		key = s.deps.Keys.Key(&q)
		if cands, ok := s.deps.Cache.Get(ctx, key); ok {
			s.observe(statusHit, start)
			return cands, nil
		}
	}

	profile, err := s.deps.Router.Select(&q)
	if err != nil {
		s.observe(statusError, start)
		return nil, fmt.Errorf("select profile: %w", err)
	}

	cands, partial, err := s.run(ctx, &q)
	if err != nil {
		s.observe(statusError, start)
		return nil, err
	}

	if s.deps.Cache != nil && !partial {
		s.deps.Cache.Set(ctx, key, cands)
	}

	latency := s.now().Sub(start)
	if s.deps.Feedback != nil {
		s.deps.Feedback.Publish(feedback.Record{
			Features:      q.Features(),
			ProfileID:     profile.ID,
			Effectiveness: router.EffectivenessProxy(cands),
			Latency:       latency,
			QueryText:     q.Text(),
		})
	}

	status := statusOK
	if partial {
		status = statusPartial
	}
	s.observe(status, start)
	s.logger.Debug("Search completed",
		zap.String("profile", profile.ID),
		zap.Int("results", len(cands)),
		zap.Bool("partial", partial),
		zap.Duration("latency", latency),
	)
	return cands, nil
}

// Compute routes and runs q without the cache or feedback. Used by the cache
// warmer. partial reports that at least one strategy failed.
func (s *Service) Compute(ctx context.Context, q *query.Query) ([]candidate.Scored, bool, error) {
	if isEmpty(q) {
		return []candidate.Scored{}, false, nil
	}
	if _, err := s.deps.Router.Select(q); err != nil {
		return nil, false, fmt.Errorf("select profile: %w", err)
	}
	return s.run(ctx, q)
}

type outcome struct {
	list fusion.Ranked
	err  error
}

type searchResult struct {
	hits []candidate.Hit
	err  error
}

// run fans out to every strategy with a positive weight, fuses the successful
// lists and applies rerank, threshold and the final top-k. partial reports that at least
// one strategy failed.
func (s *Service) run(ctx context.Context, q *query.Query) ([]candidate.Scored, bool, error) {
	w := q.Weights()
	active := make([]strategyuc.Strategy, 0, len(s.deps.Strategies))
	for _, st := range s.deps.Strategies {
		if w.For(st.Kind()) > 0 {
			active = append(active, st)
		}
	}
	if len(active) == 0 {
		return nil, false, domain.ConfigErrorf("no configured strategy has a positive weight")
	}

	outcomes := s.fanOut(ctx, q, active)

	lists := make([]fusion.Ranked, 0, len(outcomes))
	causes := make(map[string]error)
	for i, o := range outcomes {
		kind := string(active[i].Kind())
		if o.err != nil {
			if errors.Is(o.err, domain.ErrEmbedding) && len(q.Vector()) == 0 {
				return nil, false, fmt.Errorf("strategy %s: %w", kind, o.err)
			}
			causes[kind] = o.err
			s.logger.Warn("Strategy failed", zap.String("strategy", kind), zap.Error(o.err))
			continue
		}
		lists = append(lists, o.list)
	}

	if len(lists) == 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, fmt.Errorf("%w: %w", domain.ErrTimeout, ctxErr)
		}
		return nil, false, domain.NewAllStrategiesFailed(causes)
	}

	cands, err := s.deps.Fuser.Fuse(lists, w)
	if err != nil {
		return nil, false, fmt.Errorf("fuse: %w", err)
	}
	if s.deps.Reranker != nil {
		cands = s.deps.Reranker.Rerank(cands)
	}
	if t, ok := q.Threshold(); ok {
		cands = aboveThreshold(cands, t)
	}
	switch {
	case s.deps.Trimmer != nil:
		if cands, err = s.deps.Trimmer.Trim(cands, q.Limit()); err != nil {
			return nil, false, fmt.Errorf("schedule: %w", err)
		}
	case len(cands) > q.Limit():
		cands = cands[:q.Limit()]
	}
	return cands, len(causes) > 0, nil
}

func (s *Service) fanOut(ctx context.Context, q *query.Query, active []strategyuc.Strategy) []outcome {
	fetch := q.Limit() * s.cfg.Overfetch
	outcomes := make([]outcome, len(active))

	var wg sync.WaitGroup
	for i, st := range active {
		wg.Go(func() {
			actx, cancel := context.WithTimeout(ctx, s.cfg.AdapterTimeout)
			defer cancel()

			began := time.Now()
			// Buffered so an adapter that ignores ctx can still finish and exit.
			done := make(chan searchResult, 1)
			go func() {
				hits, err := st.Search(actx, q, fetch)
				done <- searchResult{hits: hits, err: err}
			}()

			var hits []candidate.Hit
			var err error
			select {
			case r := <-done:
				hits, err = r.hits, r.err
				if err == nil && actx.Err() != nil {
					err = fmt.Errorf("%w: %w", domain.ErrTimeout, actx.Err())
				}
			case <-actx.Done():
				err = fmt.Errorf("%w: %w", domain.ErrTimeout, actx.Err())
			}
			if s.deps.Observer != nil {
				s.deps.Observer.Observe(st.Kind(), time.Since(began), err)
			}
			outcomes[i] = outcome{list: fusion.Ranked{Kind: st.Kind(), Hits: hits}, err: err}
		})
	}
	wg.Wait()
	return outcomes
}

func (s *Service) observe(status string, start time.Time) {
	if s.deps.Duration != nil {
		s.deps.Duration.WithLabelValues(status).Observe(s.now().Sub(start).Seconds())
	}
}

func aboveThreshold(cands []candidate.Scored, t float64) []candidate.Scored {
	out := cands[:0:0]
	for i := range cands {
		if cands[i].Score() >= t {
			out = append(out, cands[i])
		}
	}
	return out
}

func isEmpty(q *query.Query) bool {
	return strings.TrimSpace(q.Text()) == "" && len(q.Vector()) == 0
}
