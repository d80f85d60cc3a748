package learning

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/feedback"
)

// Defaults for Config.
const (
	DefaultMinSamples         = 10
	DefaultSatisfactionWeight = 0.7
	DefaultRefreshInterval    = time.Minute
	DefaultTrendWindow        = 100
	trendThreshold            = 0.05
)

// Trend directions reported by GenerateReport.
const (
	TrendImproving = "improving"
	TrendDeclining = "declining"
	TrendStable    = "stable"
)

// banditUpdater is the consumer interface for the router (ISP).
type banditUpdater interface {
	Update(profileID string, effectiveness float64) error
}

// Config tunes the learning engine.
type Config struct {
	Capacity           int
	MinSamples         int
	SatisfactionWeight float64
	RefreshInterval    time.Duration
	TrendWindow        int
}

func (c Config) withDefaults() Config {
	if c.MinSamples <= 0 {
		c.MinSamples = DefaultMinSamples
	}
	if c.SatisfactionWeight <= 0 || c.SatisfactionWeight > 1 {
		c.SatisfactionWeight = DefaultSatisfactionWeight
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.TrendWindow <= 0 {
		c.TrendWindow = DefaultTrendWindow
	}
	return c
}

// ProfileUsage summarizes feedback for one profile.
type ProfileUsage struct {
	Count             int     `json:"count"`
	MeanEffectiveness float64 `json:"mean_effectiveness"`
}

// Report is a point-in-time summary of the feedback log.
type Report struct {
	TotalRecords      int                     `json:"total_records"`
	TotalIngested     uint64                  `json:"total_ingested"`
	Capacity          int                     `json:"capacity"`
	MeanEffectiveness float64                 `json:"mean_effectiveness"`
	MeanLatency       time.Duration           `json:"mean_latency"`
	RecentMean        float64                 `json:"recent_mean"`
	PreviousMean      float64                 `json:"previous_mean"`
	Trend             string                  `json:"trend"`
	Profiles          map[string]ProfileUsage `json:"profiles"`
	PatternCount      int                     `json:"pattern_count"`
	GeneratedAt       time.Time               `json:"generated_at"`
}

// Engine records feedback, updates the router and derives query patterns.
type Engine struct {
	cfg    Config
	log    *Log
	bandit banditUpdater
	now    func() time.Time
	logger *zap.Logger

	mu       sync.RWMutex
	patterns []feedback.Pattern
	dirty    bool
}

// NewEngine creates a learning engine. bandit may be nil; now may be nil.
func NewEngine(cfg Config, bandit banditUpdater, now func() time.Time, logger *zap.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Engine{
		cfg:    cfg,
		log:    NewLog(cfg.Capacity),
		bandit: bandit,
		now:    now,
		logger: logger,
	}
}

// RecordFeedback appends rec and applies the bandit update. It never fails:
// an unknown profile is logged and the record is still kept.
func (e *Engine) RecordFeedback(rec feedback.Record) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = e.now()
	}
	rec.Effectiveness = feedback.Clamp(rec.Effectiveness)

	e.log.Append(rec)
	e.mu.Lock()
	e.dirty = true
	e.mu.Unlock()

	if e.bandit == nil || rec.ProfileID == "" {
		return
	}
	if err := e.bandit.Update(rec.ProfileID, rec.Reward(e.cfg.SatisfactionWeight)); err != nil {
		if errors.Is(err, domain.ErrUnknownProfile) {
			e.logger.Warn("Feedback for unknown profile", zap.String("profile", rec.ProfileID))
			return
		}
		e.logger.Warn("Bandit update failed", zap.String("profile", rec.ProfileID), zap.Error(err))
	}
}

// TopPatterns returns up to n patterns with at least MinSamples records, ordered by
// count x mean effectiveness desc, then count desc, then key asc.
func (e *Engine) TopPatterns(n int) []feedback.Pattern {
	if n <= 0 {
		return nil
	}
	e.mu.RLock()
	dirty := e.dirty
	e.mu.RUnlock()
	if dirty {
		e.RefreshPatterns()
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	n = min(n, len(e.patterns))
	out := make([]feedback.Pattern, n)
	copy(out, e.patterns[:n])
	return out
}

// RefreshPatterns recomputes the pattern index from the log.
func (e *Engine) RefreshPatterns() {
	patterns := buildPatterns(e.log.Snapshot(), e.cfg.MinSamples)

	e.mu.Lock()
	e.patterns = patterns
	e.dirty = false
	e.mu.Unlock()
}

// Run refreshes the pattern index every RefreshInterval until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RefreshPatterns()
			e.mu.RLock()
			n := len(e.patterns)
			e.mu.RUnlock()
			e.logger.Debug("Refreshed query patterns", zap.Int("patterns", n))
		}
	}
}

// GenerateReport summarizes the retained feedback.
func (e *Engine) GenerateReport() Report {
	records := e.log.Snapshot()
	r := Report{
		TotalRecords:  len(records),
		TotalIngested: e.log.Total(),
		Capacity:      e.log.Capacity(),
		Trend:         TrendStable,
		Profiles:      make(map[string]ProfileUsage),
		PatternCount:  len(buildPatterns(records, e.cfg.MinSamples)),
		GeneratedAt:   e.now(),
	}
	if len(records) == 0 {
		return r
	}

	eff := make([]float64, len(records))
	var latency time.Duration
	byProfile := make(map[string][]float64)
	for i, rec := range records {
		eff[i] = rec.Effectiveness
		latency += rec.Latency
		byProfile[rec.ProfileID] = append(byProfile[rec.ProfileID], rec.Effectiveness)
	}
	r.MeanEffectiveness = stat.Mean(eff, nil)
	r.MeanLatency = latency / time.Duration(len(records))

	for id, vals := range byProfile {
		r.Profiles[id] = ProfileUsage{Count: len(vals), MeanEffectiveness: stat.Mean(vals, nil)}
	}

	r.RecentMean, r.PreviousMean, r.Trend = trend(eff, e.cfg.TrendWindow)
	return r
}

// Reset clears the log and the pattern index.
func (e *Engine) Reset() {
	e.log.Clear()
	e.mu.Lock()
	e.patterns = nil
	e.dirty = false
	e.mu.Unlock()
}

// trend compares the mean of the last window against the window before it.
// With fewer than two records the trend is stable.
func trend(eff []float64, window int) (recent, previous float64, direction string) {
	if len(eff) < 2 {
		return 0, 0, TrendStable
	}
	w := min(window, len(eff)/2)
	recent = stat.Mean(eff[len(eff)-w:], nil)
	previous = stat.Mean(eff[len(eff)-2*w:len(eff)-w], nil)

	switch d := recent - previous; {
	case d > trendThreshold:
		return recent, previous, TrendImproving
	case d < -trendThreshold:
		return recent, previous, TrendDeclining
	default:
		return recent, previous, TrendStable
	}
}

func buildPatterns(records []feedback.Record, minSamples int) []feedback.Pattern {
	type agg struct {
		count   int
		eff     float64
		latency time.Duration
		sample  string
	}
	groups := make(map[string]*agg)
	for _, rec := range records {
		key := rec.Features.BucketKey()
		a, ok := groups[key]
		if !ok {
			a = &agg{}
			groups[key] = a
		}
		a.count++
		a.eff += rec.Effectiveness
		a.latency += rec.Latency
		if rec.QueryText != "" {
			a.sample = rec.QueryText // most recent wins
		}
	}

	out := make([]feedback.Pattern, 0, len(groups))
	for key, a := range groups {
		if a.count < minSamples {
			continue
		}
		out = append(out, feedback.Pattern{
			Key:               key,
			Count:             a.count,
			MeanEffectiveness: a.eff / float64(a.count),
			MeanLatency:       a.latency / time.Duration(a.count),
			SampleQuery:       a.sample,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		wi, wj := out[i].Weight(), out[j].Weight()
		if wi != wj {
			return wi > wj
		}
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}
