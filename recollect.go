// Package recollect is an adaptive hybrid memory retrieval engine.
//
// A query fans out to vector, full-text and fuzzy strategies, the ranked lists
// are fused with weighted reciprocal rank fusion, and a Thompson sampling
// router learns which weight profile works for which kind of query. Results
// are cached in-process and optionally in a shared KV store, and a scheduler
// picks the memories most worth keeping in a bounded context.
package recollect

import (
	"context"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain/memory"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/engine"
)

// Engine is the retrieval engine. Safe for concurrent use.
type Engine struct {
	eng *engine.Engine
}

// New creates an engine. At least one backend option is required.
// The feedback consumer starts immediately; call Run for periodic pattern
// refresh and cache warming, and Close to release resources.
func New(opts ...Option) (*Engine, error) {
	s := &settings{}
	for _, o := range opts {
		o.apply(s)
	}
	eng, err := engine.New(s.opts...)
	if err != nil {
		return nil, err
	}
	return &Engine{eng: eng}, nil
}

// Search answers text through the cache and the adaptive pipeline.
// opts may be nil.
func (e *Engine) Search(ctx context.Context, text string, opts *SearchOptions) ([]SearchResult, error) {
	q, err := toInternalQuery(text, opts)
	if err != nil {
		return nil, err
	}
	cands, err := e.eng.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	return fromScored(cands), nil
}

// Schedule returns the top k candidates by relevance, importance and recency.
func (e *Engine) Schedule(cands []MemoryCandidate, queryText string, k int, cfg ScheduleConfig) ([]MemoryCandidate, error) {
	out, err := e.eng.Schedule(toInternalCandidates(cands), queryText, k, toInternalSchedule(cfg))
	if err != nil {
		return nil, err
	}
	return fromInternalCandidates(out), nil
}

// DefaultSchedule returns the configured scheduler weights.
func (e *Engine) DefaultSchedule() ScheduleConfig {
	return fromInternalSchedule(e.eng.DefaultSchedule())
}

// RecordFeedback enqueues an explicit outcome for the learning engine. It never
// blocks and never fails; unknown profiles are dropped by the consumer.
func (e *Engine) RecordFeedback(
	features Features, profileID string, effectiveness float64, latency time.Duration, satisfaction *float64,
) {
	e.eng.RecordFeedback(toInternalFeatures(features), profileID, effectiveness, latency, satisfaction)
}

// HasProfile reports whether the router knows profileID.
func (e *Engine) HasProfile(profileID string) bool { return e.eng.HasProfile(profileID) }

// RouterStats returns a snapshot of every router profile.
func (e *Engine) RouterStats() []ProfileStats { return fromProfileStats(e.eng.RouterStats()) }

// CacheStats returns cache counters.
func (e *Engine) CacheStats() CacheStats { return fromCacheStats(e.eng.CacheStats()) }

// LearningReport summarizes the feedback log.
func (e *Engine) LearningReport() LearningReport { return fromReport(e.eng.LearningReport()) }

// StrategyStats returns per-strategy counters keyed by strategy name.
func (e *Engine) StrategyStats() map[string]StrategyStats {
	return fromStrategyStats(e.eng.StrategyStats())
}

// Warm runs one learned warming pass and returns the number of entries cached.
func (e *Engine) Warm(ctx context.Context) (int, error) { return e.eng.Warm(ctx) }

// ClearCache drops every cached result and embedding.
func (e *Engine) ClearCache(ctx context.Context) error { return e.eng.ClearCache(ctx) }

// ResetRouter restores every profile to its uniform prior.
func (e *Engine) ResetRouter() { e.eng.ResetRouter() }

// PendingFeedback returns the number of queued, not yet ingested feedback records.
func (e *Engine) PendingFeedback() int64 { return e.eng.PendingFeedback() }

// Run refreshes learned patterns and warms the cache until ctx is done.
func (e *Engine) Run(ctx context.Context) { e.eng.Run(ctx) }

// Close stops the feedback consumer and releases caches. Safe to call twice.
func (e *Engine) Close() error { return e.eng.Close() }

// ExtractFeatures derives the routing features of a query text.
func ExtractFeatures(text string) Features {
	return fromInternalFeatures(query.ExtractFeatures(text))
}

// RelevanceFocused favors fused relevance.
func RelevanceFocused() ScheduleConfig { return fromInternalSchedule(memory.RelevanceFocused()) }

// ImportanceFocused favors stored importance.
func ImportanceFocused() ScheduleConfig { return fromInternalSchedule(memory.ImportanceFocused()) }

// RecencyFocused favors fresh memories.
func RecencyFocused() ScheduleConfig { return fromInternalSchedule(memory.RecencyFocused()) }

// BalancedSchedule weighs all three signals equally.
func BalancedSchedule() ScheduleConfig { return fromInternalSchedule(memory.Balanced()) }

// SchedulePreset returns a preset by name: relevance, importance, recency or balanced.
func SchedulePreset(name string) (ScheduleConfig, bool) {
	cfg, ok := memory.Preset(name)
	return fromInternalSchedule(cfg), ok
}
