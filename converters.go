package recollect

import (
	"fmt"
	"maps"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/memory"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/domain/strategy"
	"github.com/kailas-cloud/recollect/internal/engine"
	"github.com/kailas-cloud/recollect/internal/usecase/learning"
	"github.com/kailas-cloud/recollect/internal/usecase/router"
	strategyuc "github.com/kailas-cloud/recollect/internal/usecase/strategy"
)

func toInternalQuery(text string, opts *SearchOptions) (query.Query, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	if opts.Limit < 0 {
		return query.Query{}, fmt.Errorf("%w: limit must not be negative", domain.ErrConfig)
	}
	qopts := []query.Option{query.WithFilters(toInternalFilters(opts.Filters))}
	if opts.Threshold != nil {
		qopts = append(qopts, query.WithThreshold(*opts.Threshold))
	}
	if len(opts.Vector) > 0 {
		qopts = append(qopts, query.WithVector(opts.Vector))
	}
	q, err := query.New(text, opts.Limit, qopts...)
	if err != nil {
		return query.Query{}, fmt.Errorf("%w: %w", domain.ErrConfig, err)
	}
	return q, nil
}

func toInternalFilters(f Filters) query.Filters {
	return query.Filters{
		OwnerIDs: f.OwnerIDs,
		Tags:     f.Tags,
		Created:  query.TimeRange{From: f.CreatedAfter, To: f.CreatedBefore},
	}
}

func fromInternalFilters(f query.Filters) Filters {
	return Filters{
		OwnerIDs:      f.OwnerIDs,
		Tags:          f.Tags,
		CreatedAfter:  f.Created.From,
		CreatedBefore: f.Created.To,
	}
}

func fromScored(cands []candidate.Scored) []SearchResult {
	out := make([]SearchResult, len(cands))
	for i := range cands {
		c := &cands[i]
		var signals map[string]float64
		if raw := c.Signals(); len(raw) > 0 {
			signals = make(map[string]float64, len(raw))
			for k, v := range raw {
				signals[string(k)] = v
			}
		}
		out[i] = SearchResult{
			ID:         c.ID(),
			Content:    c.Content(),
			Score:      c.Score(),
			Signals:    signals,
			CreatedAt:  c.CreatedAt(),
			Importance: c.Importance(),
		}
	}
	return out
}

func toInternalHits(hits []Hit) []candidate.Hit {
	if hits == nil {
		return nil
	}
	out := make([]candidate.Hit, len(hits))
	for i, h := range hits {
		out[i] = candidate.Hit{
			ID:          h.ID,
			Content:     h.Content,
			Score:       h.Score,
			FieldScores: maps.Clone(h.FieldScores),
			CreatedAt:   h.CreatedAt,
			Importance:  h.Importance,
		}
	}
	return out
}

func toInternalWeights(w Weights) query.Weights {
	return query.Weights{Vector: w.Vector, FullText: w.FullText, Fuzzy: w.Fuzzy}
}

func fromInternalWeights(w query.Weights) Weights {
	return Weights{Vector: w.Vector, FullText: w.FullText, Fuzzy: w.Fuzzy}
}

func toInternalProfiles(ps []Profile) []router.Profile {
	out := make([]router.Profile, len(ps))
	for i, p := range ps {
		out[i] = router.Profile{ID: p.ID, Weights: toInternalWeights(p.Weights)}
	}
	return out
}

func toInternalFeatures(f Features) query.Features {
	return query.Features{
		HasExactTerms: f.HasExactTerms,
		Complexity:    f.Complexity,
		HasTemporal:   f.HasTemporal,
		EntityCount:   f.EntityCount,
		Length:        f.Length,
		IsQuestion:    f.IsQuestion,
	}
}

func fromInternalFeatures(f query.Features) Features {
	return Features{
		HasExactTerms: f.HasExactTerms,
		Complexity:    f.Complexity,
		HasTemporal:   f.HasTemporal,
		EntityCount:   f.EntityCount,
		Length:        f.Length,
		IsQuestion:    f.IsQuestion,
	}
}

func toInternalSchedule(c ScheduleConfig) memory.ScheduleConfig {
	return memory.ScheduleConfig{Relevance: c.Relevance, Importance: c.Importance, Recency: c.Recency}
}

func fromInternalSchedule(c memory.ScheduleConfig) ScheduleConfig {
	return ScheduleConfig{Relevance: c.Relevance, Importance: c.Importance, Recency: c.Recency}
}

func toInternalCandidates(cands []MemoryCandidate) []memory.Candidate {
	out := make([]memory.Candidate, len(cands))
	for i, c := range cands {
		out[i] = memory.Candidate(c)
	}
	return out
}

func fromInternalCandidates(cands []memory.Candidate) []MemoryCandidate {
	out := make([]MemoryCandidate, len(cands))
	for i, c := range cands {
		out[i] = MemoryCandidate(c)
	}
	return out
}

func fromProfileStats(stats []router.ProfileStats) []ProfileStats {
	out := make([]ProfileStats, len(stats))
	for i, s := range stats {
		out[i] = ProfileStats{
			ID:           s.ID,
			Weights:      fromInternalWeights(s.Weights),
			Alpha:        s.Alpha,
			Beta:         s.Beta,
			ExpectedRate: s.ExpectedRate,
			TotalTries:   s.TotalTries,
			Successes:    s.Successes,
		}
	}
	return out
}

func fromStrategyStats(stats map[strategy.Kind]strategyuc.Stats) map[string]StrategyStats {
	out := make(map[string]StrategyStats, len(stats))
	for k, s := range stats {
		out[string(k)] = StrategyStats(s)
	}
	return out
}

func fromReport(r learning.Report) LearningReport {
	profiles := make(map[string]ProfileUsage, len(r.Profiles))
	for id, u := range r.Profiles {
		profiles[id] = ProfileUsage(u)
	}
	return LearningReport{
		TotalRecords:      r.TotalRecords,
		TotalIngested:     r.TotalIngested,
		Capacity:          r.Capacity,
		MeanEffectiveness: r.MeanEffectiveness,
		MeanLatency:       r.MeanLatency,
		RecentMean:        r.RecentMean,
		PreviousMean:      r.PreviousMean,
		Trend:             r.Trend,
		Profiles:          profiles,
		PatternCount:      r.PatternCount,
		GeneratedAt:       r.GeneratedAt,
	}
}

func fromCacheStats(s engine.CacheStats) CacheStats {
	out := CacheStats{
		Results: ResultCacheStats{
			L1Hits:   s.Results.L1Hits,
			L1Misses: s.Results.L1Misses,
			L2Hits:   s.Results.L2Hits,
			L2Misses: s.Results.L2Misses,
			Misses:   s.Results.Misses,
			Sets:     s.Results.Sets,
			Errors:   s.Results.Errors,
			L1Size:   s.Results.L1Size,
			Levels:   s.Results.Enabled,
		},
		Warming: WarmStats(s.Warming),
	}
	if s.Embedding != nil {
		es := EmbeddingCacheStats(*s.Embedding)
		out.Embedding = &es
	}
	return out
}
