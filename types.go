package recollect

import "time"

// Seeded router profile IDs.
const (
	ProfileBalanced      = "balanced"
	ProfileVectorHeavy   = "vector-heavy"
	ProfileFullTextHeavy = "fulltext-heavy"
)

// Strategy names used as keys of SearchResult.Signals and StrategyStats.
const (
	StrategyVector   = "vector"
	StrategyFullText = "fulltext"
	StrategyFuzzy    = "fuzzy"
)

// Filters restrict the candidate set. Owner IDs and tags match if any value
// matches. A zero time bound is open.
type Filters struct {
	OwnerIDs      []string
	Tags          []string
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

// SearchOptions configures a search query. The zero value is a valid default.
type SearchOptions struct {
	// Limit caps the number of results (default 10, max 200).
	Limit int
	// Threshold drops results whose fused score is below it. Nil disables it.
	Threshold *float64
	// Vector is a precomputed query embedding. It skips the embedding provider.
	Vector  []float32
	Filters Filters
}

// SearchResult is one fused search result.
type SearchResult struct {
	ID         string             `json:"id"`
	Content    string             `json:"content"`
	Score      float64            `json:"score"`
	Signals    map[string]float64 `json:"signals,omitempty"`
	CreatedAt  time.Time          `json:"created_at,omitzero"`
	Importance float64            `json:"importance"`
}

// Hit is one entry of a backend's ranked list. Score is only used for ordering.
type Hit struct {
	ID          string
	Content     string
	Score       float64
	FieldScores map[string]float64
	CreatedAt   time.Time
	Importance  float64
}

// Weights are per-signal fusion weights. They must sum to 1.0 (±0.01).
type Weights struct {
	Vector   float64 `json:"vector"`
	FullText float64 `json:"fulltext"`
	Fuzzy    float64 `json:"fuzzy"`
}

// Profile is a named weight vector the router can choose.
type Profile struct {
	ID      string
	Weights Weights
}

// Features describe the shape of a query. See ExtractFeatures.
type Features struct {
	HasExactTerms bool    `json:"has_exact_terms"`
	Complexity    float64 `json:"complexity"`
	HasTemporal   bool    `json:"has_temporal"`
	EntityCount   int     `json:"entity_count"`
	Length        int     `json:"length"`
	IsQuestion    bool    `json:"is_question"`
}

// MemoryCandidate is scheduler input.
type MemoryCandidate struct {
	ID         string    `json:"id"`
	Content    string    `json:"content"`
	Importance float64   `json:"importance"`
	Relevance  float64   `json:"relevance"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScheduleConfig weighs relevance, importance and recency. Weights must be non-negative.
type ScheduleConfig struct {
	Relevance  float64 `json:"relevance"`
	Importance float64 `json:"importance"`
	Recency    float64 `json:"recency"`
}

// ProfileStats is a snapshot of one router profile.
type ProfileStats struct {
	ID           string  `json:"id"`
	Weights      Weights `json:"weights"`
	Alpha        float64 `json:"alpha"`
	Beta         float64 `json:"beta"`
	ExpectedRate float64 `json:"expected_rate"`
	TotalTries   uint64  `json:"total_tries"`
	Successes    float64 `json:"successes"`
}

// StrategyStats counts outcomes of one strategy.
type StrategyStats struct {
	Requests    uint64        `json:"requests"`
	Successes   uint64        `json:"successes"`
	Failures    uint64        `json:"failures"`
	Timeouts    uint64        `json:"timeouts"`
	MeanLatency time.Duration `json:"mean_latency"`
}

// ProfileUsage summarizes feedback for one profile.
type ProfileUsage struct {
	Count             int     `json:"count"`
	MeanEffectiveness float64 `json:"mean_effectiveness"`
}

// LearningReport summarizes the retained feedback.
type LearningReport struct {
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

// ResultCacheStats counts result cache lookups per level.
type ResultCacheStats struct {
	L1Hits   uint64   `json:"l1_hits"`
	L1Misses uint64   `json:"l1_misses"`
	L2Hits   uint64   `json:"l2_hits"`
	L2Misses uint64   `json:"l2_misses"`
	Misses   uint64   `json:"misses"`
	Sets     uint64   `json:"sets"`
	Errors   uint64   `json:"errors"`
	L1Size   int      `json:"l1_size"`
	Levels   []string `json:"levels"`
}

// WarmStats counts learned warming activity.
type WarmStats struct {
	Runs     uint64 `json:"runs"`
	Items    uint64 `json:"items"`
	Skipped  uint64 `json:"skipped"`
	Failures uint64 `json:"failures"`
}

// EmbeddingCacheStats counts query embedding cache lookups.
type EmbeddingCacheStats struct {
	LocalHits  uint64 `json:"local_hits"`
	RemoteHits uint64 `json:"remote_hits"`
	Misses     uint64 `json:"misses"`
	Errors     uint64 `json:"errors"`
}

// CacheStats combines result cache, warming and embedding cache counters.
type CacheStats struct {
	Results   ResultCacheStats     `json:"results"`
	Warming   WarmStats            `json:"warming"`
	Embedding *EmbeddingCacheStats `json:"embedding,omitempty"`
}

// LearningConfig tunes the learning engine and its feedback queue. Zero values
// take the defaults.
type LearningConfig struct {
	Capacity           int
	MinSamples         int
	SatisfactionWeight float64
	RefreshInterval    time.Duration
	TrendWindow        int
	QueueBuffer        int
}

// WarmConfig tunes learned cache warming. Zero values take the defaults.
type WarmConfig struct {
	Interval    time.Duration
	TopN        int
	Concurrency int
	LedgerTTL   time.Duration
}

// EmbeddingCacheConfig tunes the query embedding cache.
type EmbeddingCacheConfig struct {
	// KeyPrefix namespaces remote keys, typically per model.
	KeyPrefix string
	// MaxCost bounds the in-process tier in bytes.
	MaxCost int64
	TTL     time.Duration
}
