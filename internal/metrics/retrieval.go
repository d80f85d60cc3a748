package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval pipeline Prometheus metrics.
var (
	StrategyRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_requests_total",
			Help:      "Strategy adapter calls by outcome",
		},
		[]string{"strategy", "status"}, // "ok" / "error" / "timeout"
	)

	StrategyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "strategy_duration_seconds",
			Help:      "Strategy adapter latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"strategy"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "End-to-end search latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"status"}, // "ok" / "cached" / "error"
	)

	CacheLookupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Result cache lookups by level and outcome",
		},
		[]string{"level", "result"}, // "l1"/"l2", "hit"/"miss"
	)

	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Result cache failures treated as misses",
		},
		[]string{"level", "op"},
	)

	RouterSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "router_selections_total",
			Help:      "Weight profile selections by the router",
		},
		[]string{"profile"},
	)

	FeedbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_total",
			Help:      "Feedback records by outcome",
		},
		[]string{"status"}, // "ingested" / "dropped"
	)

	WarmRunsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_warm_runs_total",
			Help:      "Completed cache warming runs",
		},
	)

	WarmItemsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_warm_items_total",
			Help:      "Queries computed and cached by warming",
		},
	)

	ScheduledCandidates = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_candidates",
			Help:      "Number of candidates passed to the scheduler",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)

var retrievalMetricsRegistered bool

// RegisterRetrievalMetrics registers the pipeline metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		StrategyRequestsTotal,
		StrategyDuration,
		SearchDuration,
		CacheLookupsTotal,
		CacheErrorsTotal,
		RouterSelectionsTotal,
		FeedbackTotal,
		WarmRunsTotal,
		WarmItemsTotal,
		ScheduledCandidates,
	)
	retrievalMetricsRegistered = true
}
