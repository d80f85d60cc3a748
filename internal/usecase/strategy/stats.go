package strategy

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/strategy"
)

// Stats summarizes the outcomes of one strategy.
type Stats struct {
	Requests    uint64        `json:"requests"`
	Successes   uint64        `json:"successes"`
	Failures    uint64        `json:"failures"`
	Timeouts    uint64        `json:"timeouts"`
	MeanLatency time.Duration `json:"mean_latency"`
}

type counters struct {
	requests, successes, failures, timeouts uint64
	latency                                 time.Duration
}

// Tracker records per-strategy outcomes. Safe for concurrent use.
// requests and duration may be nil.
type Tracker struct {
	mu       sync.Mutex
	byKind   map[strategy.Kind]*counters
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewTracker creates a tracker. requests is labeled (strategy, status) and
// duration is labeled (strategy).
func NewTracker(requests *prometheus.CounterVec, duration *prometheus.HistogramVec) *Tracker {
	return &Tracker{
		byKind:   make(map[strategy.Kind]*counters),
		requests: requests,
		duration: duration,
	}
}

// Observe records one adapter call.
func (t *Tracker) Observe(kind strategy.Kind, elapsed time.Duration, err error) {
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrTimeout):
		status = "timeout"
	default:
		status = "error"
	}

	t.mu.Lock()
	c, ok := t.byKind[kind]
	if !ok {
		c = &counters{}
		t.byKind[kind] = c
	}
	c.requests++
	c.latency += elapsed
	switch status {
	case "ok":
		c.successes++
	case "timeout":
		c.failures++
		c.timeouts++
	default:
		c.failures++
	}
	t.mu.Unlock()

	if t.requests != nil {
		t.requests.WithLabelValues(kind.String(), status).Inc()
	}
	if t.duration != nil {
		t.duration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
	}
}

// Snapshot returns a copy of the per-strategy stats.
func (t *Tracker) Snapshot() map[strategy.Kind]Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[strategy.Kind]Stats, len(t.byKind))
	for kind, c := range t.byKind {
		s := Stats{
			Requests:  c.requests,
			Successes: c.successes,
			Failures:  c.failures,
			Timeouts:  c.timeouts,
		}
		if c.requests > 0 {
			s.MeanLatency = c.latency / time.Duration(c.requests)
		}
		out[kind] = s
	}
	return out
}
