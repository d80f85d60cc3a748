package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
)

// level is one cache tier.
type level interface {
	name() string
	get(ctx context.Context, key string) ([]byte, bool, error)
	set(ctx context.Context, key string, payload []byte) error
	clear(ctx context.Context) error
}

// Metrics are the optional Prometheus vectors for the cache.
type Metrics struct {
	Lookups *prometheus.CounterVec // labels: level, result
	Errors  *prometheus.CounterVec // labels: level, op
}

// Stats is a snapshot of result cache counters.
type Stats struct {
	L1Hits   uint64   `json:"l1_hits"`
	L1Misses uint64   `json:"l1_misses"`
	L2Hits   uint64   `json:"l2_hits"`
	L2Misses uint64   `json:"l2_misses"`
	Misses   uint64   `json:"misses"`
	Sets     uint64   `json:"sets"`
	Errors   uint64   `json:"errors"`
	L1Size   int      `json:"l1_size"`
	Enabled  []string `json:"levels"`
}

// MultiLevel fans Get/Set/Clear out to the enabled levels, fastest first.
// Failures are logged, counted and treated as misses.
type MultiLevel struct {
	local   *Local
	levels  []level
	metrics Metrics
	logger  *zap.Logger

	l1Hits   atomic.Uint64
	l1Misses atomic.Uint64
	l2Hits   atomic.Uint64
	l2Misses atomic.Uint64
	misses   atomic.Uint64
	sets     atomic.Uint64
	errs     atomic.Uint64
}

// NewMultiLevel creates a cache over local and remote. Either may be nil.
func NewMultiLevel(local *Local, remote *Remote, metrics Metrics, logger *zap.Logger) *MultiLevel {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &MultiLevel{local: local, metrics: metrics, logger: logger}
	if local != nil {
		m.levels = append(m.levels, local)
	}
	if remote != nil {
		m.levels = append(m.levels, remote)
	}
	return m
}

// Get returns the cached candidates for key. A lower-level hit is written back
// to the levels above it.
func (m *MultiLevel) Get(ctx context.Context, key string) ([]candidate.Scored, bool) {
	for i, lv := range m.levels {
		payload, ok, err := lv.get(ctx, key)
		if err != nil {
			m.fail(lv.name(), "get", err)
			continue
		}
		if !ok {
			m.lookup(lv.name(), "miss")
			m.miss(lv)
			continue
		}

		var cands []candidate.Scored
		if err := json.Unmarshal(payload, &cands); err != nil {
			m.fail(lv.name(), "decode", err)
			continue
		}
		m.lookup(lv.name(), "hit")
		m.hit(lv)

		for _, upper := range m.levels[:i] {
			if err := upper.set(ctx, key, payload); err != nil {
				m.fail(upper.name(), "promote", err)
			}
		}
		return cands, true
	}

	m.misses.Add(1)
	return nil, false
}

// Set stores cands in every level.
func (m *MultiLevel) Set(ctx context.Context, key string, cands []candidate.Scored) {
	if len(m.levels) == 0 {
		return
	}
	payload, err := json.Marshal(cands)
	if err != nil {
		m.fail("all", "encode", err)
		return
	}
	for _, lv := range m.levels {
		if err := lv.set(ctx, key, payload); err != nil {
			m.fail(lv.name(), "set", err)
		}
	}
	m.sets.Add(1)
}

// Clear empties every level. Unlike Get and Set it reports failures to the caller.
func (m *MultiLevel) Clear(ctx context.Context) error {
	var errs []error
	for _, lv := range m.levels {
		if err := lv.clear(ctx); err != nil {
			m.fail(lv.name(), "clear", err)
			errs = append(errs, fmt.Errorf("%s: %w", lv.name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrCache, errors.Join(errs...))
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (m *MultiLevel) Stats() Stats {
	s := Stats{
		L1Hits:   m.l1Hits.Load(),
		L1Misses: m.l1Misses.Load(),
		L2Hits:   m.l2Hits.Load(),
		L2Misses: m.l2Misses.Load(),
		Misses:   m.misses.Load(),
		Sets:     m.sets.Load(),
		Errors:   m.errs.Load(),
		Enabled:  make([]string, 0, len(m.levels)),
	}
	if m.local != nil {
		s.L1Size = m.local.Len()
	}
	for _, lv := range m.levels {
		s.Enabled = append(s.Enabled, lv.name())
	}
	return s
}

func (m *MultiLevel) hit(lv level) {
	if lv == level(m.local) {
		m.l1Hits.Add(1)
		return
	}
	m.l2Hits.Add(1)
}

func (m *MultiLevel) miss(lv level) {
	if lv == level(m.local) {
		m.l1Misses.Add(1)
		return
	}
	m.l2Misses.Add(1)
}

func (m *MultiLevel) lookup(lvl, result string) {
	if m.metrics.Lookups != nil {
		m.metrics.Lookups.WithLabelValues(lvl, result).Inc()
	}
}

func (m *MultiLevel) fail(lvl, op string, err error) {
	m.errs.Add(1)
	if m.metrics.Errors != nil {
		m.metrics.Errors.WithLabelValues(lvl, op).Inc()
	}
	m.logger.Warn("Cache operation failed",
		zap.String("level", lvl), zap.String("op", op), zap.Error(fmt.Errorf("%w: %w", domain.ErrCache, err)))
}
