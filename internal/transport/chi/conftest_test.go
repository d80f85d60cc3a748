package chi

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/memory"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/domain/strategy"
	"github.com/kailas-cloud/recollect/internal/engine"
	"github.com/kailas-cloud/recollect/internal/usecase/learning"
	"github.com/kailas-cloud/recollect/internal/usecase/router"
	strategyuc "github.com/kailas-cloud/recollect/internal/usecase/strategy"
)

type feedbackCall struct {
	features      query.Features
	profileID     string
	effectiveness float64
	latency       time.Duration
	satisfaction  *float64
}

type scheduleCall struct {
	queryText string
	k         int
	cfg       memory.ScheduleConfig
	n         int
}

// mockEngine records calls and returns canned results.
type mockEngine struct {
	mu sync.Mutex

	results   []candidate.Scored
	searchErr error
	lastQuery query.Query

	scheduleErr error
	schedules   []scheduleCall

	profiles  map[string]bool
	feedbacks []feedbackCall

	warmed   int
	warmErr  error
	clearErr error
	cleared  int
	resets   int
}

func (m *mockEngine) Search(_ context.Context, q query.Query) ([]candidate.Scored, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = q
	return m.results, m.searchErr
}

func (m *mockEngine) Schedule(
	cands []memory.Candidate, queryText string, k int, cfg memory.ScheduleConfig,
) ([]memory.Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schedules = append(m.schedules, scheduleCall{queryText: queryText, k: k, cfg: cfg, n: len(cands)})
	if m.scheduleErr != nil {
		return nil, m.scheduleErr
	}
	return cands[:min(k, len(cands))], nil
}

func (m *mockEngine) DefaultSchedule() memory.ScheduleConfig { return memory.Balanced() }

func (m *mockEngine) RecordFeedback(
	features query.Features, profileID string, effectiveness float64, latency time.Duration, satisfaction *float64,
) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedbacks = append(m.feedbacks, feedbackCall{features, profileID, effectiveness, latency, satisfaction})
}

func (m *mockEngine) HasProfile(id string) bool { return m.profiles[id] }

func (m *mockEngine) RouterStats() []router.ProfileStats {
	return []router.ProfileStats{{ID: router.ProfileBalanced, Alpha: 1, Beta: 1, ExpectedRate: 0.5}}
}

func (m *mockEngine) CacheStats() engine.CacheStats { return engine.CacheStats{} }

func (m *mockEngine) LearningReport() learning.Report {
	return learning.Report{TotalRecords: 3, Trend: learning.TrendStable}
}

func (m *mockEngine) StrategyStats() map[strategy.Kind]strategyuc.Stats {
	return map[strategy.Kind]strategyuc.Stats{strategy.FullText: {Requests: 2, Successes: 2}}
}

func (m *mockEngine) Warm(context.Context) (int, error) { return m.warmed, m.warmErr }

func (m *mockEngine) ClearCache(context.Context) error {
	m.cleared++
	return m.clearErr
}

func (m *mockEngine) ResetRouter() { m.resets++ }

func newMockEngine() *mockEngine {
	return &mockEngine{
		profiles: map[string]bool{router.ProfileBalanced: true},
		results: []candidate.Scored{
			candidate.New("m1", "I drink coffee", map[strategy.Kind]float64{strategy.FullText: 1}, 0.9, time.Time{}, 0.4),
			candidate.New("m3", "coffee grinder", map[strategy.Kind]float64{strategy.FullText: 0.5}, 0.4, time.Time{}, 0.2),
		},
	}
}
