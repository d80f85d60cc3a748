package learning

import (
	"sync"
	"testing"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/feedback"
	"github.com/kailas-cloud/recollect/internal/domain/query"
)

type banditCall struct {
	profile string
	reward  float64
}

// mockBandit records updates and rejects profiles outside known.
type mockBandit struct {
	mu    sync.Mutex
	known map[string]bool
	calls []banditCall
}

func newMockBandit(profiles ...string) *mockBandit {
	m := &mockBandit{known: make(map[string]bool)}
	for _, p := range profiles {
		m.known[p] = true
	}
	return m
}

func (m *mockBandit) Update(profileID string, e float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.known[profileID] {
		return domain.ErrUnknownProfile
	}
	m.calls = append(m.calls, banditCall{profile: profileID, reward: e})
	return nil
}

func (m *mockBandit) Calls() []banditCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]banditCall(nil), m.calls...)
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func record(text, profile string, eff float64) feedback.Record {
	return feedback.Record{
		Features:      query.ExtractFeatures(text),
		ProfileID:     profile,
		Effectiveness: eff,
		Latency:       10 * time.Millisecond,
		QueryText:     text,
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
