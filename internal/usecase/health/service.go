package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates an optional component is failing. Search still works.
	Degraded Status = "degraded"
	// Unhealthy indicates a critical component is failing.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultCheckTimeout bounds each component check.
const DefaultCheckTimeout = 2 * time.Second

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Component is one named health probe.
type Component struct {
	Name     string
	Check    func(ctx context.Context) error
	Critical bool
}

// PingComponent adapts a Pinger.
func PingComponent(name string, p Pinger, critical bool) Component {
	return Component{Name: name, Check: p.Ping, Critical: critical}
}

// EmbeddingComponent adapts an EmbeddingChecker. Embedding is never critical:
// full-text strategies keep serving without it.
func EmbeddingComponent(e EmbeddingChecker) Component {
	return Component{Name: "embedding", Check: e.HealthCheck}
}

// Service coordinates health checks.
type Service struct {
	components []Component
	timeout    time.Duration
	logger     *zap.Logger
}

// New creates a Service.
func New(timeout time.Duration, logger *zap.Logger, components ...Component) *Service {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{components: components, timeout: timeout, logger: logger}
}

// Check runs all component checks concurrently.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu       sync.Mutex
		checks   = make(map[string]CheckResult, len(s.components))
		critical bool
		optional bool
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range s.components {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, s.timeout)
			defer cancel()

			err := c.Check(cctx)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				checks[c.Name] = CheckOK
				return nil
			}
			s.logger.Warn("Health check failed", zap.String("component", c.Name), zap.Error(err))
			checks[c.Name] = CheckError
			if c.Critical {
				critical = true
			} else {
				optional = true
			}
			return nil
		})
	}
	_ = g.Wait()

	status := Healthy
	switch {
	case critical:
		status = Unhealthy
	case optional:
		status = Degraded
	}
	return Report{Status: status, Checks: checks}
}
