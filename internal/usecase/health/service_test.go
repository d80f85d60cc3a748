package health

import (
	"context"
	"errors"
	"testing"
	"time"
)

// --- Mocks ---

type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(_ context.Context) error { return m.err }

type mockEmbeddingChecker struct {
	err error
}

func (m *mockEmbeddingChecker) HealthCheck(_ context.Context) error { return m.err }

// --- Tests ---

func TestCheck(t *testing.T) {
	down := errors.New("down")

	tests := []struct {
		name       string
		backendErr error
		cacheErr   error
		embedErr   error
		want       Status
	}{
		{"all healthy", nil, nil, nil, Healthy},
		{"cache down", nil, down, nil, Degraded},
		{"embedding down", nil, nil, down, Degraded},
		{"backend down", down, nil, nil, Unhealthy},
		{"everything down", down, down, down, Unhealthy},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(time.Second, nil,
				PingComponent("backend", &mockPinger{err: tc.backendErr}, true),
				PingComponent("cache", &mockPinger{err: tc.cacheErr}, false),
				EmbeddingComponent(&mockEmbeddingChecker{err: tc.embedErr}),
			)
			r := svc.Check(context.Background())

			if r.Status != tc.want {
				t.Errorf("status = %q, want %q", r.Status, tc.want)
			}
			if len(r.Checks) != 3 {
				t.Fatalf("expected 3 checks, got %v", r.Checks)
			}
			if (tc.cacheErr != nil) != (r.Checks["cache"] == CheckError) {
				t.Errorf("cache check = %q", r.Checks["cache"])
			}
			if (tc.embedErr != nil) != (r.Checks["embedding"] == CheckError) {
				t.Errorf("embedding check = %q", r.Checks["embedding"])
			}
		})
	}
}

func TestCheck_NoComponents(t *testing.T) {
	r := New(0, nil).Check(context.Background())
	if r.Status != Healthy || len(r.Checks) != 0 {
		t.Errorf("unexpected report: %+v", r)
	}
}

func TestCheck_Timeout(t *testing.T) {
	slow := Component{Name: "slow", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}}
	r := New(10*time.Millisecond, nil, slow).Check(context.Background())
	if r.Status != Degraded || r.Checks["slow"] != CheckError {
		t.Errorf("slow component must fail by timeout: %+v", r)
	}
}
