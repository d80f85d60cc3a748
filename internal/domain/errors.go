package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrConfig signals an invalid construction-time configuration (weights, decay rate).
	ErrConfig = errors.New("invalid configuration")
	// ErrBackendUnavailable signals that a strategy backend cannot be reached.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrTimeout signals that an adapter or the pipeline exceeded its deadline.
	ErrTimeout = errors.New("timeout")
	// ErrAllStrategiesFailed signals that no strategy produced a usable result.
	ErrAllStrategiesFailed = errors.New("all strategies failed")
	// ErrEmbedding signals an embedding provider failure or a missing provider.
	ErrEmbedding = errors.New("embedding error")
	// ErrCache signals a cache-layer failure. Never surfaced to callers of Search.
	ErrCache = errors.New("cache error")
	// ErrUnknownProfile signals a feedback record for a profile the router does not know.
	ErrUnknownProfile = errors.New("unknown strategy profile")
)

// AllStrategiesFailedError wraps ErrAllStrategiesFailed with the cause reported by each strategy.
type AllStrategiesFailedError struct {
	Causes map[string]error
}

func (e *AllStrategiesFailedError) Error() string {
	names := make([]string, 0, len(e.Causes))
	for name := range e.Causes {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %v", name, e.Causes[name]))
	}
	return ErrAllStrategiesFailed.Error() + " (" + strings.Join(parts, "; ") + ")"
}

func (e *AllStrategiesFailedError) Unwrap() error { return ErrAllStrategiesFailed }

// NewAllStrategiesFailed creates an AllStrategiesFailedError.
func NewAllStrategiesFailed(causes map[string]error) error {
	return &AllStrategiesFailedError{Causes: causes}
}

// ConfigErrorf formats a configuration error wrapping ErrConfig.
func ConfigErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
