package chi

import (
	"fmt"
	"time"

	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/memory"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/usecase/router"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest          ErrorCode = "bad_request"
	CodeUnauthorized        ErrorCode = "unauthorized"
	CodeNotFound            ErrorCode = "not_found"
	CodeMethodNotAllowed    ErrorCode = "method_not_allowed"
	CodeValidationFailed    ErrorCode = "validation_failed"
	CodeUnknownProfile      ErrorCode = "unknown_profile"
	CodeTimeout             ErrorCode = "timeout"
	CodeEmbeddingError      ErrorCode = "embedding_provider_error"
	CodeAllStrategiesFailed ErrorCode = "all_strategies_failed"
	CodeBackendUnavailable  ErrorCode = "backend_unavailable"
	CodeInternalError       ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// FiltersDTO restricts a search.
type FiltersDTO struct {
	OwnerIDs     []string   `json:"owner_ids,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	CreatedAfter *time.Time `json:"created_after,omitempty"`
	CreatedUntil *time.Time `json:"created_until,omitempty"`
}

// SearchRequest is the body of POST /v1/search.
type SearchRequest struct {
	Query     string      `json:"query"`
	Limit     int         `json:"limit,omitempty"`
	Threshold *float64    `json:"threshold,omitempty"`
	Vector    []float32   `json:"vector,omitempty"`
	Filters   *FiltersDTO `json:"filters,omitempty"`
}

// SearchResponse is the body of a successful search.
type SearchResponse struct {
	Results []candidate.Scored `json:"results"`
	Count   int                `json:"count"`
}

// ScheduleRequest is the body of POST /v1/schedule. Weights win over Preset;
// with neither the engine default applies.
type ScheduleRequest struct {
	Query      string                 `json:"query"`
	K          int                    `json:"k,omitempty"`
	Preset     string                 `json:"preset,omitempty"`
	Weights    *memory.ScheduleConfig `json:"weights,omitempty"`
	Candidates []memory.Candidate     `json:"candidates"`
}

// ScheduleResponse lists the selected memories in scheduled order.
type ScheduleResponse struct {
	Results []memory.Candidate `json:"results"`
	Count   int                `json:"count"`
}

// FeedbackRequest is the body of POST /v1/feedback. Features are derived from
// Query when not given explicitly.
type FeedbackRequest struct {
	Query         string          `json:"query,omitempty"`
	Features      *query.Features `json:"features,omitempty"`
	ProfileID     string          `json:"profile_id"`
	Effectiveness float64         `json:"effectiveness"`
	LatencyMs     int64           `json:"latency_ms,omitempty"`
	Satisfaction  *float64        `json:"satisfaction,omitempty"`
}

// RouterStatsResponse is the body of GET /v1/stats/router.
type RouterStatsResponse struct {
	Profiles []router.ProfileStats `json:"profiles"`
}

// WarmResponse is the body of POST /v1/admin/warm.
type WarmResponse struct {
	Warmed int `json:"warmed"`
}

func (r SearchRequest) toQuery() (query.Query, error) {
	var opts []query.Option
	if r.Threshold != nil {
		opts = append(opts, query.WithThreshold(*r.Threshold))
	}
	if len(r.Vector) > 0 {
		opts = append(opts, query.WithVector(r.Vector))
	}
	if r.Filters != nil {
		opts = append(opts, query.WithFilters(r.Filters.toDomain()))
	}
	if r.Limit < 0 {
		return query.Query{}, fmt.Errorf("limit must not be negative")
	}

	q, err := query.New(r.Query, r.Limit, opts...)
	if err != nil {
		return query.Query{}, fmt.Errorf("build query: %w", err)
	}
	return q, nil
}

func (f FiltersDTO) toDomain() query.Filters {
	out := query.Filters{OwnerIDs: f.OwnerIDs, Tags: f.Tags}
	if f.CreatedAfter != nil {
		out.Created.From = *f.CreatedAfter
	}
	if f.CreatedUntil != nil {
		out.Created.To = *f.CreatedUntil
	}
	return out
}

// scheduleConfig resolves the weights of a schedule request.
func (r ScheduleRequest) scheduleConfig(def memory.ScheduleConfig) (memory.ScheduleConfig, error) {
	switch {
	case r.Weights != nil:
		return *r.Weights, nil
	case r.Preset != "":
		cfg, ok := memory.Preset(r.Preset)
		if !ok {
			return memory.ScheduleConfig{}, fmt.Errorf("unknown preset %q", r.Preset)
		}
		return cfg, nil
	default:
		return def, nil
	}
}

func (r FeedbackRequest) validate() error {
	if r.ProfileID == "" {
		return fmt.Errorf("profile_id is required")
	}
	if r.Effectiveness < 0 || r.Effectiveness > 1 {
		return fmt.Errorf("effectiveness must be between 0 and 1")
	}
	if r.Satisfaction != nil && (*r.Satisfaction < 0 || *r.Satisfaction > 1) {
		return fmt.Errorf("satisfaction must be between 0 and 1")
	}
	if r.LatencyMs < 0 {
		return fmt.Errorf("latency_ms must not be negative")
	}
	return nil
}

func (r FeedbackRequest) features() query.Features {
	if r.Features != nil {
		return *r.Features
	}
	return query.ExtractFeatures(r.Query)
}
