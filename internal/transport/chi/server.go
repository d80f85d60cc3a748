package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/domain"
	"github.com/kailas-cloud/recollect/internal/domain/candidate"
	"github.com/kailas-cloud/recollect/internal/domain/memory"
	"github.com/kailas-cloud/recollect/internal/domain/query"
	"github.com/kailas-cloud/recollect/internal/domain/strategy"
	"github.com/kailas-cloud/recollect/internal/engine"
	logpkg "github.com/kailas-cloud/recollect/internal/logger"
	healthuc "github.com/kailas-cloud/recollect/internal/usecase/health"
	"github.com/kailas-cloud/recollect/internal/usecase/learning"
	"github.com/kailas-cloud/recollect/internal/usecase/router"
	strategyuc "github.com/kailas-cloud/recollect/internal/usecase/strategy"
)

const (
	maxBodyBytes    = 1 << 20
	defaultSchedule = 10
)

// Engine is the retrieval engine consumed by the HTTP layer.
type Engine interface {
	Search(ctx context.Context, q query.Query) ([]candidate.Scored, error)
	Schedule(cands []memory.Candidate, queryText string, k int, cfg memory.ScheduleConfig) ([]memory.Candidate, error)
	DefaultSchedule() memory.ScheduleConfig
	RecordFeedback(
		features query.Features, profileID string, effectiveness float64, latency time.Duration, satisfaction *float64,
	)
	HasProfile(profileID string) bool
	RouterStats() []router.ProfileStats
	CacheStats() engine.CacheStats
	LearningReport() learning.Report
	StrategyStats() map[strategy.Kind]strategyuc.Stats
	Warm(ctx context.Context) (int, error)
	ClearCache(ctx context.Context) error
	ResetRouter()
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the operational HTTP API.
type Server struct {
	engine        Engine
	health        *healthuc.Service
	defaultK      int
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. defaultK applies to schedule requests without k.
// Handlers log through the request-scoped logger installed by NewRouter.
func NewServer(eng Engine, health *healthuc.Service, defaultK int) *Server {
	if defaultK <= 0 {
		defaultK = defaultSchedule
	}
	s := &Server{
		engine:   eng,
		health:   health,
		defaultK: defaultK,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrConfig, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrUnknownProfile, http.StatusNotFound, CodeUnknownProfile),
		sentinelHandler(domain.ErrTimeout, http.StatusGatewayTimeout, CodeTimeout),
		sentinelHandler(domain.ErrEmbedding, http.StatusBadGateway, CodeEmbeddingError),
		sentinelHandler(domain.ErrAllStrategiesFailed, http.StatusServiceUnavailable, CodeAllStrategiesFailed),
		sentinelHandler(domain.ErrBackendUnavailable, http.StatusServiceUnavailable, CodeBackendUnavailable),
	}
	return s
}

// Search handles POST /v1/search.
func (s *Server) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if !decode(w, r, &req) {
		return
	}
	q, err := req.toQuery()
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	results, err := s.engine.Search(r.Context(), q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if results == nil {
		results = []candidate.Scored{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results, Count: len(results)})
}

// Schedule handles POST /v1/schedule.
func (s *Server) Schedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if !decode(w, r, &req) {
		return
	}
	cfg, err := req.scheduleConfig(s.engine.DefaultSchedule())
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	k := req.K
	if k <= 0 {
		k = s.defaultK
	}

	out, err := s.engine.Schedule(req.Candidates, req.Query, k, cfg)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if out == nil {
		out = []memory.Candidate{}
	}
	writeJSON(w, http.StatusOK, ScheduleResponse{Results: out, Count: len(out)})
}

// Feedback handles POST /v1/feedback.
func (s *Server) Feedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if !decode(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}
	if !s.engine.HasProfile(req.ProfileID) {
		writeError(w, http.StatusNotFound, CodeUnknownProfile, "unknown profile "+req.ProfileID)
		return
	}

	s.engine.RecordFeedback(
		req.features(), req.ProfileID, req.Effectiveness,
		time.Duration(req.LatencyMs)*time.Millisecond, req.Satisfaction,
	)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// RouterStats handles GET /v1/stats/router.
func (s *Server) RouterStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, RouterStatsResponse{Profiles: s.engine.RouterStats()})
}

// CacheStats handles GET /v1/stats/cache.
func (s *Server) CacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.CacheStats())
}

// LearningReport handles GET /v1/stats/learning.
func (s *Server) LearningReport(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.LearningReport())
}

// StrategyStats handles GET /v1/stats/strategies.
func (s *Server) StrategyStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.StrategyStats())
}

// Warm handles POST /v1/admin/warm.
func (s *Server) Warm(w http.ResponseWriter, r *http.Request) {
	n, err := s.engine.Warm(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, WarmResponse{Warmed: n})
}

// ClearCache handles POST /v1/admin/cache/clear.
func (s *Server) ClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ClearCache(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetRouter handles POST /v1/admin/router/reset.
func (s *Server) ResetRouter(w http.ResponseWriter, _ *http.Request) {
	s.engine.ResetRouter()
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{}})
		return
	}
	report := s.health.Check(r.Context())

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrConfig,
		domain.ErrUnknownProfile,
		domain.ErrTimeout,
		domain.ErrEmbedding,
		domain.ErrAllStrategiesFailed,
		domain.ErrBackendUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContext(r.Context())
	logger.Warn("Domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("Internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
