package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recollect/internal/metrics"
)

// NewRouter mounts s behind the recovery, request ID, logging, auth and metrics middleware.
func NewRouter(s *Server, apiKeys []string, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/search", s.Search)
		r.Post("/schedule", s.Schedule)
		r.Post("/feedback", s.Feedback)

		r.Route("/stats", func(r chi.Router) {
			r.Get("/router", s.RouterStats)
			r.Get("/cache", s.CacheStats)
			r.Get("/learning", s.LearningReport)
			r.Get("/strategies", s.StrategyStats)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/warm", s.Warm)
			r.Post("/cache/clear", s.ClearCache)
			r.Post("/router/reset", s.ResetRouter)
		})
	})
	return r
}
