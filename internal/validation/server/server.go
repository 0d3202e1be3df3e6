// Package server exposes the validation service's operational surface:
// health, readiness, and metrics. The service has no domain endpoints; all
// domain traffic flows through the broker.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/httpx"
	"github.com/wardenhq/warden/internal/telemetry"
)

// ReadyCheck probes one dependency for the readiness endpoint.
type ReadyCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server holds the operational handlers.
type Server struct {
	log     *zap.Logger
	metrics *telemetry.Metrics
	checks  []ReadyCheck
}

// New builds the operational server. metrics may be nil in tests.
func New(log *zap.Logger, metrics *telemetry.Metrics, checks ...ReadyCheck) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log, metrics: metrics, checks: checks}
}

// Router assembles the chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", s.handleReady)

	return r
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, c := range s.checks {
		if err := c.Probe(ctx); err != nil {
			s.log.Warn("readiness probe failed",
				zap.String("dependency", c.Name),
				zap.Error(err))
			httpx.Error(w, http.StatusServiceUnavailable, c.Name+" unavailable")
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
