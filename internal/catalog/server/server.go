// Package server exposes the catalog HTTP API: public catalog reads and the
// admin write surface that maintains the conflict matrix.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/catalog/service"
	"github.com/wardenhq/warden/internal/httpx"
	"github.com/wardenhq/warden/internal/logging"
	"github.com/wardenhq/warden/internal/telemetry"
)

// ReadyCheck probes one dependency for the readiness endpoint.
type ReadyCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server holds the catalog handlers and their dependencies.
type Server struct {
	svc     *service.Service
	log     *zap.Logger
	metrics *telemetry.Metrics
	checks  []ReadyCheck
}

// New builds the catalog HTTP server. metrics may be nil in tests.
func New(svc *service.Service, log *zap.Logger, metrics *telemetry.Metrics, checks ...ReadyCheck) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{svc: svc, log: log, metrics: metrics, checks: checks}
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}
}

// Router assembles the chi router with shared middleware and all catalog
// routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(DefaultCORSOptions()))
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.handleHealth)
	r.Get("/health/ready", s.handleReady)

	r.Get("/resources", s.handleListResources)
	r.Get("/resources/{id}", s.handleGetResource)

	r.Get("/accesses", s.handleListAccesses)
	r.Get("/accesses/{id}", s.handleGetAccess)
	r.Get("/accesses/{id}/groups", s.handleAccessGroups)

	r.Get("/groups", s.handleListGroups)
	r.Get("/groups/{id}", s.handleGetGroup)
	r.Get("/groups/{id}/accesses", s.handleGroupAccesses)

	r.Get("/conflicts", s.handleConflictMatrix)
	r.Get("/conflicts/{group_id}", s.handleGroupConflicts)

	r.Route("/admin", func(r chi.Router) {
		r.Post("/resources", s.handleCreateResource)
		r.Delete("/resources/{id}", s.handleDeleteResource)

		r.Post("/accesses", s.handleCreateAccess)
		r.Delete("/accesses/{id}", s.handleDeleteAccess)
		r.Post("/accesses/{id}/resources", s.handleAttachResource)
		r.Delete("/accesses/{id}/resources/{rid}", s.handleDetachResource)

		r.Post("/groups", s.handleCreateGroup)
		r.Delete("/groups/{id}", s.handleDeleteGroup)
		r.Post("/groups/{gid}/accesses/{aid}", s.handleAttachAccess)
		r.Delete("/groups/{gid}/accesses/{aid}", s.handleDetachAccess)

		r.Post("/conflicts", s.handleCreateConflict)
		r.Delete("/conflicts", s.handleDeleteConflict)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
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
