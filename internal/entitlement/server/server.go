// Package server exposes the entitlement HTTP API: request intake,
// revocation, permission reads, and the user admin surface.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/entitlement/service"
	"github.com/wardenhq/warden/internal/httpx"
	"github.com/wardenhq/warden/internal/logging"
	"github.com/wardenhq/warden/internal/telemetry"
)

// ReadyCheck probes one dependency for the readiness endpoint.
type ReadyCheck struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Server holds the entitlement handlers and their dependencies.
type Server struct {
	svc     *service.Service
	log     *zap.Logger
	metrics *telemetry.Metrics
	checks  []ReadyCheck
}

// New builds the entitlement HTTP server. metrics may be nil in tests.
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

// Router assembles the chi router with shared middleware and all entitlement
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

	r.Post("/request", s.handleCreateRequest)
	r.Get("/permissions/{request_id}", s.handleGetRequest)

	r.Route("/users/{uid}", func(r chi.Router) {
		r.Get("/permissions", s.handleGetPermissions)
		r.Delete("/permissions", s.handleRevoke)
		r.Get("/current_active_groups", s.handleCurrentActiveGroups)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/users", s.handleCreateUser)
		r.Get("/users", s.handleListUsers)
		r.Get("/users/{id}", s.handleGetUser)
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
