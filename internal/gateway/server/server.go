// Package server implements the public gateway: a thin facade that forwards
// client calls to the catalog and entitlement services, passing bodies and
// status codes through unchanged. Network failure toward an upstream maps to
// 503; upstream HTTP errors keep their status.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/httpx"
	"github.com/wardenhq/warden/internal/logging"
	"github.com/wardenhq/warden/internal/telemetry"
)

// Server proxies client traffic to the downstream services.
type Server struct {
	catalogURL     string
	entitlementURL string
	hc             *http.Client
	log            *zap.Logger
	metrics        *telemetry.Metrics
}

// New builds the gateway server. metrics may be nil in tests.
func New(catalogURL, entitlementURL string, timeout time.Duration, log *zap.Logger, metrics *telemetry.Metrics) *Server {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		catalogURL:     catalogURL,
		entitlementURL: entitlementURL,
		hc:             &http.Client{Timeout: timeout},
		log:            log,
		metrics:        metrics,
	}
}

// DefaultCORSOptions returns the public CORS policy.
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

// Router assembles the public route table.
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

	// Entitlement passthrough.
	r.Post("/request", s.forwardBody(http.MethodPost, s.entitlementURL, "/request"))
	r.Get("/permissions/{request_id}", s.forwardPath(s.entitlementURL))
	r.Get("/users/{uid}/permissions", s.forwardPath(s.entitlementURL))
	r.Get("/users/{uid}/current_active_groups", s.forwardPath(s.entitlementURL))
	r.Delete("/users/{uid}/permissions", s.handleRevoke)

	// Catalog passthrough.
	r.Get("/resources", s.forwardPath(s.catalogURL))
	r.Get("/resources/{id}", s.forwardPath(s.catalogURL))
	r.Get("/resources/{id}/required-access", s.handleRequiredAccess)
	r.Get("/accesses", s.forwardPath(s.catalogURL))
	r.Get("/accesses/{id}", s.forwardPath(s.catalogURL))
	r.Get("/accesses/{id}/groups", s.forwardPath(s.catalogURL))
	r.Get("/groups", s.forwardPath(s.catalogURL))
	r.Get("/groups/{id}", s.forwardPath(s.catalogURL))
	r.Get("/groups/{id}/accesses", s.forwardPath(s.catalogURL))
	r.Get("/conflicts", s.forwardPath(s.catalogURL))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady probes both upstreams' liveness endpoints.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	for _, upstream := range []struct {
		name string
		base string
	}{
		{"catalog", s.catalogURL},
		{"entitlement", s.entitlementURL},
	} {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream.base+"/health", nil)
		if err != nil {
			httpx.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		resp, err := s.hc.Do(req)
		if err != nil {
			s.log.Warn("upstream unreachable",
				zap.String("upstream", upstream.name),
				zap.Error(err))
			httpx.Error(w, http.StatusServiceUnavailable, upstream.name+" unavailable")
			return
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			httpx.Error(w, http.StatusServiceUnavailable, upstream.name+" unavailable")
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// forwardPath proxies a GET, keeping the request path as-is.
func (s *Server) forwardPath(base string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.proxy(w, r, http.MethodGet, base+r.URL.Path, nil)
	}
}

// forwardBody proxies a request with its body to a fixed upstream path.
func (s *Server) forwardBody(method, base, path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.proxy(w, r, method, base+path, r.Body)
	}
}

// handleRevoke accepts the facade contract (query parameters) and forwards
// the entitlement service's JSON body form.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("permission_type")
	itemID := r.URL.Query().Get("item_id")
	if kind == "" || itemID == "" {
		httpx.Error(w, http.StatusBadRequest, "permission_type and item_id query parameters are required")
		return
	}

	var parsedItem int64
	if _, err := fmt.Sscanf(itemID, "%d", &parsedItem); err != nil || parsedItem <= 0 {
		httpx.Error(w, http.StatusBadRequest, "item_id must be a positive integer")
		return
	}

	body, err := json.Marshal(map[string]any{
		"permission_type": kind,
		"item_id":         parsedItem,
	})
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	s.proxy(w, r, http.MethodDelete, s.entitlementURL+r.URL.Path, bytes.NewReader(body))
}

// handleRequiredAccess aggregates which accesses expose a resource.
func (s *Server) handleRequiredAccess(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	// 404 propagation: the resource must exist.
	status, _, err := s.fetch(r.Context(), fmt.Sprintf("%s/resources/%d", s.catalogURL, id))
	if err != nil {
		httpx.Error(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	if status != http.StatusOK {
		s.relayStatus(w, status, "resource lookup failed")
		return
	}

	status, body, err := s.fetch(r.Context(), s.catalogURL+"/accesses")
	if err != nil {
		httpx.Error(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}
	if status != http.StatusOK {
		s.relayStatus(w, status, "access lookup failed")
		return
	}

	var accesses []struct {
		ID        int64  `json:"id"`
		Name      string `json:"name"`
		Resources []struct {
			ID int64 `json:"id"`
		} `json:"resources"`
	}
	if err := json.Unmarshal(body, &accesses); err != nil {
		s.log.Error("undecodable catalog response", zap.Error(err))
		httpx.Error(w, http.StatusBadGateway, "invalid upstream response")
		return
	}

	matching := make([]map[string]any, 0)
	for _, a := range accesses {
		for _, res := range a.Resources {
			if res.ID == id {
				matching = append(matching, map[string]any{"id": a.ID, "name": a.Name})
				break
			}
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"resource_id": id,
		"accesses":    matching,
	})
}

// proxy forwards the call and copies the upstream status and body back.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request, method, url string, body io.Reader) {
	req, err := http.NewRequestWithContext(r.Context(), method, url, body)
	if err != nil {
		httpx.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.hc.Do(req)
	if err != nil {
		s.log.Warn("upstream request failed",
			zap.String("url", url),
			zap.Error(err))
		httpx.Error(w, http.StatusServiceUnavailable, "upstream unavailable")
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.log.Warn("copying upstream response failed",
			zap.String("url", url),
			zap.Error(err))
	}
}

func (s *Server) fetch(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := s.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// relayStatus passes a meaningful upstream status through, defaulting to 502.
func (s *Server) relayStatus(w http.ResponseWriter, status int, msg string) {
	if status >= 400 && status < 500 {
		httpx.Error(w, status, msg)
		return
	}
	httpx.Error(w, http.StatusBadGateway, msg)
}
