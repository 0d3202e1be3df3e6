package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/catalog/repository"
	"github.com/wardenhq/warden/internal/catalog/service"
	"github.com/wardenhq/warden/internal/httpx"
)

// writeError classifies a service or repository error to an HTTP status and
// writes the uniform {"detail": "..."} body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrSelfConflict):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrAlreadyExists), errors.Is(err, service.ErrHasReferences):
		httpx.Error(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("unhandled error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
