package server

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/entitlement/repository"
	"github.com/wardenhq/warden/internal/entitlement/service"
	"github.com/wardenhq/warden/internal/httpx"
)

// writeError classifies a service or repository error to an HTTP status and
// writes the uniform {"detail": "..."} body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		httpx.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrRequestPending), errors.Is(err, repository.ErrAlreadyExists):
		httpx.Error(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("unhandled error",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		httpx.Error(w, http.StatusInternalServerError, "internal server error")
	}
}
