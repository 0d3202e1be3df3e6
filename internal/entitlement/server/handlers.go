package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wardenhq/warden/internal/entitlement/models"
	"github.com/wardenhq/warden/internal/httpx"
	"github.com/wardenhq/warden/internal/wire"
)

// permissionOut is the client-facing shape of one entitlement row.
type permissionOut struct {
	ID             int64      `json:"id"`
	PermissionType string     `json:"permission_type"`
	ItemID         int64      `json:"item_id"`
	ItemName       *string    `json:"item_name,omitempty"`
	Status         string     `json:"status"`
	AssignedAt     *time.Time `json:"assigned_at,omitempty"`
}

func toPermissionOut(e *models.UserEntitlement) permissionOut {
	return permissionOut{
		ID:             e.ID,
		PermissionType: e.PermissionType,
		ItemID:         e.ItemID,
		ItemName:       e.ItemName,
		Status:         e.Status,
		AssignedAt:     e.AssignedAt,
	}
}

type createRequestRequest struct {
	UserID         int64   `json:"user_id" validate:"required,gt=0"`
	PermissionType string  `json:"permission_type" validate:"required,oneof=group access"`
	ItemID         int64   `json:"item_id" validate:"required,gt=0"`
	ItemName       *string `json:"item_name" validate:"omitempty,max=255"`
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req createRequestRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	requestID, err := s.svc.CreateRequest(r.Context(), req.UserID, req.PermissionType, req.ItemID, req.ItemName)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{
		"status":     "accepted",
		"request_id": requestID,
	})
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	requestID := strings.TrimSpace(chi.URLParam(r, "request_id"))
	if requestID == "" {
		httpx.Error(w, http.StatusBadRequest, "request_id is required")
		return
	}
	ent, err := s.svc.GetByRequestID(r.Context(), requestID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := toPermissionOut(ent)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"request_id":      ent.RequestID,
		"user_id":         ent.UserID,
		"permission_type": out.PermissionType,
		"item_id":         out.ItemID,
		"item_name":       out.ItemName,
		"status":          out.Status,
		"assigned_at":     out.AssignedAt,
	})
}

func (s *Server) handleGetPermissions(w http.ResponseWriter, r *http.Request) {
	uid, err := httpx.URLParamInt64(r, "uid")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	ents, err := s.svc.GetPermissions(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	groups := make([]permissionOut, 0)
	accesses := make([]permissionOut, 0)
	for i := range ents {
		out := toPermissionOut(&ents[i])
		if ents[i].PermissionType == wire.KindGroup {
			groups = append(groups, out)
		} else {
			accesses = append(accesses, out)
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user_id":  uid,
		"groups":   groups,
		"accesses": accesses,
	})
}

type revokeRequest struct {
	PermissionType string `json:"permission_type" validate:"required,oneof=group access"`
	ItemID         int64  `json:"item_id" validate:"required,gt=0"`
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	uid, err := httpx.URLParamInt64(r, "uid")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	var req revokeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.Revoke(r.Context(), uid, req.PermissionType, req.ItemID); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

func (s *Server) handleCurrentActiveGroups(w http.ResponseWriter, r *http.Request) {
	uid, err := httpx.URLParamInt64(r, "uid")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	groups, err := s.svc.CurrentActiveGroups(r.Context(), uid)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"groups": groups})
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,min=1,max=50"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	user := &models.User{Username: req.Username}
	if err := s.svc.CreateUser(r.Context(), user); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.ListUsers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := s.svc.GetUser(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
