package server

import (
	"net/http"

	"github.com/wardenhq/warden/internal/catalog/models"
	"github.com/wardenhq/warden/internal/httpx"
)

// groupRef is the slim group shape returned by membership lookups.
type groupRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func toGroupRefs(groups []models.Group) []groupRef {
	refs := make([]groupRef, 0, len(groups))
	for _, g := range groups {
		refs = append(refs, groupRef{ID: g.ID, Name: g.Name})
	}
	return refs
}

// ---- Public reads ----

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := s.svc.ListResources(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resources)
}

func (s *Server) handleGetResource(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	resource, err := s.svc.GetResource(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resource)
}

func (s *Server) handleListAccesses(w http.ResponseWriter, r *http.Request) {
	accesses, err := s.svc.ListAccesses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, accesses)
}

func (s *Server) handleGetAccess(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	access, err := s.svc.GetAccess(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, access)
}

func (s *Server) handleAccessGroups(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	groups, err := s.svc.AccessGroups(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"access_id": id,
		"groups":    toGroupRefs(groups),
	})
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.svc.ListGroups(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := s.svc.GetGroup(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, group)
}

func (s *Server) handleGroupAccesses(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	accesses, err := s.svc.GroupAccesses(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"group_id": id,
		"accesses": accesses,
	})
}

func (s *Server) handleConflictMatrix(w http.ResponseWriter, r *http.Request) {
	conflicts, err := s.svc.ConflictMatrix(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"conflicts": conflicts})
}

func (s *Server) handleGroupConflicts(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "group_id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	conflicts, err := s.svc.GroupConflicts(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"group_id":  id,
		"conflicts": conflicts,
	})
}

// ---- Admin writes ----

type createResourceRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	Type        string  `json:"type" validate:"required"`
	Description *string `json:"description"`
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	var req createResourceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	resource := &models.Resource{
		Name:        req.Name,
		Type:        req.Type,
		Description: req.Description,
	}
	if err := s.svc.CreateResource(r.Context(), resource); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, resource)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.DeleteResource(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

type createAccessRequest struct {
	Name        string  `json:"name" validate:"required,max=100"`
	ResourceIDs []int64 `json:"resource_ids" validate:"omitempty,dive,gt=0"`
}

func (s *Server) handleCreateAccess(w http.ResponseWriter, r *http.Request) {
	var req createAccessRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	access, err := s.svc.CreateAccess(r.Context(), &models.Access{Name: req.Name}, req.ResourceIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, access)
}

func (s *Server) handleDeleteAccess(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.DeleteAccess(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

type attachResourceRequest struct {
	ResourceID int64 `json:"resource_id" validate:"required,gt=0"`
}

func (s *Server) handleAttachResource(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	var req attachResourceRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	access, err := s.svc.AttachResourceToAccess(r.Context(), id, req.ResourceID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, access)
}

func (s *Server) handleDetachResource(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	rid, err := httpx.URLParamInt64(r, "rid")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.DetachResourceFromAccess(r.Context(), id, rid); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

type createGroupRequest struct {
	Name      string  `json:"name" validate:"required,max=100"`
	AccessIDs []int64 `json:"access_ids" validate:"omitempty,dive,gt=0"`
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	group, err := s.svc.CreateGroup(r.Context(), &models.Group{Name: req.Name}, req.AccessIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (s *Server) handleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLParamInt64(r, "id")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.DeleteGroup(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleAttachAccess(w http.ResponseWriter, r *http.Request) {
	gid, err := httpx.URLParamInt64(r, "gid")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	aid, err := httpx.URLParamInt64(r, "aid")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.AttachAccessToGroup(r.Context(), gid, aid); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDetachAccess(w http.ResponseWriter, r *http.Request) {
	gid, err := httpx.URLParamInt64(r, "gid")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	aid, err := httpx.URLParamInt64(r, "aid")
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.DetachAccessFromGroup(r.Context(), gid, aid); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}

type conflictRequest struct {
	GroupID1 int64 `json:"group_id1" validate:"required,gt=0"`
	GroupID2 int64 `json:"group_id2" validate:"required,gt=0"`
}

func (s *Server) handleCreateConflict(w http.ResponseWriter, r *http.Request) {
	var req conflictRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := s.svc.CreateConflict(r.Context(), req.GroupID1, req.GroupID2)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, pair)
}

func (s *Server) handleDeleteConflict(w http.ResponseWriter, r *http.Request) {
	var req conflictRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.svc.DeleteConflict(r.Context(), req.GroupID1, req.GroupID2); err != nil {
		s.writeError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusNoContent, nil)
}
