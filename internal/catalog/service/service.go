// Package service orchestrates catalog operations: repository transactions,
// reference guards, and cache maintenance. Reads go through Redis with a TTL;
// writes commit first and then delete the affected keys.
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/cachekey"
	"github.com/wardenhq/warden/internal/catalog/models"
	"github.com/wardenhq/warden/internal/catalog/repository"
	"github.com/wardenhq/warden/internal/redisx"
)

// TTLs configures how long each read projection may live in the cache.
type TTLs struct {
	Conflicts     time.Duration
	GroupAccesses time.Duration
	AccessGroups  time.Duration
}

// DefaultTTLs is the fallback used when a TTL is left zero.
const defaultTTL = 10 * time.Minute

// Service carries the catalog business logic.
type Service struct {
	resources repository.ResourceRepository
	accesses  repository.AccessRepository
	groups    repository.GroupRepository
	conflicts repository.ConflictRepository

	cache *redisx.Cache
	ttls  TTLs
	log   *zap.Logger
}

// NewService wires the catalog service. cache may be nil; reads then always
// hit the repositories and writes skip invalidation.
func NewService(
	resources repository.ResourceRepository,
	accesses repository.AccessRepository,
	groups repository.GroupRepository,
	conflicts repository.ConflictRepository,
	cache *redisx.Cache,
	ttls TTLs,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if ttls.Conflicts <= 0 {
		ttls.Conflicts = defaultTTL
	}
	if ttls.GroupAccesses <= 0 {
		ttls.GroupAccesses = defaultTTL
	}
	if ttls.AccessGroups <= 0 {
		ttls.AccessGroups = defaultTTL
	}
	return &Service{
		resources: resources,
		accesses:  accesses,
		groups:    groups,
		conflicts: conflicts,
		cache:     cache,
		ttls:      ttls,
		log:       log,
	}
}

// invalidate drops cache keys after a committed write. Failures are logged
// and swallowed: the durable write already succeeded and TTL expiry bounds
// the staleness window.
func (s *Service) invalidate(ctx context.Context, keys ...string) {
	if s.cache == nil || len(keys) == 0 {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.log.Warn("cache invalidation failed",
			zap.Strings("keys", keys),
			zap.Error(err))
	}
}

// ---- Resources ----

// CreateResource validates and inserts a resource.
func (s *Service) CreateResource(ctx context.Context, resource *models.Resource) error {
	if err := resource.ValidateForCreate(); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return s.resources.Create(ctx, resource)
}

// GetResource returns one resource by id.
func (s *Service) GetResource(ctx context.Context, id int64) (*models.Resource, error) {
	return s.resources.GetByID(ctx, id)
}

// ListResources returns every resource.
func (s *Service) ListResources(ctx context.Context) ([]models.Resource, error) {
	return s.resources.List(ctx)
}

// DeleteResource removes a resource unless an access still bundles it.
func (s *Service) DeleteResource(ctx context.Context, id int64) error {
	if _, err := s.resources.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := s.accesses.CountByResource(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("resource %d is bundled by %d access(es): %w", id, n, ErrHasReferences)
	}
	return s.resources.Delete(ctx, id)
}

// ---- Accesses ----

// CreateAccess validates and inserts an access with its resource memberships.
func (s *Service) CreateAccess(ctx context.Context, access *models.Access, resourceIDs []int64) (*models.Access, error) {
	if err := access.ValidateForCreate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	for _, rid := range resourceIDs {
		if _, err := s.resources.GetByID(ctx, rid); err != nil {
			return nil, err
		}
	}
	if err := s.accesses.Create(ctx, access, resourceIDs); err != nil {
		return nil, err
	}
	return s.accesses.GetByID(ctx, access.ID)
}

// GetAccess returns one access with its resources.
func (s *Service) GetAccess(ctx context.Context, id int64) (*models.Access, error) {
	return s.accesses.GetByID(ctx, id)
}

// ListAccesses returns every access with resources.
func (s *Service) ListAccesses(ctx context.Context) ([]models.Access, error) {
	return s.accesses.List(ctx)
}

// DeleteAccess removes an access unless a group still carries it.
func (s *Service) DeleteAccess(ctx context.Context, id int64) error {
	if _, err := s.accesses.GetByID(ctx, id); err != nil {
		return err
	}
	groups, err := s.groups.GroupsByAccess(ctx, id)
	if err != nil {
		return err
	}
	if len(groups) > 0 {
		return fmt.Errorf("access %d is carried by %d group(s): %w", id, len(groups), ErrHasReferences)
	}
	if err := s.accesses.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.AccessGroups(id))
	return nil
}

// AttachResourceToAccess bundles a resource into an access.
func (s *Service) AttachResourceToAccess(ctx context.Context, accessID, resourceID int64) (*models.Access, error) {
	if _, err := s.accesses.GetByID(ctx, accessID); err != nil {
		return nil, err
	}
	if _, err := s.resources.GetByID(ctx, resourceID); err != nil {
		return nil, err
	}
	if err := s.accesses.AttachResource(ctx, accessID, resourceID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cachekey.AccessGroups(accessID))
	return s.accesses.GetByID(ctx, accessID)
}

// DetachResourceFromAccess removes a resource from an access.
func (s *Service) DetachResourceFromAccess(ctx context.Context, accessID, resourceID int64) error {
	if err := s.accesses.DetachResource(ctx, accessID, resourceID); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.AccessGroups(accessID))
	return nil
}

// ---- Groups ----

// CreateGroup validates and inserts a group with its access memberships.
func (s *Service) CreateGroup(ctx context.Context, group *models.Group, accessIDs []int64) (*models.Group, error) {
	if err := group.ValidateForCreate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	for _, aid := range accessIDs {
		if _, err := s.accesses.GetByID(ctx, aid); err != nil {
			return nil, err
		}
	}
	if err := s.groups.Create(ctx, group, accessIDs); err != nil {
		return nil, err
	}
	for _, aid := range accessIDs {
		s.invalidate(ctx, cachekey.AccessGroups(aid))
	}
	return s.groups.GetByID(ctx, group.ID)
}

// GetGroup returns one group with its accesses and their resources.
func (s *Service) GetGroup(ctx context.Context, id int64) (*models.Group, error) {
	return s.groups.GetByID(ctx, id)
}

// ListGroups returns every group.
func (s *Service) ListGroups(ctx context.Context) ([]models.Group, error) {
	return s.groups.List(ctx)
}

// DeleteGroup removes a group unless conflict edges still reference it.
func (s *Service) DeleteGroup(ctx context.Context, id int64) error {
	if _, err := s.groups.GetByID(ctx, id); err != nil {
		return err
	}
	n, err := s.conflicts.CountByGroup(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("group %d participates in %d conflict edge(s): %w", id, n, ErrHasReferences)
	}

	// Capture memberships before the delete wipes the join rows.
	accessIDs, err := s.groups.AccessIDs(ctx, id)
	if err != nil {
		return err
	}
	if err := s.groups.Delete(ctx, id); err != nil {
		return err
	}
	keys := []string{cachekey.GroupAccesses(id)}
	for _, aid := range accessIDs {
		keys = append(keys, cachekey.AccessGroups(aid))
	}
	s.invalidate(ctx, keys...)
	return nil
}

// AttachAccessToGroup adds an access to a group.
func (s *Service) AttachAccessToGroup(ctx context.Context, groupID, accessID int64) error {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return err
	}
	if _, err := s.accesses.GetByID(ctx, accessID); err != nil {
		return err
	}
	if err := s.groups.AttachAccess(ctx, groupID, accessID); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.GroupAccesses(groupID), cachekey.AccessGroups(accessID))
	return nil
}

// DetachAccessFromGroup removes an access from a group.
func (s *Service) DetachAccessFromGroup(ctx context.Context, groupID, accessID int64) error {
	if err := s.groups.DetachAccess(ctx, groupID, accessID); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.GroupAccesses(groupID), cachekey.AccessGroups(accessID))
	return nil
}

// ---- Read projections (cached) ----

// GroupAccesses returns the accesses carried by a group, read through the
// group:{id}:accesses key.
func (s *Service) GroupAccesses(ctx context.Context, groupID int64) ([]models.Access, error) {
	key := cachekey.GroupAccesses(groupID)
	if s.cache != nil {
		var cached []models.Access
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn("cache read failed, falling back to database",
				zap.String("key", key), zap.Error(err))
		} else if hit {
			s.log.Debug("cache hit", zap.String("key", key))
			return cached, nil
		}
	}

	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	accesses, err := s.groups.AccessesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, accesses, s.ttls.GroupAccesses)
	return accesses, nil
}

// AccessGroups returns the groups carrying an access, read through the
// access:{id}:groups key. An access no group carries yields an empty list.
func (s *Service) AccessGroups(ctx context.Context, accessID int64) ([]models.Group, error) {
	key := cachekey.AccessGroups(accessID)
	if s.cache != nil {
		var cached []models.Group
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn("cache read failed, falling back to database",
				zap.String("key", key), zap.Error(err))
		} else if hit {
			s.log.Debug("cache hit", zap.String("key", key))
			return cached, nil
		}
	}

	if _, err := s.accesses.GetByID(ctx, accessID); err != nil {
		return nil, err
	}
	groups, err := s.groups.GroupsByAccess(ctx, accessID)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, groups, s.ttls.AccessGroups)
	return groups, nil
}

// ConflictMatrix returns every conflict edge in both directions, read through
// the conflicts:matrix key.
func (s *Service) ConflictMatrix(ctx context.Context) ([]models.Conflict, error) {
	if s.cache != nil {
		var cached []models.Conflict
		hit, err := s.cache.GetJSON(ctx, cachekey.ConflictsMatrix, &cached)
		if err != nil {
			s.log.Warn("cache read failed, falling back to database",
				zap.String("key", cachekey.ConflictsMatrix), zap.Error(err))
		} else if hit {
			s.log.Debug("cache hit", zap.String("key", cachekey.ConflictsMatrix))
			return cached, nil
		}
	}

	conflicts, err := s.conflicts.List(ctx)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, cachekey.ConflictsMatrix, conflicts, s.ttls.Conflicts)
	return conflicts, nil
}

// GroupConflicts returns the conflict edges oriented from one group. Not
// cached; the full matrix is the hot path.
func (s *Service) GroupConflicts(ctx context.Context, groupID int64) ([]models.Conflict, error) {
	if _, err := s.groups.GetByID(ctx, groupID); err != nil {
		return nil, err
	}
	return s.conflicts.ListByGroup(ctx, groupID)
}

func (s *Service) fill(ctx context.Context, key string, value any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, ttl); err != nil {
		s.log.Warn("cache fill failed", zap.String("key", key), zap.Error(err))
	}
}

// ---- Conflicts ----

// CreateConflict records a conflict-of-interest pair. Both directions are
// written in one transaction and the matrix cache is dropped.
func (s *Service) CreateConflict(ctx context.Context, groupID1, groupID2 int64) ([]models.Conflict, error) {
	if groupID1 == groupID2 {
		return nil, fmt.Errorf("group %d: %w", groupID1, ErrSelfConflict)
	}
	if _, err := s.groups.GetByID(ctx, groupID1); err != nil {
		return nil, err
	}
	if _, err := s.groups.GetByID(ctx, groupID2); err != nil {
		return nil, err
	}
	if err := s.conflicts.CreatePair(ctx, groupID1, groupID2); err != nil {
		return nil, err
	}
	s.invalidate(ctx, cachekey.ConflictsMatrix)
	return []models.Conflict{
		{GroupID1: groupID1, GroupID2: groupID2},
		{GroupID1: groupID2, GroupID2: groupID1},
	}, nil
}

// DeleteConflict removes both directions of a conflict pair and drops the
// matrix cache. Not-found only when neither direction existed.
func (s *Service) DeleteConflict(ctx context.Context, groupID1, groupID2 int64) error {
	if err := s.conflicts.DeletePair(ctx, groupID1, groupID2); err != nil {
		return err
	}
	s.invalidate(ctx, cachekey.ConflictsMatrix)
	return nil
}
