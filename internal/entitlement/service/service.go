// Package service implements the entitlement state machine: request
// acceptance, validation-result application, revocation, and the cached
// active-groups projection.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/cachekey"
	"github.com/wardenhq/warden/internal/entitlement/models"
	"github.com/wardenhq/warden/internal/entitlement/repository"
	"github.com/wardenhq/warden/internal/redisx"
	"github.com/wardenhq/warden/internal/wire"
)

const defaultUserGroupsTTL = 10 * time.Minute

// JobPublisher sends validation jobs to the broker. The concrete
// implementation lives in the publisher package; tests substitute a mock.
type JobPublisher interface {
	Publish(ctx context.Context, job wire.ValidationJob) error
}

// GroupMembership is one entry of the active-groups projection.
type GroupMembership struct {
	ID   int64   `json:"id"`
	Name *string `json:"name,omitempty"`
}

// Service carries the entitlement business logic.
type Service struct {
	users  repository.UserRepository
	ents   repository.EntitlementRepository
	jobs   JobPublisher
	cache  *redisx.Cache
	ttl    time.Duration
	log    *zap.Logger
	nowFn  func() time.Time
	uuidFn func() string
}

// NewService wires the entitlement service. jobs may be nil (requests are
// then accepted but never validated; used by read-only tooling) and cache may
// be nil (reads always hit the database).
func NewService(
	users repository.UserRepository,
	ents repository.EntitlementRepository,
	jobs JobPublisher,
	cache *redisx.Cache,
	userGroupsTTL time.Duration,
	log *zap.Logger,
) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if userGroupsTTL <= 0 {
		userGroupsTTL = defaultUserGroupsTTL
	}
	return &Service{
		users:  users,
		ents:   ents,
		jobs:   jobs,
		cache:  cache,
		ttl:    userGroupsTTL,
		log:    log,
		nowFn:  time.Now,
		uuidFn: uuid.NewString,
	}
}

// ---- Users ----

// CreateUser validates and inserts a user.
func (s *Service) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.ValidateForCreate(); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return s.users.Create(ctx, user)
}

// GetUser returns one user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

// ListUsers returns every user.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.users.List(ctx)
}

// ---- Request acceptance ----

// CreateRequest records a new entitlement request as pending and enqueues a
// validation job. The durable write decides the outcome: once it commits the
// request is accepted, and a failed publish only delays validation.
func (s *Service) CreateRequest(ctx context.Context, userID int64, kind string, itemID int64, itemName *string) (string, error) {
	if !models.ValidKind(kind) {
		return "", fmt.Errorf("%w: permission_type must be %q or %q", ErrValidation, wire.KindGroup, wire.KindAccess)
	}
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return "", err
	}

	requestID := s.uuidFn()

	existing, err := s.ents.FindByTriple(ctx, userID, kind, itemID)
	switch {
	case err == nil && existing.Blocking():
		return "", fmt.Errorf("entitlement (%d, %s, %d): %w", userID, kind, itemID, ErrRequestPending)

	case err == nil:
		// Rejected or revoked row: reuse it with a fresh request id.
		existing.Status = models.StatusPending
		existing.RequestID = requestID
		existing.AssignedAt = nil
		if itemName != nil {
			existing.ItemName = itemName
		}
		if err := s.ents.Update(ctx, existing); err != nil {
			return "", err
		}

	case isNotFound(err):
		ent := &models.UserEntitlement{
			UserID:         userID,
			PermissionType: kind,
			ItemID:         itemID,
			ItemName:       itemName,
			Status:         models.StatusPending,
			RequestID:      requestID,
		}
		if err := s.ents.Create(ctx, ent); err != nil {
			return "", err
		}

	default:
		return "", err
	}

	// Publish after commit. Failure is tolerated: the row stays pending and
	// can be republished; rolling back a durable grant for a broker hiccup
	// is the one thing this ordering forbids.
	if s.jobs != nil {
		job := wire.ValidationJob{
			UserID:         userID,
			PermissionType: kind,
			ItemID:         itemID,
			RequestID:      requestID,
		}
		if err := s.jobs.Publish(ctx, job); err != nil {
			s.log.Warn("validation job publish failed, request stays pending",
				zap.String("request_id", requestID),
				zap.Int64("user_id", userID),
				zap.Error(err))
		}
	}

	s.log.Debug("request accepted",
		zap.String("request_id", requestID),
		zap.Int64("user_id", userID),
		zap.String("kind", kind),
		zap.Int64("item_id", itemID))
	return requestID, nil
}

// ---- Result application ----

// ApplyValidationResult transitions the row named by the result to its
// terminal state. Unknown request ids and identity mismatches return
// ErrNotFound / ErrResultMismatch; re-applying a result to a settled row is a
// no-op so redeliveries cannot flap state.
func (s *Service) ApplyValidationResult(ctx context.Context, res *wire.ValidationResult) error {
	ent, err := s.ents.FindByRequestID(ctx, res.RequestID)
	if err != nil {
		return err
	}

	if ent.UserID != res.UserID || ent.PermissionType != res.PermissionType || ent.ItemID != res.ItemID {
		return fmt.Errorf("request %s: stored (%d, %s, %d), result (%d, %s, %d): %w",
			res.RequestID,
			ent.UserID, ent.PermissionType, ent.ItemID,
			res.UserID, res.PermissionType, res.ItemID,
			ErrResultMismatch)
	}

	if ent.Terminal() {
		s.log.Debug("result re-applied to settled row, no-op",
			zap.String("request_id", res.RequestID),
			zap.String("status", ent.Status))
		return nil
	}

	if res.Approved {
		now := s.nowFn()
		ent.Status = models.StatusActive
		ent.AssignedAt = &now
	} else {
		ent.Status = models.StatusRejected
	}
	if err := s.ents.Update(ctx, ent); err != nil {
		return err
	}

	if ent.PermissionType == wire.KindGroup {
		s.invalidateUserGroups(ctx, ent.UserID)
	}

	s.log.Info("validation result applied",
		zap.String("request_id", res.RequestID),
		zap.Int64("user_id", ent.UserID),
		zap.String("status", ent.Status),
		zap.String("reason", res.Reason))
	return nil
}

// ---- Revocation ----

// Revoke withdraws an active or pending entitlement. Synchronous; never
// touches the broker.
func (s *Service) Revoke(ctx context.Context, userID int64, kind string, itemID int64) error {
	if !models.ValidKind(kind) {
		return fmt.Errorf("%w: permission_type must be %q or %q", ErrValidation, wire.KindGroup, wire.KindAccess)
	}
	ent, err := s.ents.FindByTripleWithStatus(ctx, userID, kind, itemID,
		models.StatusActive, models.StatusPending)
	if err != nil {
		return err
	}

	now := s.nowFn()
	ent.Status = models.StatusRevoked
	ent.AssignedAt = &now
	if err := s.ents.Update(ctx, ent); err != nil {
		return err
	}

	if kind == wire.KindGroup {
		s.invalidateUserGroups(ctx, userID)
	}

	s.log.Info("entitlement revoked",
		zap.Int64("user_id", userID),
		zap.String("kind", kind),
		zap.Int64("item_id", itemID))
	return nil
}

// ---- Reads ----

// GetPermissions returns every entitlement row for a user.
func (s *Service) GetPermissions(ctx context.Context, userID int64) ([]models.UserEntitlement, error) {
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.ents.ListByUser(ctx, userID)
}

// GetByRequestID returns the row tracking one request.
func (s *Service) GetByRequestID(ctx context.Context, requestID string) (*models.UserEntitlement, error) {
	return s.ents.FindByRequestID(ctx, requestID)
}

// CurrentActiveGroups returns the user's active group memberships, read
// through the user:{id}:active_groups key.
func (s *Service) CurrentActiveGroups(ctx context.Context, userID int64) ([]GroupMembership, error) {
	key := cachekey.UserActiveGroups(userID)
	if s.cache != nil {
		var cached []GroupMembership
		hit, err := s.cache.GetJSON(ctx, key, &cached)
		if err != nil {
			s.log.Warn("cache read failed, falling back to database",
				zap.String("key", key), zap.Error(err))
		} else if hit {
			s.log.Debug("cache hit", zap.String("key", key))
			return cached, nil
		}
	}

	ents, err := s.ents.ActiveGroupEntitlements(ctx, userID)
	if err != nil {
		return nil, err
	}
	groups := make([]GroupMembership, 0, len(ents))
	for _, e := range ents {
		groups = append(groups, GroupMembership{ID: e.ItemID, Name: e.ItemName})
	}

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, key, groups, s.ttl); err != nil {
			s.log.Warn("cache fill failed", zap.String("key", key), zap.Error(err))
		}
	}
	return groups, nil
}

func (s *Service) invalidateUserGroups(ctx context.Context, userID int64) {
	if s.cache == nil {
		return
	}
	key := cachekey.UserActiveGroups(userID)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.log.Warn("cache invalidation failed",
			zap.String("key", key),
			zap.Error(err))
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
