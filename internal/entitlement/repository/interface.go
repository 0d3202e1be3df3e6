package repository

import (
	"context"

	"github.com/wardenhq/warden/internal/entitlement/models"
)

// UserRepository exposes persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
}

// EntitlementRepository exposes persistence operations for user entitlement
// rows. Finders that locate no row return ErrNotFound wrapped with context.
type EntitlementRepository interface {
	Create(ctx context.Context, ent *models.UserEntitlement) error
	Update(ctx context.Context, ent *models.UserEntitlement) error

	FindByRequestID(ctx context.Context, requestID string) (*models.UserEntitlement, error)
	FindByTriple(ctx context.Context, userID int64, kind string, itemID int64) (*models.UserEntitlement, error)
	FindByTripleWithStatus(ctx context.Context, userID int64, kind string, itemID int64, statuses ...string) (*models.UserEntitlement, error)

	ListByUser(ctx context.Context, userID int64) ([]models.UserEntitlement, error)
	ActiveGroupEntitlements(ctx context.Context, userID int64) ([]models.UserEntitlement, error)
}
