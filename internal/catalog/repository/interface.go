package repository

import (
	"context"

	"github.com/wardenhq/warden/internal/catalog/models"
)

// ResourceRepository exposes persistence operations for catalog resources.
type ResourceRepository interface {
	Create(ctx context.Context, resource *models.Resource) error
	GetByID(ctx context.Context, id int64) (*models.Resource, error)
	List(ctx context.Context) ([]models.Resource, error)
	Delete(ctx context.Context, id int64) error
}

// AccessRepository exposes persistence operations for accesses and their
// resource memberships.
type AccessRepository interface {
	Create(ctx context.Context, access *models.Access, resourceIDs []int64) error
	GetByID(ctx context.Context, id int64) (*models.Access, error)
	List(ctx context.Context) ([]models.Access, error)
	Delete(ctx context.Context, id int64) error

	AttachResource(ctx context.Context, accessID, resourceID int64) error
	DetachResource(ctx context.Context, accessID, resourceID int64) error
	CountByResource(ctx context.Context, resourceID int64) (int, error)
}

// GroupRepository exposes persistence operations for groups and their access
// memberships.
type GroupRepository interface {
	Create(ctx context.Context, group *models.Group, accessIDs []int64) error
	GetByID(ctx context.Context, id int64) (*models.Group, error)
	List(ctx context.Context) ([]models.Group, error)
	Delete(ctx context.Context, id int64) error

	AttachAccess(ctx context.Context, groupID, accessID int64) error
	DetachAccess(ctx context.Context, groupID, accessID int64) error
	AccessIDs(ctx context.Context, groupID int64) ([]int64, error)
	AccessesByGroup(ctx context.Context, groupID int64) ([]models.Access, error)
	GroupsByAccess(ctx context.Context, accessID int64) ([]models.Group, error)
}

// ConflictRepository exposes persistence operations for the symmetric
// conflict matrix. Pairs are always written and removed in both directions.
type ConflictRepository interface {
	CreatePair(ctx context.Context, groupID1, groupID2 int64) error
	DeletePair(ctx context.Context, groupID1, groupID2 int64) error
	List(ctx context.Context) ([]models.Conflict, error)
	ListByGroup(ctx context.Context, groupID int64) ([]models.Conflict, error)
	CountByGroup(ctx context.Context, groupID int64) (int, error)
}
