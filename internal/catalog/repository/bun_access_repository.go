package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/catalog/models"
)

// BunAccessRepository implements AccessRepository using Bun ORM
type BunAccessRepository struct {
	db *bun.DB
}

// NewBunAccessRepository creates a new Bun-based access repository
func NewBunAccessRepository(db *bun.DB) *BunAccessRepository {
	return &BunAccessRepository{db: db}
}

// Create inserts a new access and its resource memberships in one transaction.
// Resource ids are assumed to exist; the service layer verifies them first.
func (r *BunAccessRepository) Create(ctx context.Context, access *models.Access, resourceIDs []int64) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(access).Exec(ctx); err != nil {
			return fmt.Errorf("insert access: %w", err)
		}
		for _, rid := range resourceIDs {
			join := &models.AccessResource{AccessID: access.ID, ResourceID: rid}
			if _, err := tx.NewInsert().Model(join).Exec(ctx); err != nil {
				return fmt.Errorf("attach resource %d: %w", rid, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create access: %w", err)
	}
	return nil
}

// GetByID retrieves an access with its resources
func (r *BunAccessRepository) GetByID(ctx context.Context, id int64) (*models.Access, error) {
	access := new(models.Access)
	err := r.db.NewSelect().
		Model(access).
		Relation("Resources").
		Where("a.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("access %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get access by id: %w", err)
	}
	return access, nil
}

// List returns all accesses with their resources ordered by id
func (r *BunAccessRepository) List(ctx context.Context) ([]models.Access, error) {
	var accesses []models.Access
	err := r.db.NewSelect().
		Model(&accesses).
		Relation("Resources").
		Order("a.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accesses: %w", err)
	}
	return accesses, nil
}

// Delete removes an access and its resource memberships. Group memberships
// are a service-level guard; the foreign key is the safety net.
func (r *BunAccessRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.AccessResource)(nil)).
			Where("access_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete resource memberships: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*models.Access)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete access: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("access %d: %w", id, ErrNotFound)
		}
		return nil
	})
	return err
}

// AttachResource adds a resource to an access
func (r *BunAccessRepository) AttachResource(ctx context.Context, accessID, resourceID int64) error {
	exists, err := r.db.NewSelect().
		Model((*models.AccessResource)(nil)).
		Where("access_id = ? AND resource_id = ?", accessID, resourceID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check resource membership: %w", err)
	}
	if exists {
		return fmt.Errorf("resource %d already attached to access %d: %w", resourceID, accessID, ErrAlreadyExists)
	}

	join := &models.AccessResource{AccessID: accessID, ResourceID: resourceID}
	if _, err := r.db.NewInsert().Model(join).Exec(ctx); err != nil {
		return fmt.Errorf("attach resource %d to access %d: %w", resourceID, accessID, err)
	}
	return nil
}

// DetachResource removes a resource from an access
func (r *BunAccessRepository) DetachResource(ctx context.Context, accessID, resourceID int64) error {
	res, err := r.db.NewDelete().
		Model((*models.AccessResource)(nil)).
		Where("access_id = ? AND resource_id = ?", accessID, resourceID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("detach resource %d from access %d: %w", resourceID, accessID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("resource %d not attached to access %d: %w", resourceID, accessID, ErrNotFound)
	}
	return nil
}

// CountByResource counts accesses that bundle the given resource
func (r *BunAccessRepository) CountByResource(ctx context.Context, resourceID int64) (int, error) {
	n, err := r.db.NewSelect().
		Model((*models.AccessResource)(nil)).
		Where("resource_id = ?", resourceID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count accesses by resource: %w", err)
	}
	return n, nil
}
