package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/catalog/models"
)

// BunResourceRepository implements ResourceRepository using Bun ORM
type BunResourceRepository struct {
	db *bun.DB
}

// NewBunResourceRepository creates a new Bun-based resource repository
func NewBunResourceRepository(db *bun.DB) *BunResourceRepository {
	return &BunResourceRepository{db: db}
}

// Create inserts a new resource
func (r *BunResourceRepository) Create(ctx context.Context, resource *models.Resource) error {
	_, err := r.db.NewInsert().
		Model(resource).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create resource: %w", err)
	}
	return nil
}

// GetByID retrieves a resource by its ID
func (r *BunResourceRepository) GetByID(ctx context.Context, id int64) (*models.Resource, error) {
	resource := new(models.Resource)
	err := r.db.NewSelect().
		Model(resource).
		Where("r.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("resource %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get resource by id: %w", err)
	}
	return resource, nil
}

// List returns all resources ordered by id
func (r *BunResourceRepository) List(ctx context.Context) ([]models.Resource, error) {
	var resources []models.Resource
	err := r.db.NewSelect().
		Model(&resources).
		Order("r.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list resources: %w", err)
	}
	return resources, nil
}

// Delete removes a resource by id
func (r *BunResourceRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.NewDelete().
		Model((*models.Resource)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete resource: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("resource %d: %w", id, ErrNotFound)
	}
	return nil
}
