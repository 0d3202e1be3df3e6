package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/entitlement/models"
	"github.com/wardenhq/warden/internal/wire"
)

// BunEntitlementRepository implements EntitlementRepository using Bun ORM
type BunEntitlementRepository struct {
	db *bun.DB
}

// NewBunEntitlementRepository creates a new Bun-based entitlement repository
func NewBunEntitlementRepository(db *bun.DB) *BunEntitlementRepository {
	return &BunEntitlementRepository{db: db}
}

// Create inserts a fresh entitlement row. The unique triple index and the
// request_id constraint are the last line of defense against races.
func (r *BunEntitlementRepository) Create(ctx context.Context, ent *models.UserEntitlement) error {
	if _, err := r.db.NewInsert().Model(ent).Exec(ctx); err != nil {
		return fmt.Errorf("create entitlement: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns of an existing row by primary key.
func (r *BunEntitlementRepository) Update(ctx context.Context, ent *models.UserEntitlement) error {
	res, err := r.db.NewUpdate().
		Model(ent).
		Column("status", "request_id", "item_name", "assigned_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update entitlement %d: %w", ent.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("entitlement %d: %w", ent.ID, ErrNotFound)
	}
	return nil
}

// FindByRequestID locates the row carrying the given request id
func (r *BunEntitlementRepository) FindByRequestID(ctx context.Context, requestID string) (*models.UserEntitlement, error) {
	ent := new(models.UserEntitlement)
	err := r.db.NewSelect().
		Model(ent).
		Where("up.request_id = ?", requestID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
		}
		return nil, fmt.Errorf("find by request id: %w", err)
	}
	return ent, nil
}

// FindByTriple locates the single row for (user, kind, item) regardless of
// status
func (r *BunEntitlementRepository) FindByTriple(ctx context.Context, userID int64, kind string, itemID int64) (*models.UserEntitlement, error) {
	ent := new(models.UserEntitlement)
	err := r.db.NewSelect().
		Model(ent).
		Where("up.user_id = ? AND up.permission_type = ? AND up.item_id = ?", userID, kind, itemID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entitlement (%d, %s, %d): %w", userID, kind, itemID, ErrNotFound)
		}
		return nil, fmt.Errorf("find by triple: %w", err)
	}
	return ent, nil
}

// FindByTripleWithStatus locates the row for (user, kind, item) whose status
// is one of the given values
func (r *BunEntitlementRepository) FindByTripleWithStatus(ctx context.Context, userID int64, kind string, itemID int64, statuses ...string) (*models.UserEntitlement, error) {
	ent := new(models.UserEntitlement)
	err := r.db.NewSelect().
		Model(ent).
		Where("up.user_id = ? AND up.permission_type = ? AND up.item_id = ?", userID, kind, itemID).
		Where("up.status IN (?)", bun.In(statuses)).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("entitlement (%d, %s, %d): %w", userID, kind, itemID, ErrNotFound)
		}
		return nil, fmt.Errorf("find by triple and status: %w", err)
	}
	return ent, nil
}

// ListByUser returns every entitlement row for a user ordered by id
func (r *BunEntitlementRepository) ListByUser(ctx context.Context, userID int64) ([]models.UserEntitlement, error) {
	var ents []models.UserEntitlement
	err := r.db.NewSelect().
		Model(&ents).
		Where("up.user_id = ?", userID).
		Order("up.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list entitlements for user %d: %w", userID, err)
	}
	return ents, nil
}

// ActiveGroupEntitlements returns the user's active group rows ordered by
// item id
func (r *BunEntitlementRepository) ActiveGroupEntitlements(ctx context.Context, userID int64) ([]models.UserEntitlement, error) {
	var ents []models.UserEntitlement
	err := r.db.NewSelect().
		Model(&ents).
		Where("up.user_id = ? AND up.permission_type = ? AND up.status = ?",
			userID, wire.KindGroup, models.StatusActive).
		Order("up.item_id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active groups for user %d: %w", userID, err)
	}
	return ents, nil
}
