package repository

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/catalog/models"
)

// BunConflictRepository implements ConflictRepository using Bun ORM
type BunConflictRepository struct {
	db *bun.DB
}

// NewBunConflictRepository creates a new Bun-based conflict repository
func NewBunConflictRepository(db *bun.DB) *BunConflictRepository {
	return &BunConflictRepository{db: db}
}

// CreatePair inserts both directions of a conflict in one transaction.
// Fails with ErrAlreadyExists when either direction is present.
func (r *BunConflictRepository) CreatePair(ctx context.Context, groupID1, groupID2 int64) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.Conflict)(nil)).
			Where("(group_id1 = ? AND group_id2 = ?) OR (group_id1 = ? AND group_id2 = ?)",
				groupID1, groupID2, groupID2, groupID1).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check conflict pair: %w", err)
		}
		if exists {
			return fmt.Errorf("conflict between groups %d and %d: %w", groupID1, groupID2, ErrAlreadyExists)
		}

		pair := []models.Conflict{
			{GroupID1: groupID1, GroupID2: groupID2},
			{GroupID1: groupID2, GroupID2: groupID1},
		}
		if _, err := tx.NewInsert().Model(&pair).Exec(ctx); err != nil {
			return fmt.Errorf("insert conflict pair: %w", err)
		}
		return nil
	})
}

// DeletePair removes both directions of a conflict in one transaction.
// Fails with ErrNotFound only when neither direction existed.
func (r *BunConflictRepository) DeletePair(ctx context.Context, groupID1, groupID2 int64) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*models.Conflict)(nil)).
			Where("(group_id1 = ? AND group_id2 = ?) OR (group_id1 = ? AND group_id2 = ?)",
				groupID1, groupID2, groupID2, groupID1).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete conflict pair: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("conflict between groups %d and %d: %w", groupID1, groupID2, ErrNotFound)
		}
		return nil
	})
}

// List returns every conflict row, both directions included
func (r *BunConflictRepository) List(ctx context.Context) ([]models.Conflict, error) {
	var conflicts []models.Conflict
	err := r.db.NewSelect().
		Model(&conflicts).
		Order("c.group_id1", "c.group_id2").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	return conflicts, nil
}

// ListByGroup returns the conflict edges oriented from the given group
func (r *BunConflictRepository) ListByGroup(ctx context.Context, groupID int64) ([]models.Conflict, error) {
	var conflicts []models.Conflict
	err := r.db.NewSelect().
		Model(&conflicts).
		Where("group_id1 = ?", groupID).
		Order("c.group_id2").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conflicts for group %d: %w", groupID, err)
	}
	return conflicts, nil
}

// CountByGroup counts conflict rows touching the given group in either column
func (r *BunConflictRepository) CountByGroup(ctx context.Context, groupID int64) (int, error) {
	n, err := r.db.NewSelect().
		Model((*models.Conflict)(nil)).
		Where("group_id1 = ? OR group_id2 = ?", groupID, groupID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count conflicts for group %d: %w", groupID, err)
	}
	return n, nil
}
