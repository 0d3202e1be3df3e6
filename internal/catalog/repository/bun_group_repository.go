package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/wardenhq/warden/internal/catalog/models"
)

// BunGroupRepository implements GroupRepository using Bun ORM
type BunGroupRepository struct {
	db *bun.DB
}

// NewBunGroupRepository creates a new Bun-based group repository
func NewBunGroupRepository(db *bun.DB) *BunGroupRepository {
	return &BunGroupRepository{db: db}
}

// Create inserts a new group and its access memberships in one transaction.
// Group names are unique; access ids are verified by the service layer.
func (r *BunGroupRepository) Create(ctx context.Context, group *models.Group, accessIDs []int64) error {
	exists, err := r.db.NewSelect().
		Model((*models.Group)(nil)).
		Where("name = ?", group.Name).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check group name: %w", err)
	}
	if exists {
		return fmt.Errorf("group %q: %w", group.Name, ErrAlreadyExists)
	}

	err = r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(group).Exec(ctx); err != nil {
			return fmt.Errorf("insert group: %w", err)
		}
		for _, aid := range accessIDs {
			join := &models.GroupAccess{GroupID: group.ID, AccessID: aid}
			if _, err := tx.NewInsert().Model(join).Exec(ctx); err != nil {
				return fmt.Errorf("attach access %d: %w", aid, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// GetByID retrieves a group with its accesses and their resources
func (r *BunGroupRepository) GetByID(ctx context.Context, id int64) (*models.Group, error) {
	group := new(models.Group)
	err := r.db.NewSelect().
		Model(group).
		Relation("Accesses").
		Relation("Accesses.Resources").
		Where("g.id = ?", id).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("group %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get group by id: %w", err)
	}
	return group, nil
}

// List returns all groups with their accesses ordered by id
func (r *BunGroupRepository) List(ctx context.Context) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.NewSelect().
		Model(&groups).
		Relation("Accesses").
		Relation("Accesses.Resources").
		Order("g.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Delete removes a group and its access memberships. Conflict edges are a
// service-level guard.
func (r *BunGroupRepository) Delete(ctx context.Context, id int64) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*models.GroupAccess)(nil)).
			Where("group_id = ?", id).
			Exec(ctx); err != nil {
			return fmt.Errorf("delete access memberships: %w", err)
		}

		res, err := tx.NewDelete().
			Model((*models.Group)(nil)).
			Where("id = ?", id).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete group: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("group %d: %w", id, ErrNotFound)
		}
		return nil
	})
	return err
}

// AttachAccess adds an access to a group
func (r *BunGroupRepository) AttachAccess(ctx context.Context, groupID, accessID int64) error {
	exists, err := r.db.NewSelect().
		Model((*models.GroupAccess)(nil)).
		Where("group_id = ? AND access_id = ?", groupID, accessID).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("check access membership: %w", err)
	}
	if exists {
		return fmt.Errorf("access %d already attached to group %d: %w", accessID, groupID, ErrAlreadyExists)
	}

	join := &models.GroupAccess{GroupID: groupID, AccessID: accessID}
	if _, err := r.db.NewInsert().Model(join).Exec(ctx); err != nil {
		return fmt.Errorf("attach access %d to group %d: %w", accessID, groupID, err)
	}
	return nil
}

// DetachAccess removes an access from a group
func (r *BunGroupRepository) DetachAccess(ctx context.Context, groupID, accessID int64) error {
	res, err := r.db.NewDelete().
		Model((*models.GroupAccess)(nil)).
		Where("group_id = ? AND access_id = ?", groupID, accessID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("detach access %d from group %d: %w", accessID, groupID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("access %d not attached to group %d: %w", accessID, groupID, ErrNotFound)
	}
	return nil
}

// AccessIDs returns the ids of accesses carried by a group
func (r *BunGroupRepository) AccessIDs(ctx context.Context, groupID int64) ([]int64, error) {
	var ids []int64
	err := r.db.NewSelect().
		Model((*models.GroupAccess)(nil)).
		Column("access_id").
		Where("group_id = ?", groupID).
		Order("access_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("list access ids for group %d: %w", groupID, err)
	}
	return ids, nil
}

// AccessesByGroup returns the accesses carried by a group, with resources
func (r *BunGroupRepository) AccessesByGroup(ctx context.Context, groupID int64) ([]models.Access, error) {
	var accesses []models.Access
	err := r.db.NewSelect().
		Model(&accesses).
		Relation("Resources").
		Join("JOIN group_accesses AS ga ON ga.access_id = a.id").
		Where("ga.group_id = ?", groupID).
		Order("a.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accesses for group %d: %w", groupID, err)
	}
	return accesses, nil
}

// GroupsByAccess returns the groups that carry an access
func (r *BunGroupRepository) GroupsByAccess(ctx context.Context, accessID int64) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.NewSelect().
		Model(&groups).
		Join("JOIN group_accesses AS ga ON ga.group_id = g.id").
		Where("ga.access_id = ?", accessID).
		Order("g.id").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list groups for access %d: %w", accessID, err)
	}
	return groups, nil
}
