// Package engine evaluates the conflict predicate for one validation job:
// approve unless a conflict edge connects a group the user already holds to a
// group the request would grant.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/wire"
)

// ConflictEdge is one direction of a conflict pair as served by the catalog.
type ConflictEdge struct {
	GroupID1 int64 `json:"group_id1"`
	GroupID2 int64 `json:"group_id2"`
}

// GroupRef identifies a group in membership lookups.
type GroupRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// CatalogReader serves the catalog projections the predicate needs.
type CatalogReader interface {
	ConflictMatrix(ctx context.Context) ([]ConflictEdge, error)
	AccessGroups(ctx context.Context, accessID int64) ([]GroupRef, error)
}

// EntitlementReader serves the subject's currently active groups.
type EntitlementReader interface {
	ActiveGroups(ctx context.Context, userID int64) ([]GroupRef, error)
}

// Engine runs the conflict predicate.
type Engine struct {
	catalog     CatalogReader
	entitlement EntitlementReader
	log         *zap.Logger
}

// New wires the engine.
func New(catalog CatalogReader, entitlement EntitlementReader, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{catalog: catalog, entitlement: entitlement, log: log}
}

// Evaluate computes the result for one job. Fetch failures never propagate:
// they yield approved=false with an "error fetching data" reason so the
// request settles instead of hanging in pending.
func (e *Engine) Evaluate(ctx context.Context, job *wire.ValidationJob) wire.ValidationResult {
	result := wire.ValidationResult{
		RequestID:      job.RequestID,
		UserID:         job.UserID,
		PermissionType: job.PermissionType,
		ItemID:         job.ItemID,
	}

	held, err := e.entitlement.ActiveGroups(ctx, job.UserID)
	if err != nil {
		result.Reason = fmt.Sprintf("error fetching data: %v", err)
		return result
	}

	target, err := e.targetGroups(ctx, job)
	if err != nil {
		result.Reason = fmt.Sprintf("error fetching data: %v", err)
		return result
	}
	if len(target) == 0 {
		// An access no group carries is an integrity signal, not a free
		// approval.
		result.Reason = fmt.Sprintf("no groups found for %s %d", job.PermissionType, job.ItemID)
		return result
	}

	if len(held) == 0 {
		result.Approved = true
		return result
	}

	matrix, err := e.catalog.ConflictMatrix(ctx)
	if err != nil {
		result.Reason = fmt.Sprintf("error fetching data: %v", err)
		return result
	}

	heldSet := make(map[int64]bool, len(held))
	for _, g := range held {
		heldSet[g.ID] = true
	}
	targetSet := make(map[int64]bool, len(target))
	for _, g := range target {
		targetSet[g] = true
	}

	// First edge hit wins; the matrix is scanned in catalog order.
	for _, edge := range matrix {
		if heldSet[edge.GroupID1] && targetSet[edge.GroupID2] {
			result.Reason = fmt.Sprintf("conflict: user holds group %d, requested group %d",
				edge.GroupID1, edge.GroupID2)
			return result
		}
		if heldSet[edge.GroupID2] && targetSet[edge.GroupID1] {
			result.Reason = fmt.Sprintf("conflict: user holds group %d, requested group %d",
				edge.GroupID2, edge.GroupID1)
			return result
		}
	}

	result.Approved = true
	return result
}

// targetGroups resolves the group set the request would effectively grant.
func (e *Engine) targetGroups(ctx context.Context, job *wire.ValidationJob) ([]int64, error) {
	switch job.PermissionType {
	case wire.KindGroup:
		return []int64{job.ItemID}, nil
	case wire.KindAccess:
		groups, err := e.catalog.AccessGroups(ctx, job.ItemID)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, 0, len(groups))
		for _, g := range groups {
			ids = append(ids, g.ID)
		}
		return ids, nil
	default:
		return nil, nil
	}
}
