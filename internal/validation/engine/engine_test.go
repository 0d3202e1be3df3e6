package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/internal/wire"
)

type fakeCatalog struct {
	matrix       []ConflictEdge
	matrixErr    error
	accessGroups map[int64][]GroupRef
	accessErr    error
}

func (c *fakeCatalog) ConflictMatrix(context.Context) ([]ConflictEdge, error) {
	return c.matrix, c.matrixErr
}

func (c *fakeCatalog) AccessGroups(_ context.Context, accessID int64) ([]GroupRef, error) {
	if c.accessErr != nil {
		return nil, c.accessErr
	}
	return c.accessGroups[accessID], nil
}

type fakeEntitlement struct {
	held []GroupRef
	err  error
}

func (e *fakeEntitlement) ActiveGroups(context.Context, int64) ([]GroupRef, error) {
	return e.held, e.err
}

func refs(ids ...int64) []GroupRef {
	out := make([]GroupRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, GroupRef{ID: id})
	}
	return out
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name       string
		job        wire.ValidationJob
		held       []GroupRef
		matrix     []ConflictEdge
		access     map[int64][]GroupRef
		wantOK     bool
		wantReason string
	}{
		{
			name:   "no holdings approves",
			job:    wire.ValidationJob{UserID: 1, PermissionType: wire.KindGroup, ItemID: 2, RequestID: "r1"},
			matrix: []ConflictEdge{{GroupID1: 1, GroupID2: 2}, {GroupID1: 2, GroupID2: 1}},
			wantOK: true,
		},
		{
			name:       "direct group conflict rejects",
			job:        wire.ValidationJob{UserID: 1, PermissionType: wire.KindGroup, ItemID: 2, RequestID: "r2"},
			held:       refs(1),
			matrix:     []ConflictEdge{{GroupID1: 1, GroupID2: 2}, {GroupID1: 2, GroupID2: 1}},
			wantReason: "conflict: user holds group 1, requested group 2",
		},
		{
			name:   "unrelated holdings approve",
			job:    wire.ValidationJob{UserID: 1, PermissionType: wire.KindGroup, ItemID: 3, RequestID: "r3"},
			held:   refs(1),
			matrix: []ConflictEdge{{GroupID1: 1, GroupID2: 2}, {GroupID1: 2, GroupID2: 1}},
			wantOK: true,
		},
		{
			name:       "access expands to carrying groups",
			job:        wire.ValidationJob{UserID: 1, PermissionType: wire.KindAccess, ItemID: 10, RequestID: "r4"},
			held:       refs(1),
			matrix:     []ConflictEdge{{GroupID1: 1, GroupID2: 2}, {GroupID1: 2, GroupID2: 1}},
			access:     map[int64][]GroupRef{10: refs(2, 3)},
			wantReason: "conflict: user holds group 1, requested group 2",
		},
		{
			name:   "access via clean group approves",
			job:    wire.ValidationJob{UserID: 1, PermissionType: wire.KindAccess, ItemID: 10, RequestID: "r5"},
			held:   refs(1),
			matrix: []ConflictEdge{{GroupID1: 1, GroupID2: 2}, {GroupID1: 2, GroupID2: 1}},
			access: map[int64][]GroupRef{10: refs(3)},
			wantOK: true,
		},
		{
			name:       "orphan access rejects",
			job:        wire.ValidationJob{UserID: 1, PermissionType: wire.KindAccess, ItemID: 10, RequestID: "r6"},
			wantReason: "no groups found for access 10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(
				&fakeCatalog{matrix: tt.matrix, accessGroups: tt.access},
				&fakeEntitlement{held: tt.held},
				nil,
			)
			res := e.Evaluate(context.Background(), &tt.job)

			assert.Equal(t, tt.job.RequestID, res.RequestID)
			assert.Equal(t, tt.job.UserID, res.UserID)
			assert.Equal(t, tt.job.PermissionType, res.PermissionType)
			assert.Equal(t, tt.job.ItemID, res.ItemID)
			assert.Equal(t, tt.wantOK, res.Approved)
			assert.Equal(t, tt.wantReason, res.Reason)
		})
	}
}

func TestEvaluate_FetchFailuresReject(t *testing.T) {
	job := wire.ValidationJob{UserID: 1, PermissionType: wire.KindGroup, ItemID: 2, RequestID: "r7"}

	t.Run("entitlement down", func(t *testing.T) {
		e := New(&fakeCatalog{}, &fakeEntitlement{err: errors.New("connection refused")}, nil)
		res := e.Evaluate(context.Background(), &job)
		assert.False(t, res.Approved)
		assert.Contains(t, res.Reason, "error fetching data")
	})

	t.Run("catalog matrix down", func(t *testing.T) {
		e := New(
			&fakeCatalog{matrixErr: errors.New("503")},
			&fakeEntitlement{held: refs(1)},
			nil,
		)
		res := e.Evaluate(context.Background(), &job)
		assert.False(t, res.Approved)
		assert.Contains(t, res.Reason, "error fetching data")
	})

	t.Run("access expansion down", func(t *testing.T) {
		accessJob := wire.ValidationJob{UserID: 1, PermissionType: wire.KindAccess, ItemID: 10, RequestID: "r8"}
		e := New(&fakeCatalog{accessErr: errors.New("timeout")}, &fakeEntitlement{}, nil)
		res := e.Evaluate(context.Background(), &accessJob)
		assert.False(t, res.Approved)
		assert.Contains(t, res.Reason, "error fetching data")
	})
}

func TestEvaluate_SymmetryOfMatrixScan(t *testing.T) {
	// Only one direction present: the scan still finds the edge whichever
	// side the user holds.
	job := wire.ValidationJob{UserID: 1, PermissionType: wire.KindGroup, ItemID: 1, RequestID: "r9"}
	e := New(
		&fakeCatalog{matrix: []ConflictEdge{{GroupID1: 1, GroupID2: 2}}},
		&fakeEntitlement{held: refs(2)},
		nil,
	)
	res := e.Evaluate(context.Background(), &job)
	require.False(t, res.Approved)
	assert.Equal(t, "conflict: user holds group 2, requested group 1", res.Reason)
}
