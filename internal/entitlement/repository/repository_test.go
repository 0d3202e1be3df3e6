package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/wardenhq/warden/internal/bunx"
	"github.com/wardenhq/warden/internal/entitlement/migrations"
	"github.com/wardenhq/warden/internal/entitlement/models"
	"github.com/wardenhq/warden/internal/wire"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	db, err := bunx.NewDB(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}

func createTestUser(t *testing.T, db *bun.DB, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username}
	require.NoError(t, NewBunUserRepository(db).Create(context.Background(), user))
	return user
}

func TestBunUserRepository(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunUserRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "alice")

	t.Run("get", func(t *testing.T) {
		fetched, err := repo.GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", fetched.Username)
	})

	t.Run("duplicate username refused", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Username: "alice"})
		assert.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := repo.GetByID(ctx, 9999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		users, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, users, 1)
	})
}

func TestBunEntitlementRepository_Finders(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunEntitlementRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "bob")
	name := "developers"

	ent := &models.UserEntitlement{
		UserID:         user.ID,
		PermissionType: wire.KindGroup,
		ItemID:         1,
		ItemName:       &name,
		Status:         models.StatusPending,
		RequestID:      uuid.NewString(),
	}
	require.NoError(t, repo.Create(ctx, ent))

	t.Run("find by request id", func(t *testing.T) {
		fetched, err := repo.FindByRequestID(ctx, ent.RequestID)
		require.NoError(t, err)
		assert.Equal(t, ent.ID, fetched.ID)

		_, err = repo.FindByRequestID(ctx, uuid.NewString())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("find by triple", func(t *testing.T) {
		fetched, err := repo.FindByTriple(ctx, user.ID, wire.KindGroup, 1)
		require.NoError(t, err)
		assert.Equal(t, ent.RequestID, fetched.RequestID)

		_, err = repo.FindByTriple(ctx, user.ID, wire.KindAccess, 1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("find by triple with status", func(t *testing.T) {
		_, err := repo.FindByTripleWithStatus(ctx, user.ID, wire.KindGroup, 1,
			models.StatusActive, models.StatusPending)
		require.NoError(t, err)

		_, err = repo.FindByTripleWithStatus(ctx, user.ID, wire.KindGroup, 1, models.StatusActive)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("update transitions status", func(t *testing.T) {
		now := time.Now().UTC()
		ent.Status = models.StatusActive
		ent.AssignedAt = &now
		require.NoError(t, repo.Update(ctx, ent))

		fetched, err := repo.FindByRequestID(ctx, ent.RequestID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, fetched.Status)
		require.NotNil(t, fetched.AssignedAt)
		assert.WithinDuration(t, now, *fetched.AssignedAt, time.Second)
	})

	t.Run("active group entitlements", func(t *testing.T) {
		active, err := repo.ActiveGroupEntitlements(ctx, user.ID)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, int64(1), active[0].ItemID)
	})

	t.Run("list by user", func(t *testing.T) {
		other := &models.UserEntitlement{
			UserID:         user.ID,
			PermissionType: wire.KindAccess,
			ItemID:         7,
			Status:         models.StatusPending,
			RequestID:      uuid.NewString(),
		}
		require.NoError(t, repo.Create(ctx, other))

		ents, err := repo.ListByUser(ctx, user.ID)
		require.NoError(t, err)
		assert.Len(t, ents, 2)
	})
}

func TestBunEntitlementRepository_TripleUniqueness(t *testing.T) {
	db := setupTestDB(t)
	repo := NewBunEntitlementRepository(db)
	ctx := context.Background()

	user := createTestUser(t, db, "carol")

	first := &models.UserEntitlement{
		UserID:         user.ID,
		PermissionType: wire.KindGroup,
		ItemID:         2,
		Status:         models.StatusPending,
		RequestID:      uuid.NewString(),
	}
	require.NoError(t, repo.Create(ctx, first))

	// The unique index is the race safety net under the service's
	// find-then-write.
	dup := &models.UserEntitlement{
		UserID:         user.ID,
		PermissionType: wire.KindGroup,
		ItemID:         2,
		Status:         models.StatusPending,
		RequestID:      uuid.NewString(),
	}
	assert.Error(t, repo.Create(ctx, dup))
}
