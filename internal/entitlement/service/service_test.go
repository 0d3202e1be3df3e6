package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/bunx"
	"github.com/wardenhq/warden/internal/cachekey"
	"github.com/wardenhq/warden/internal/entitlement/migrations"
	"github.com/wardenhq/warden/internal/entitlement/models"
	"github.com/wardenhq/warden/internal/entitlement/repository"
	"github.com/wardenhq/warden/internal/redisx"
	"github.com/wardenhq/warden/internal/wire"
)

// fakePublisher records published jobs and optionally fails.
type fakePublisher struct {
	jobs []wire.ValidationJob
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, job wire.ValidationJob) error {
	if p.err != nil {
		return p.err
	}
	p.jobs = append(p.jobs, job)
	return nil
}

type fixture struct {
	svc  *Service
	ents repository.EntitlementRepository
	pub  *fakePublisher
	mr   *miniredis.Miniredis
	user *models.User
}

func setup(t *testing.T) *fixture {
	t.Helper()

	db, err := bunx.NewDB(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	users := repository.NewBunUserRepository(db)
	ents := repository.NewBunEntitlementRepository(db)
	pub := &fakePublisher{}
	svc := NewService(users, ents, pub, redisx.NewCache(rdb, zap.NewNop()), 0, zap.NewNop())

	user := &models.User{Username: "alice"}
	require.NoError(t, svc.CreateUser(ctx, user))

	return &fixture{svc: svc, ents: ents, pub: pub, mr: mr, user: user}
}

func result(f *fixture, requestID string, kind string, itemID int64, approved bool) *wire.ValidationResult {
	return &wire.ValidationResult{
		UserID:         f.user.ID,
		PermissionType: kind,
		ItemID:         itemID,
		RequestID:      requestID,
		Approved:       approved,
		Reason:         "",
	}
}

func TestCreateRequest(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	name := "developers"

	t.Run("accepts and publishes", func(t *testing.T) {
		requestID, err := f.svc.CreateRequest(ctx, f.user.ID, wire.KindGroup, 1, &name)
		require.NoError(t, err)
		assert.NotEmpty(t, requestID)

		ent, err := f.svc.GetByRequestID(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusPending, ent.Status)
		assert.Nil(t, ent.AssignedAt)

		require.Len(t, f.pub.jobs, 1)
		assert.Equal(t, wire.ValidationJob{
			UserID:         f.user.ID,
			PermissionType: wire.KindGroup,
			ItemID:         1,
			RequestID:      requestID,
		}, f.pub.jobs[0])
	})

	t.Run("duplicate while pending refused", func(t *testing.T) {
		_, err := f.svc.CreateRequest(ctx, f.user.ID, wire.KindGroup, 1, &name)
		assert.ErrorIs(t, err, ErrRequestPending)
	})

	t.Run("invalid kind refused", func(t *testing.T) {
		_, err := f.svc.CreateRequest(ctx, f.user.ID, "role", 1, nil)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("unknown user refused", func(t *testing.T) {
		_, err := f.svc.CreateRequest(ctx, 9999, wire.KindGroup, 1, nil)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestCreateRequest_ReusesSettledRow(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.CreateRequest(ctx, f.user.ID, wire.KindGroup, 3, nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyValidationResult(ctx, result(f, first, wire.KindGroup, 3, false)))

	// Re-requesting after a rejection keeps one row per triple and issues a
	// fresh request id.
	second, err := f.svc.CreateRequest(ctx, f.user.ID, wire.KindGroup, 3, nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	_, err = f.svc.GetByRequestID(ctx, first)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	ent, err := f.svc.GetByRequestID(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, ent.Status)
	assert.Nil(t, ent.AssignedAt)

	ents, err := f.svc.GetPermissions(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, ents, 1)

	// Active entitlements block re-requests just like pending ones.
	require.NoError(t, f.svc.ApplyValidationResult(ctx, result(f, second, wire.KindGroup, 3, true)))
	_, err = f.svc.CreateRequest(ctx, f.user.ID, wire.KindGroup, 3, nil)
	assert.ErrorIs(t, err, ErrRequestPending)
}

func TestCreateRequest_PublishFailureKeepsPending(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.pub.err = errors.New("broker down")

	requestID, err := f.svc.CreateRequest(ctx, f.user.ID, wire.KindAccess, 5, nil)
	require.NoError(t, err)

	ent, err := f.svc.GetByRequestID(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, ent.Status)
}

func TestApplyValidationResult(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	requestID, err := f.svc.CreateRequest(ctx, f.user.ID, wire.KindGroup, 1, nil)
	require.NoError(t, err)

	t.Run("identity mismatch refused", func(t *testing.T) {
		bad := result(f, requestID, wire.KindGroup, 2, true)
		assert.ErrorIs(t, f.svc.ApplyValidationResult(ctx, bad), ErrResultMismatch)
	})

	t.Run("unknown request id", func(t *testing.T) {
		err := f.svc.ApplyValidationResult(ctx, result(f, "no-such-id", wire.KindGroup, 1, true))
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("approved activates", func(t *testing.T) {
		require.NoError(t, f.svc.ApplyValidationResult(ctx, result(f, requestID, wire.KindGroup, 1, true)))

		ent, err := f.svc.GetByRequestID(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, ent.Status)
		require.NotNil(t, ent.AssignedAt)
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		ent, err := f.svc.GetByRequestID(ctx, requestID)
		require.NoError(t, err)
		stamped := *ent.AssignedAt

		// A contradictory redelivery must not flip the settled row.
		require.NoError(t, f.svc.ApplyValidationResult(ctx, result(f, requestID, wire.KindGroup, 1, false)))

		ent, err = f.svc.GetByRequestID(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusActive, ent.Status)
		assert.Equal(t, stamped, *ent.AssignedAt)
	})
}

func TestApplyValidationResult_Rejection(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	requestID, err := f.svc.CreateRequest(ctx, f.user.ID, wire.KindGroup, 2, nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyValidationResult(ctx, result(f, requestID, wire.KindGroup, 2, false)))

	ent, err := f.svc.GetByRequestID(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, ent.Status)
	assert.Nil(t, ent.AssignedAt)
}

func TestRevoke(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	name := "developers"

	requestID, err := f.svc.CreateRequest(ctx, f.user.ID, wire.KindGroup, 1, &name)
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyValidationResult(ctx, result(f, requestID, wire.KindGroup, 1, true)))

	// Warm the projection cache so revocation has something to drop.
	groups, err := f.svc.CurrentActiveGroups(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.True(t, f.mr.Exists(cachekey.UserActiveGroups(f.user.ID)))

	t.Run("active becomes revoked", func(t *testing.T) {
		require.NoError(t, f.svc.Revoke(ctx, f.user.ID, wire.KindGroup, 1))

		ent, err := f.svc.GetByRequestID(ctx, requestID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRevoked, ent.Status)

		assert.False(t, f.mr.Exists(cachekey.UserActiveGroups(f.user.ID)))

		groups, err := f.svc.CurrentActiveGroups(ctx, f.user.ID)
		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("second revoke fails", func(t *testing.T) {
		assert.ErrorIs(t, f.svc.Revoke(ctx, f.user.ID, wire.KindGroup, 1), repository.ErrNotFound)
	})

	t.Run("pending can be revoked", func(t *testing.T) {
		_, err := f.svc.CreateRequest(ctx, f.user.ID, wire.KindAccess, 9, nil)
		require.NoError(t, err)
		require.NoError(t, f.svc.Revoke(ctx, f.user.ID, wire.KindAccess, 9))
	})
}

func TestCurrentActiveGroups_ReadThrough(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	name := "auditors"

	requestID, err := f.svc.CreateRequest(ctx, f.user.ID, wire.KindGroup, 4, &name)
	require.NoError(t, err)
	require.NoError(t, f.svc.ApplyValidationResult(ctx, result(f, requestID, wire.KindGroup, 4, true)))
	// Result application drops the key, so the first read misses.
	require.False(t, f.mr.Exists(cachekey.UserActiveGroups(f.user.ID)))

	groups, err := f.svc.CurrentActiveGroups(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(4), groups[0].ID)
	require.NotNil(t, groups[0].Name)
	assert.Equal(t, name, *groups[0].Name)

	key := cachekey.UserActiveGroups(f.user.ID)
	require.True(t, f.mr.Exists(key))
	ttl := f.mr.TTL(key)
	assert.InDelta(t, (10 * time.Minute).Seconds(), ttl.Seconds(), 1)

	// Second read is served from the cache.
	groups, err = f.svc.CurrentActiveGroups(ctx, f.user.ID)
	require.NoError(t, err)
	assert.Len(t, groups, 1)
}
