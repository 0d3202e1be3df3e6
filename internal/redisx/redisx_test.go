package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	return NewCache(rdb, zap.NewNop()), mr
}

type payload struct {
	IDs []int64 `json:"ids"`
}

func TestCache_GetJSON_Miss(t *testing.T) {
	cache, _ := setupCache(t)
	ctx := context.Background()

	var out payload
	hit, err := cache.GetJSON(ctx, "absent", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_SetThenGet(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	in := payload{IDs: []int64{3, 1, 2}}
	require.NoError(t, cache.SetJSON(ctx, "groups", in, time.Minute))

	var out payload
	hit, err := cache.GetJSON(ctx, "groups", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, in, out)

	// TTL was applied.
	mr.FastForward(2 * time.Minute)
	hit, err = cache.GetJSON(ctx, "groups", &out)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_GetJSON_DecodeErrorSelfHeals(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("broken", "{not json"))

	var out payload
	hit, err := cache.GetJSON(ctx, "broken", &out)
	require.NoError(t, err)
	assert.False(t, hit, "undecodable entry must be reported as a miss")
	assert.False(t, mr.Exists("broken"), "undecodable entry must be deleted")
}

func TestCache_Delete(t *testing.T) {
	cache, mr := setupCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetJSON(ctx, "a", payload{IDs: []int64{1}}, time.Minute))
	require.NoError(t, cache.SetJSON(ctx, "b", payload{IDs: []int64{2}}, time.Minute))

	require.NoError(t, cache.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))

	// Deleting missing keys is fine.
	require.NoError(t, cache.Delete(ctx, "a"))
	require.NoError(t, cache.Delete(ctx))
}
