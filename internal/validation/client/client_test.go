package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/cachekey"
	"github.com/wardenhq/warden/internal/redisx"
	"github.com/wardenhq/warden/internal/validation/engine"
)

func testCache(t *testing.T) (*redisx.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return redisx.NewCache(rdb, zap.NewNop()), mr
}

func TestCatalog_ConflictMatrix(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/conflicts", r.URL.Path)
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"conflicts":[{"group_id1":1,"group_id2":2},{"group_id1":2,"group_id2":1}]}`))
	}))
	defer ts.Close()

	cache, mr := testCache(t)
	c := NewCatalog(ts.URL, time.Second, cache, CatalogTTLs{}, nil)
	ctx := context.Background()

	matrix, err := c.ConflictMatrix(ctx)
	require.NoError(t, err)
	require.Len(t, matrix, 2)
	assert.Equal(t, engine.ConflictEdge{GroupID1: 1, GroupID2: 2}, matrix[0])
	assert.True(t, mr.Exists(cachekey.ConflictsMatrix))

	// Second read is a mirror hit; the catalog is not contacted again.
	matrix, err = c.ConflictMatrix(ctx)
	require.NoError(t, err)
	assert.Len(t, matrix, 2)
	assert.Equal(t, int64(1), hits.Load())
}

func TestCatalog_ConflictMatrix_OwnerFilledKeyDecodes(t *testing.T) {
	// The catalog service fills this key itself, with extra fields per edge.
	// The mirror must decode it without a fetch.
	cache, mr := testCache(t)
	require.NoError(t, mr.Set(cachekey.ConflictsMatrix,
		`[{"group_id1":4,"group_id2":5,"created_at":"2026-01-05T00:00:00Z"}]`))

	c := NewCatalog("http://127.0.0.1:1", time.Second, cache, CatalogTTLs{}, nil)
	matrix, err := c.ConflictMatrix(context.Background())
	require.NoError(t, err)
	require.Len(t, matrix, 1)
	assert.Equal(t, engine.ConflictEdge{GroupID1: 4, GroupID2: 5}, matrix[0])
}

func TestCatalog_AccessGroups(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/accesses/10/groups", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_id":10,"groups":[{"id":2,"name":"developers"},{"id":3,"name":"operators"}]}`))
	}))
	defer ts.Close()

	cache, mr := testCache(t)
	c := NewCatalog(ts.URL, time.Second, cache, CatalogTTLs{}, nil)

	groups, err := c.AccessGroups(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, int64(2), groups[0].ID)
	assert.Equal(t, "developers", groups[0].Name)
	assert.True(t, mr.Exists(cachekey.AccessGroups(10)))
}

func TestEntitlement_ActiveGroups(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/users/7/current_active_groups", r.URL.Path)
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"groups":[{"id":1,"name":"auditors"}]}`))
	}))
	defer ts.Close()

	cache, mr := testCache(t)
	c := NewEntitlement(ts.URL, time.Second, cache, 0, nil)
	ctx := context.Background()

	groups, err := c.ActiveGroups(ctx, 7)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(1), groups[0].ID)
	assert.True(t, mr.Exists(cachekey.UserActiveGroups(7)))

	_, err = c.ActiveGroups(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), hits.Load())
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"conflicts":[]}`))
	}))
	defer ts.Close()

	c := NewCatalog(ts.URL, time.Second, nil, CatalogTTLs{}, nil)
	matrix, err := c.ConflictMatrix(context.Background())
	require.NoError(t, err)
	assert.Empty(t, matrix)
	assert.Equal(t, int64(3), hits.Load())
}

func TestGetJSON_ClientErrorFailsFast(t *testing.T) {
	var hits atomic.Int64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewCatalog(ts.URL, time.Second, nil, CatalogTTLs{}, nil)
	_, err := c.AccessGroups(context.Background(), 99)
	require.Error(t, err)
	assert.Equal(t, int64(1), hits.Load())
}
