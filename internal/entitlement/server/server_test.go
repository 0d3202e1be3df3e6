package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun/migrate"
	"go.uber.org/zap"

	"github.com/wardenhq/warden/internal/bunx"
	"github.com/wardenhq/warden/internal/entitlement/migrations"
	"github.com/wardenhq/warden/internal/entitlement/repository"
	"github.com/wardenhq/warden/internal/entitlement/service"
	"github.com/wardenhq/warden/internal/wire"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, wire.ValidationJob) error { return nil }

// newTestServer wires the full HTTP stack over an in-memory database. No
// broker, no cache.
func newTestServer(t *testing.T) (*httptest.Server, *service.Service) {
	t.Helper()

	db, err := bunx.NewDB(":memory:", 1)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	svc := service.NewService(
		repository.NewBunUserRepository(db),
		repository.NewBunEntitlementRepository(db),
		nopPublisher{},
		nil,
		0,
		zap.NewNop(),
	)

	ts := httptest.NewServer(New(svc, zap.NewNop(), nil).Router())
	t.Cleanup(ts.Close)
	return ts, svc
}

func doJSON(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	ts, svc := newTestServer(t)
	ctx := context.Background()

	status, user := doJSON(t, http.MethodPost, ts.URL+"/admin/users", `{"username":"alice"}`)
	require.Equal(t, http.StatusCreated, status)
	uid := int64(user["id"].(float64))

	var requestID string
	t.Run("request accepted with 202", func(t *testing.T) {
		status, out := doJSON(t, http.MethodPost, ts.URL+"/request",
			`{"user_id":1,"permission_type":"group","item_id":3,"item_name":"developers"}`)
		require.Equal(t, http.StatusAccepted, status)
		assert.Equal(t, "accepted", out["status"])
		requestID = out["request_id"].(string)
		assert.NotEmpty(t, requestID)
	})

	t.Run("duplicate request is 409", func(t *testing.T) {
		status, out := doJSON(t, http.MethodPost, ts.URL+"/request",
			`{"user_id":1,"permission_type":"group","item_id":3}`)
		assert.Equal(t, http.StatusConflict, status)
		assert.Contains(t, out["detail"], "pending")
	})

	t.Run("status tracked by request id", func(t *testing.T) {
		status, out := doJSON(t, http.MethodGet, ts.URL+"/permissions/"+requestID, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "pending", out["status"])
		assert.Nil(t, out["assigned_at"])
	})

	t.Run("approval visible over HTTP", func(t *testing.T) {
		require.NoError(t, svc.ApplyValidationResult(ctx, &wire.ValidationResult{
			RequestID:      requestID,
			Approved:       true,
			UserID:         uid,
			PermissionType: wire.KindGroup,
			ItemID:         3,
		}))

		status, out := doJSON(t, http.MethodGet, ts.URL+"/permissions/"+requestID, "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "active", out["status"])
		assert.NotNil(t, out["assigned_at"])
	})

	t.Run("permissions partitioned by kind", func(t *testing.T) {
		status, out := doJSON(t, http.MethodGet, ts.URL+"/users/1/permissions", "")
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, out["groups"], 1)
		assert.Empty(t, out["accesses"])
	})

	t.Run("revoke via JSON body", func(t *testing.T) {
		status, out := doJSON(t, http.MethodDelete, ts.URL+"/users/1/permissions",
			`{"permission_type":"group","item_id":3}`)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "revoked", out["status"])

		status, _ = doJSON(t, http.MethodDelete, ts.URL+"/users/1/permissions",
			`{"permission_type":"group","item_id":3}`)
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestRequestValidationOverHTTP(t *testing.T) {
	ts, _ := newTestServer(t)

	t.Run("bad kind", func(t *testing.T) {
		status, _ := doJSON(t, http.MethodPost, ts.URL+"/request",
			`{"user_id":1,"permission_type":"role","item_id":3}`)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("missing fields", func(t *testing.T) {
		status, _ := doJSON(t, http.MethodPost, ts.URL+"/request", `{"user_id":1}`)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unknown user", func(t *testing.T) {
		status, _ := doJSON(t, http.MethodPost, ts.URL+"/request",
			`{"user_id":42,"permission_type":"group","item_id":3}`)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("unknown request id", func(t *testing.T) {
		status, _ := doJSON(t, http.MethodGet, ts.URL+"/permissions/not-a-real-id", "")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("duplicate username", func(t *testing.T) {
		status, _ := doJSON(t, http.MethodPost, ts.URL+"/admin/users", `{"username":"bob"}`)
		require.Equal(t, http.StatusCreated, status)
		status, _ = doJSON(t, http.MethodPost, ts.URL+"/admin/users", `{"username":"bob"}`)
		assert.Equal(t, http.StatusConflict, status)
	})
}
