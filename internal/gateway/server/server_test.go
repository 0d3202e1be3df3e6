package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// upstream is a scripted downstream service.
func upstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return ts
}

func gateway(t *testing.T, catalogURL, entitlementURL string) *httptest.Server {
	t.Helper()
	srv := New(catalogURL, entitlementURL, time.Second, nil, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestPassthrough(t *testing.T) {
	catalog := upstream(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/groups/3":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id":3,"name":"developers"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"not found"}`))
		}
	})
	gw := gateway(t, catalog.URL, "http://127.0.0.1:1")

	t.Run("status and body copied", func(t *testing.T) {
		status, body := get(t, gw.URL+"/groups/3")
		assert.Equal(t, http.StatusOK, status)
		assert.JSONEq(t, `{"id":3,"name":"developers"}`, string(body))
	})

	t.Run("upstream errors keep their status", func(t *testing.T) {
		status, body := get(t, gw.URL+"/groups/99")
		assert.Equal(t, http.StatusNotFound, status)
		assert.JSONEq(t, `{"detail":"not found"}`, string(body))
	})

	t.Run("unreachable upstream maps to 503", func(t *testing.T) {
		status, body := get(t, gw.URL+"/permissions/some-id")
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Contains(t, string(body), "upstream unavailable")
	})
}

func TestRequestForwarding(t *testing.T) {
	var received struct {
		path string
		body []byte
	}
	entitlement := upstream(t, func(w http.ResponseWriter, r *http.Request) {
		received.path = r.URL.Path
		received.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"status":"accepted","request_id":"abc"}`))
	})
	gw := gateway(t, "http://127.0.0.1:1", entitlement.URL)

	resp, err := http.Post(gw.URL+"/request", "application/json",
		strings.NewReader(`{"user_id":1,"permission_type":"group","item_id":2}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "/request", received.path)
	assert.JSONEq(t, `{"user_id":1,"permission_type":"group","item_id":2}`, string(received.body))
}

func TestRevoke_QueryToBody(t *testing.T) {
	var received struct {
		method string
		path   string
		body   []byte
	}
	entitlement := upstream(t, func(w http.ResponseWriter, r *http.Request) {
		received.method = r.Method
		received.path = r.URL.Path
		received.body, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"status":"revoked"}`))
	})
	gw := gateway(t, "http://127.0.0.1:1", entitlement.URL)
	client := &http.Client{}

	t.Run("translates parameters", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete,
			gw.URL+"/users/7/permissions?permission_type=group&item_id=2", nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, http.MethodDelete, received.method)
		assert.Equal(t, "/users/7/permissions", received.path)
		assert.JSONEq(t, `{"permission_type":"group","item_id":2}`, string(received.body))
	})

	t.Run("missing parameters rejected locally", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete, gw.URL+"/users/7/permissions", nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("non-numeric item_id rejected locally", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodDelete,
			gw.URL+"/users/7/permissions?permission_type=group&item_id=two", nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRequiredAccess_Aggregation(t *testing.T) {
	catalog := upstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/resources/1":
			w.Write([]byte(`{"id":1,"name":"db-main","type":"database"}`))
		case "/accesses":
			w.Write([]byte(`[
				{"id":10,"name":"backend","resources":[{"id":1},{"id":2}]},
				{"id":11,"name":"reporting","resources":[{"id":2}]},
				{"id":12,"name":"admin","resources":[{"id":1}]}
			]`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"not found"}`))
		}
	})
	gw := gateway(t, catalog.URL, "http://127.0.0.1:1")

	t.Run("filters accesses by resource", func(t *testing.T) {
		status, body := get(t, gw.URL+"/resources/1/required-access")
		require.Equal(t, http.StatusOK, status)

		var out struct {
			ResourceID int64 `json:"resource_id"`
			Accesses   []struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			} `json:"accesses"`
		}
		require.NoError(t, json.Unmarshal(body, &out))
		assert.Equal(t, int64(1), out.ResourceID)
		require.Len(t, out.Accesses, 2)
		assert.Equal(t, "backend", out.Accesses[0].Name)
		assert.Equal(t, "admin", out.Accesses[1].Name)
	})

	t.Run("unknown resource relays 404", func(t *testing.T) {
		status, _ := get(t, gw.URL+"/resources/99/required-access")
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("catalog down maps to 503", func(t *testing.T) {
		down := gateway(t, "http://127.0.0.1:1", "http://127.0.0.1:1")
		status, _ := get(t, down.URL+"/resources/1/required-access")
		assert.Equal(t, http.StatusServiceUnavailable, status)
	})
}

func TestReady(t *testing.T) {
	healthy := upstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.Write([]byte(`{"status":"ok"}`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	t.Run("both upstreams healthy", func(t *testing.T) {
		gw := gateway(t, healthy.URL, healthy.URL)
		status, body := get(t, gw.URL+"/health/ready")
		assert.Equal(t, http.StatusOK, status)
		assert.Contains(t, string(body), "ready")
	})

	t.Run("one upstream down", func(t *testing.T) {
		gw := gateway(t, healthy.URL, "http://127.0.0.1:1")
		status, body := get(t, gw.URL+"/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Contains(t, string(body), "entitlement unavailable")
	})
}

// Routing sanity for the paths that carry URL parameters through chi.
func TestRouterParams(t *testing.T) {
	r := New("http://c", "http://e", time.Second, nil, nil).Router()
	rctx := chi.NewRouteContext()
	assert.True(t, r.Match(rctx, http.MethodGet, "/users/5/current_active_groups"))
	assert.True(t, r.Match(rctx, http.MethodGet, "/accesses/9/groups"))
	assert.True(t, r.Match(rctx, http.MethodDelete, "/users/5/permissions"))
	assert.False(t, r.Match(rctx, http.MethodPut, "/groups/1"))
}
