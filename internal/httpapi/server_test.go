package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/kvstore/internal/health"
	"github.com/p-blackswan/kvstore/internal/kvstore"
	"github.com/p-blackswan/kvstore/internal/metrics"
	"github.com/p-blackswan/kvstore/internal/perf"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wal.log")
	store, err := kvstore.Open(kvstore.Config{
		Capacity:           10,
		LogFile:            path,
		CompactionInterval: time.Hour,
		MaxLogSize:         1000,
		CleanupInterval:    time.Hour,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	checker := health.NewChecker(zerolog.Nop())
	checker.Register("store", func(ctx context.Context) health.Status {
		if err := store.Healthy(); err != nil {
			return health.StatusDown
		}
		return health.StatusOK
	})

	s := NewServer(ServerConfig{}, store, checker, metrics.New(), perf.New(64), zerolog.Nop())
	return s
}

func testServerWithCheck(t *testing.T, status health.Status) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wal.log")
	store, err := kvstore.Open(kvstore.Config{
		Capacity:           10,
		LogFile:            path,
		CompactionInterval: time.Hour,
		MaxLogSize:         1000,
		CleanupInterval:    time.Hour,
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	checker := health.NewChecker(zerolog.Nop())
	checker.Register("dependency", func(ctx context.Context) health.Status { return status })

	return NewServer(ServerConfig{}, store, checker, metrics.New(), perf.New(64), zerolog.Nop())
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *http.Response {
	t.Helper()
	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestSetGetDelete_RoundTrip(t *testing.T) {
	s := testServer(t)

	resp := doJSON(t, s, "POST", "/set", SetRequest{Key: "a", Value: "1"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var setResp SetResponse
	decode(t, resp, &setResp)
	assert.Equal(t, "ok", setResp.Status)

	resp = doJSON(t, s, "GET", "/get/a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var getResp GetResponse
	decode(t, resp, &getResp)
	assert.Equal(t, "1", getResp.Value)

	resp = doJSON(t, s, "DELETE", "/delete/a", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, s, "GET", "/get/a", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSet_EmptyKeyReturns400(t *testing.T) {
	s := testServer(t)
	resp := doJSON(t, s, "POST", "/set", SetRequest{Key: "", Value: "v"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var problem ProblemDetail
	decode(t, resp, &problem)
	assert.Equal(t, "validation_failed", problem.Type)
}

func TestGet_Missing404(t *testing.T) {
	s := testServer(t)
	resp := doJSON(t, s, "GET", "/get/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNamespaceQueryTakesPrecedenceOverBody(t *testing.T) {
	s := testServer(t)
	resp := doJSON(t, s, "POST", "/set?ns=t1", SetRequest{Key: "k", Value: "v", Namespace: "t2"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, s, "GET", "/get/k?ns=t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doJSON(t, s, "GET", "/get/k?ns=t2", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListNamespaces(t *testing.T) {
	s := testServer(t)
	doJSON(t, s, "POST", "/set?ns=t1", SetRequest{Key: "k", Value: "v"})

	resp := doJSON(t, s, "GET", "/namespaces", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listResp ListNamespacesResponse
	decode(t, resp, &listResp)
	assert.Contains(t, listResp.Namespaces, "t1")
}

func TestNamespaceSizeAndClear(t *testing.T) {
	s := testServer(t)
	doJSON(t, s, "POST", "/set?ns=t1", SetRequest{Key: "a", Value: "1"})
	doJSON(t, s, "POST", "/set?ns=t1", SetRequest{Key: "b", Value: "2"})

	resp := doJSON(t, s, "GET", "/namespaces/t1/keys", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sizeResp NamespaceSizeResponse
	decode(t, resp, &sizeResp)
	assert.Equal(t, 2, sizeResp.TotalKeys)

	resp = doJSON(t, s, "DELETE", "/namespaces/t1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var clearResp ClearNamespaceResponse
	decode(t, resp, &clearResp)
	assert.Equal(t, 2, clearResp.KeysDeleted)
}

func TestStatsAndHealthAndPerformance(t *testing.T) {
	s := testServer(t)
	doJSON(t, s, "POST", "/set", SetRequest{Key: "a", Value: "1"})
	doJSON(t, s, "GET", "/get/a", nil)

	resp := doJSON(t, s, "GET", "/stats", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var statsResp StatsResponse
	decode(t, resp, &statsResp)
	assert.Equal(t, 1, statsResp.TotalKeys)
	assert.GreaterOrEqual(t, statsResp.CacheHits, int64(1))

	resp = doJSON(t, s, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var healthResp HealthResponse
	decode(t, resp, &healthResp)
	assert.Equal(t, "healthy", healthResp.Status)
	assert.Equal(t, 1, healthResp.StoreSize)

	resp = doJSON(t, s, "GET", "/performance", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var perfResp PerformanceResponse
	decode(t, resp, &perfResp)
	assert.GreaterOrEqual(t, perfResp.TotalOperations, int64(1))
}

func TestReady_AllChecksOK(t *testing.T) {
	s := testServerWithCheck(t, health.StatusOK)
	resp := doJSON(t, s, "GET", "/ready", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var readyResp ReadyResponse
	decode(t, resp, &readyResp)
	assert.Equal(t, "ready", readyResp.Status)
	assert.Equal(t, health.StatusOK, readyResp.Checks["dependency"])
}

func TestReady_CheckDown_Returns503(t *testing.T) {
	s := testServerWithCheck(t, health.StatusDown)
	resp := doJSON(t, s, "GET", "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var readyResp ReadyResponse
	decode(t, resp, &readyResp)
	assert.Equal(t, "not_ready", readyResp.Status)
}

func TestHealth_CheckDown_Returns503(t *testing.T) {
	s := testServerWithCheck(t, health.StatusDown)
	resp := doJSON(t, s, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	var healthResp HealthResponse
	decode(t, resp, &healthResp)
	assert.Equal(t, "unhealthy", healthResp.Status)
}

func TestCompactReturnsImmediately(t *testing.T) {
	s := testServer(t)
	resp := doJSON(t, s, "POST", "/compact", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var compactResp CompactResponse
	decode(t, resp, &compactResp)
	assert.Equal(t, "compaction_started", compactResp.Status)
}

func TestMetricsEndpointServesPrometheusText(t *testing.T) {
	s := testServer(t)
	doJSON(t, s, "POST", "/set", SetRequest{Key: "a", Value: "1"})

	req, err := http.NewRequest("GET", "/metrics", nil)
	require.NoError(t, err)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
