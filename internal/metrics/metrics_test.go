package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	m := New()
	m.SetTotalKeys(3)
	m.RecordHit("default")
	m.RecordMiss("default")
	m.RecordEviction()
	m.SetLogSize(7)
	m.RecordCompaction()
	m.ObserveDuration("get", 0.001)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "kvstore_total_keys 3")
	assert.Contains(t, body, `kvstore_cache_hits_total{namespace="default"} 1`)
	assert.Contains(t, body, `kvstore_cache_misses_total{namespace="default"} 1`)
	assert.Contains(t, body, "kvstore_evictions_total 1")
	assert.Contains(t, body, "kvstore_wal_records 7")
	assert.Contains(t, body, "kvstore_compactions_total 1")
}
