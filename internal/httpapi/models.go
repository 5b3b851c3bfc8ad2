package httpapi

import "github.com/p-blackswan/kvstore/internal/health"

// SetRequest is the payload for POST /set.
type SetRequest struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	TTL       *int64 `json:"ttl,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// SetResponse is the response for POST /set.
type SetResponse struct {
	Status    string `json:"status"`
	Key       string `json:"key"`
	Namespace string `json:"namespace,omitempty"`
}

// GetResponse is the response for GET /get/{key}.
type GetResponse struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Namespace string `json:"namespace,omitempty"`
}

// DeleteResponse is the response for DELETE /delete/{key}.
type DeleteResponse struct {
	Status    string `json:"status"`
	Key       string `json:"key"`
	Namespace string `json:"namespace,omitempty"`
}

// ListNamespacesResponse is the response for GET /namespaces.
type ListNamespacesResponse struct {
	Namespaces []string `json:"namespaces"`
	Count      int      `json:"count"`
}

// NamespaceSizeResponse is the response for GET /namespaces/{ns}/keys.
type NamespaceSizeResponse struct {
	Namespace string `json:"namespace"`
	TotalKeys int    `json:"total_keys"`
}

// ClearNamespaceResponse is the response for DELETE /namespaces/{ns}.
type ClearNamespaceResponse struct {
	Status      string `json:"status"`
	Namespace   string `json:"namespace"`
	KeysDeleted int    `json:"keys_deleted"`
}

// NamespaceStatsDTO is one namespace's block within StatsResponse.Namespaces.
type NamespaceStatsDTO struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	TotalKeys   int   `json:"total_keys"`
}

// StatsResponse is the response for GET /stats.
type StatsResponse struct {
	TotalKeys      int                          `json:"total_keys"`
	CacheHits      int64                        `json:"cache_hits"`
	CacheMisses    int64                        `json:"cache_misses"`
	Evictions      int64                        `json:"evictions"`
	LogSize        int64                        `json:"log_size"`
	LastCompaction string                       `json:"last_compaction"`
	UptimeSeconds  float64                      `json:"uptime_seconds"`
	Namespaces     map[string]NamespaceStatsDTO `json:"namespaces"`
	Namespace      string                       `json:"namespace,omitempty"`
	NamespaceStats *NamespaceStatsDTO           `json:"namespace_stats,omitempty"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	StoreSize int    `json:"store_size"`
}

// ReadyResponse is the response for GET /ready.
type ReadyResponse struct {
	Status string                   `json:"status"`
	Checks map[string]health.Status `json:"checks"`
}

// CompactResponse is the response for POST /compact.
type CompactResponse struct {
	Status string `json:"status"`
}

// PerformanceResponse is the response for GET /performance.
type PerformanceResponse struct {
	OperationsPerSecond float64 `json:"operations_per_second"`
	AvgLatencyMs        float64 `json:"avg_latency_ms"`
	P95LatencyMs        float64 `json:"p95_latency_ms"`
	P99LatencyMs        float64 `json:"p99_latency_ms"`
	ErrorRate           float64 `json:"error_rate"`
	TotalOperations     int64   `json:"total_operations"`
}

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
