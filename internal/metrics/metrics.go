// Package metrics provides Prometheus metrics for the key-value store.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the store.
type Metrics struct {
	TotalKeys   prometheus.Gauge
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec
	Evictions   prometheus.Counter
	LogSize     prometheus.Gauge
	Compactions prometheus.Counter
	OpDuration  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TotalKeys: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kvstore_total_keys",
				Help: "Current number of live keys across all namespaces.",
			},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvstore_cache_hits_total",
				Help: "Total GET operations that found a live key, by namespace.",
			},
			[]string{"namespace"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kvstore_cache_misses_total",
				Help: "Total GET operations that found no live key, by namespace.",
			},
			[]string{"namespace"},
		),
		Evictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kvstore_evictions_total",
				Help: "Total entries evicted to satisfy the store capacity bound.",
			},
		),
		LogSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "kvstore_wal_records",
				Help: "Current number of records in the write-ahead log.",
			},
		),
		Compactions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "kvstore_compactions_total",
				Help: "Total write-ahead log compactions performed.",
			},
		),
		OpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kvstore_operation_duration_seconds",
				Help:    "Operation processing duration by operation name.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.TotalKeys,
		m.CacheHits,
		m.CacheMisses,
		m.Evictions,
		m.LogSize,
		m.Compactions,
		m.OpDuration,
	)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHit increments the cache-hit counter for ns.
func (m *Metrics) RecordHit(ns string) {
	m.CacheHits.WithLabelValues(ns).Inc()
}

// RecordMiss increments the cache-miss counter for ns.
func (m *Metrics) RecordMiss(ns string) {
	m.CacheMisses.WithLabelValues(ns).Inc()
}

// RecordEviction increments the eviction counter.
func (m *Metrics) RecordEviction() {
	m.Evictions.Inc()
}

// RecordCompaction increments the compaction counter.
func (m *Metrics) RecordCompaction() {
	m.Compactions.Inc()
}

// ObserveDuration records an operation's processing duration.
func (m *Metrics) ObserveDuration(operation string, seconds float64) {
	m.OpDuration.WithLabelValues(operation).Observe(seconds)
}

// SetTotalKeys sets the current live-key gauge.
func (m *Metrics) SetTotalKeys(count float64) {
	m.TotalKeys.Set(count)
}

// SetLogSize sets the current WAL record-count gauge.
func (m *Metrics) SetLogSize(count float64) {
	m.LogSize.Set(count)
}
