package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/kvstore/internal/errs"
	"github.com/p-blackswan/kvstore/internal/health"
	"github.com/p-blackswan/kvstore/internal/kvstore"
	"github.com/p-blackswan/kvstore/internal/metrics"
	"github.com/p-blackswan/kvstore/internal/perf"
)

// Handlers holds the dependencies for the store's HTTP handlers.
type Handlers struct {
	store   *kvstore.Store
	checker *health.Checker
	metrics *metrics.Metrics
	perf    *perf.Tracker
	logger  zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(store *kvstore.Store, checker *health.Checker, metricsCollector *metrics.Metrics, tracker *perf.Tracker, logger zerolog.Logger) *Handlers {
	return &Handlers{
		store:   store,
		checker: checker,
		metrics: metricsCollector,
		perf:    tracker,
		logger:  logger.With().Str("component", "httpapi").Logger(),
	}
}

// resolveNamespace implements the precedence rule from spec §6: a query
// string ns wins over a body namespace field; absent both, the default
// (empty) namespace applies.
func resolveNamespace(c *fiber.Ctx, bodyNamespace string) string {
	if q := c.Query("ns"); q != "" {
		return q
	}
	return bodyNamespace
}

func (h *Handlers) record(operation string, start time.Time, isErr bool) {
	d := time.Since(start)
	if h.perf != nil {
		h.perf.Record(d, isErr)
	}
	if h.metrics != nil {
		h.metrics.ObserveDuration(operation, d.Seconds())
	}
}

func (h *Handlers) syncGauges() {
	if h.metrics == nil {
		return
	}
	global, _ := h.store.Stats()
	h.metrics.SetTotalKeys(float64(global.TotalKeys))
	h.metrics.SetLogSize(float64(global.LogSize))
}

// Set handles POST /set.
func (h *Handlers) Set(c *fiber.Ctx) error {
	start := time.Now()

	var req SetRequest
	if err := c.BodyParser(&req); err != nil {
		h.record("set", start, true)
		return problemResponse(c, fiber.StatusBadRequest, "invalid_body", "Bad Request", "invalid request body: "+err.Error())
	}

	ns := resolveNamespace(c, req.Namespace)

	result, err := h.store.Set(ns, req.Key, req.Value, req.TTL)
	if err != nil {
		h.record("set", start, true)
		return h.errorResponse(c, err)
	}

	if h.metrics != nil && result.Evicted {
		h.metrics.RecordEviction()
	}
	h.syncGauges()
	h.record("set", start, false)

	resp := SetResponse{Status: "ok", Key: req.Key}
	if ns != "" {
		resp.Namespace = ns
	}
	return c.JSON(resp)
}

// Get handles GET /get/{key}.
func (h *Handlers) Get(c *fiber.Ctx) error {
	start := time.Now()

	key := c.Params("key")
	ns := c.Query("ns")

	value, ok := h.store.Get(ns, key)
	if !ok {
		if h.metrics != nil {
			h.metrics.RecordMiss(nsLabel(ns))
		}
		h.record("get", start, true)
		return h.errorResponse(c, errs.NewNotFound(ns, key))
	}

	if h.metrics != nil {
		h.metrics.RecordHit(nsLabel(ns))
	}
	h.record("get", start, false)

	resp := GetResponse{Key: key, Value: value}
	if ns != "" {
		resp.Namespace = ns
	}
	return c.JSON(resp)
}

// Delete handles DELETE /delete/{key}.
func (h *Handlers) Delete(c *fiber.Ctx) error {
	start := time.Now()

	key := c.Params("key")
	ns := c.Query("ns")

	existed, err := h.store.Delete(ns, key)
	if err != nil {
		h.record("delete", start, true)
		return h.errorResponse(c, err)
	}
	if !existed {
		h.record("delete", start, true)
		return h.errorResponse(c, errs.NewNotFound(ns, key))
	}

	h.syncGauges()
	h.record("delete", start, false)

	resp := DeleteResponse{Status: "deleted", Key: key}
	if ns != "" {
		resp.Namespace = ns
	}
	return c.JSON(resp)
}

// ListNamespaces handles GET /namespaces.
func (h *Handlers) ListNamespaces(c *fiber.Ctx) error {
	start := time.Now()
	namespaces := h.store.ListNamespaces()
	h.record("list_namespaces", start, false)
	return c.JSON(ListNamespacesResponse{Namespaces: namespaces, Count: len(namespaces)})
}

// NamespaceSize handles GET /namespaces/{ns}/keys.
func (h *Handlers) NamespaceSize(c *fiber.Ctx) error {
	start := time.Now()
	ns := c.Params("ns")
	size := h.store.NamespaceSize(storageNamespace(ns))
	h.record("namespace_size", start, false)
	return c.JSON(NamespaceSizeResponse{Namespace: ns, TotalKeys: size})
}

// ClearNamespace handles DELETE /namespaces/{ns}.
func (h *Handlers) ClearNamespace(c *fiber.Ctx) error {
	start := time.Now()
	ns := c.Params("ns")

	removed, err := h.store.ClearNamespace(storageNamespace(ns))
	if err != nil {
		h.record("clear_namespace", start, true)
		return h.errorResponse(c, err)
	}

	h.syncGauges()
	h.record("clear_namespace", start, false)

	return c.JSON(ClearNamespaceResponse{Status: "cleared", Namespace: ns, KeysDeleted: removed})
}

// Stats handles GET /stats.
func (h *Handlers) Stats(c *fiber.Ctx) error {
	start := time.Now()

	global, perNS := h.store.Stats()

	resp := StatsResponse{
		TotalKeys:     global.TotalKeys,
		CacheHits:     global.CacheHits,
		CacheMisses:   global.CacheMisses,
		Evictions:     global.Evictions,
		LogSize:       global.LogSize,
		UptimeSeconds: time.Since(global.StartTime).Seconds(),
		Namespaces:    make(map[string]NamespaceStatsDTO, len(perNS)),
	}
	if !global.LastCompaction.IsZero() {
		resp.LastCompaction = global.LastCompaction.UTC().Format(time.RFC3339)
	}
	for ns, stat := range perNS {
		resp.Namespaces[nsLabel(ns)] = NamespaceStatsDTO{
			CacheHits:   stat.CacheHits,
			CacheMisses: stat.CacheMisses,
			TotalKeys:   stat.TotalKeys,
		}
	}

	if q := c.Query("ns"); q != "" {
		resp.Namespace = q
		if stat, ok := perNS[storageNamespace(q)]; ok {
			dto := NamespaceStatsDTO{CacheHits: stat.CacheHits, CacheMisses: stat.CacheMisses, TotalKeys: stat.TotalKeys}
			resp.NamespaceStats = &dto
		} else {
			resp.NamespaceStats = &NamespaceStatsDTO{}
		}
	}

	h.record("stats", start, false)
	return c.JSON(resp)
}

// Health handles GET /health (liveness): the process is up and none of its
// registered checks (the store's WAL/map reachability) reports down.
func (h *Handlers) Health(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())
	for _, s := range results {
		if s == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{
				Status:    "unhealthy",
				StoreSize: h.store.Size(),
			})
		}
	}
	return c.JSON(HealthResponse{Status: "healthy", StoreSize: h.store.Size()})
}

// Ready handles GET /ready (readiness): whether the store is ready to take
// traffic, per the checker's registered checks.
func (h *Handlers) Ready(c *fiber.Ctx) error {
	results := h.checker.RunAll(c.Context())
	for _, s := range results {
		if s == health.StatusDown {
			return c.Status(fiber.StatusServiceUnavailable).JSON(ReadyResponse{Status: "not_ready", Checks: results})
		}
	}
	return c.JSON(ReadyResponse{Status: "ready", Checks: results})
}

// Compact handles POST /compact.
func (h *Handlers) Compact(c *fiber.Ctx) error {
	go func() {
		if err := h.store.CompactNow(); err != nil {
			h.logger.Warn().Err(err).Msg("on-demand compaction failed")
		} else if h.metrics != nil {
			h.metrics.RecordCompaction()
		}
	}()
	return c.JSON(CompactResponse{Status: "compaction_started"})
}

// Performance handles GET /performance.
func (h *Handlers) Performance(c *fiber.Ctx) error {
	if h.perf == nil {
		return c.JSON(PerformanceResponse{})
	}
	snap := h.perf.Snapshot()
	return c.JSON(PerformanceResponse{
		OperationsPerSecond: snap.OperationsPerSecond,
		AvgLatencyMs:        snap.AvgLatencyMs,
		P95LatencyMs:        snap.P95LatencyMs,
		P99LatencyMs:        snap.P99LatencyMs,
		ErrorRate:           snap.ErrorRate,
		TotalOperations:     snap.TotalOperations,
	})
}

// nsLabel maps the empty namespace onto the default label used for metric
// series, matching kvstore.DefaultNamespace's role in external responses.
func nsLabel(ns string) string {
	if ns == "" {
		return kvstore.DefaultNamespace
	}
	return ns
}

// storageNamespace maps a path-carried namespace label back to the internal
// storage key: the literal DefaultNamespace label addresses the empty
// namespace, anything else addresses itself.
func storageNamespace(ns string) string {
	if ns == kvstore.DefaultNamespace {
		return ""
	}
	return ns
}

func (h *Handlers) errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errs.IsNotFound(err):
		return problemResponse(c, fiber.StatusNotFound, "not_found", "Not Found", err.Error())
	case errs.IsValidation(err):
		return problemResponse(c, fiber.StatusBadRequest, "validation_failed", "Bad Request", err.Error())
	case errs.IsIO(err):
		return problemResponse(c, fiber.StatusInternalServerError, "io_error", "Internal Server Error", err.Error())
	default:
		h.logger.Error().Err(err).Msg("unclassified store error")
		return problemResponse(c, fiber.StatusInternalServerError, "internal_error", "Internal Server Error", "an internal error occurred")
	}
}

func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}
