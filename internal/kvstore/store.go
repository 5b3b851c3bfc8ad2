// Package kvstore implements the store core (spec §4.3, §4.4): the orchestrator
// that couples the LRU map to the write-ahead log under a single coarse
// mutex, plus the background TTL sweeper and compactor tied to its
// lifecycle.
package kvstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/kvstore/internal/errs"
	"github.com/p-blackswan/kvstore/internal/lru"
	"github.com/p-blackswan/kvstore/internal/wal"
)

// DefaultNamespace is the label used for the empty/default namespace in
// operations that report namespace identity externally (spec §6).
const DefaultNamespace = "default"

// Config is the core's configuration surface (spec §6).
type Config struct {
	Capacity           int
	LogFile            string
	CompactionInterval time.Duration
	MaxLogSize         int
	CleanupInterval    time.Duration
}

type namespaceCounters struct {
	hits   atomic.Int64
	misses atomic.Int64
}

// Store orchestrates the LRU map (C1) and the WAL (C2) behind a single
// mutex, and owns the background sweeper and compactor (C4).
type Store struct {
	mu  sync.Mutex
	lru *lru.Map
	log *wal.WAL
	cfg Config

	logger zerolog.Logger

	hits, misses, evictions, logSize int64
	startTime                        time.Time
	lastCompaction                   time.Time

	nsMu sync.Mutex
	ns   map[string]*namespaceCounters

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open constructs a Store, opens its WAL, and replays it to rebuild the
// in-memory map (spec §4.2 Recovery). It does not start background tasks;
// call Start for that.
func Open(cfg Config, logger zerolog.Logger) (*Store, error) {
	log, err := wal.Open(cfg.LogFile)
	if err != nil {
		return nil, errs.NewWALRecover(err)
	}

	s := &Store{
		lru:       lru.New(cfg.Capacity),
		log:       log,
		cfg:       cfg,
		logger:    logger.With().Str("component", "kvstore").Logger(),
		startTime: time.Now(),
		ns:        make(map[string]*namespaceCounters),
	}

	if err := s.recover(); err != nil {
		log.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) recover() error {
	records, err := wal.ReadAll(s.log.Path(), func(err error) {
		s.logger.Error().Err(err).Msg("skipping malformed WAL record during recovery")
	})
	if err != nil {
		return errs.NewWALRecover(err)
	}

	now := time.Now()
	replayed := 0
	// Replay into a map large enough to hold every record, so capacity is
	// ignored during replay.
	replay := lru.New(len(records))
	for _, r := range records {
		key := lru.Key{Namespace: r.Namespace, Name: r.Key}
		switch r.Action {
		case wal.ActionSet:
			var expiresAt time.Time
			if r.TTLSeconds > 0 {
				expiresAt = time.Unix(int64(r.Timestamp), 0).Add(time.Duration(r.TTLSeconds) * time.Second)
				if !expiresAt.After(now) {
					// Already expired by the time we're replaying; skip the insert.
					continue
				}
			}
			replay.Put(key, r.Value, expiresAt)
		case wal.ActionDelete:
			replay.Delete(key)
		default:
			s.logger.Warn().Str("action", string(r.Action)).Msg("unknown WAL action during recovery")
		}
		replayed++
	}

	// Trim from the tail now: re-insert tail-first, so once the store's map
	// is at capacity each Put evicts the least recently set entry.
	entries := replay.Snapshot(now)
	for i := len(entries) - 1; i >= 0; i-- {
		s.lru.Put(entries[i].Key, entries[i].Value, entries[i].ExpiresAt)
	}
	s.lru.Trim()

	s.logSize = int64(len(records))
	s.logger.Info().Int("records", len(records)).Int("replayed", replayed).Int("size_after_trim", s.lru.Size()).Msg("WAL recovery complete")
	return nil
}

func (s *Store) namespaceCounter(ns string) *namespaceCounters {
	s.nsMu.Lock()
	defer s.nsMu.Unlock()
	c, ok := s.ns[ns]
	if !ok {
		c = &namespaceCounters{}
		s.ns[ns] = c
	}
	return c
}

// SetResult is the outcome of a successful Set.
type SetResult struct {
	Key       string
	Namespace string
	Evicted   bool
}

// Set validates and stores (ns, key) → value with an optional TTL in
// seconds. A nil ttl means no expiration; a zero or negative ttl is rejected.
func (s *Store) Set(ns, key, value string, ttlSeconds *int64) (SetResult, error) {
	if key == "" {
		return SetResult{}, errs.NewEmptyKey("set")
	}
	if ttlSeconds != nil && *ttlSeconds <= 0 {
		return SetResult{}, errs.NewInvalidTTL(key, *ttlSeconds)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var expiresAt time.Time
	record := wal.Record{
		Timestamp: float64(now.Unix()),
		Action:    wal.ActionSet,
		Key:       key,
		Namespace: ns,
		Value:     value,
	}
	if ttlSeconds != nil {
		expiresAt = now.Add(time.Duration(*ttlSeconds) * time.Second)
		record.TTLSeconds = *ttlSeconds
	}

	if err := s.log.Append(record); err != nil {
		return SetResult{}, errs.NewWALAppend(err)
	}

	_, _, evicted := s.lru.Put(lru.Key{Namespace: ns, Name: key}, value, expiresAt)
	if evicted {
		s.evictions++
	}
	s.logSize++
	s.namespaceCounter(ns)

	return SetResult{Key: key, Namespace: ns, Evicted: evicted}, nil
}

// Get looks up (ns, key). ok is false if the key is absent or expired; in
// the expired case the entry is removed from the map before returning.
func (s *Store) Get(ns, key string) (value string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counters := s.namespaceCounter(ns)

	v, expired, found := s.lru.Get(lru.Key{Namespace: ns, Name: key})
	if !found {
		atomic.AddInt64(&s.misses, 1)
		counters.misses.Add(1)
		return "", false
	}
	if expired {
		atomic.AddInt64(&s.misses, 1)
		counters.misses.Add(1)
		s.lru.Delete(lru.Key{Namespace: ns, Name: key})
		return "", false
	}

	atomic.AddInt64(&s.hits, 1)
	counters.hits.Add(1)
	return v, true
}

// Delete removes (ns, key). The WAL DELETE record is appended unconditionally,
// even if the key turns out to be absent (spec §4.3, preserved per §9 design
// note (c) to keep the record stream/in-memory-state equivalence simple
// under replay).
func (s *Store) Delete(ns, key string) (existed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.log.Append(wal.Record{
		Timestamp: float64(time.Now().Unix()),
		Action:    wal.ActionDelete,
		Key:       key,
		Namespace: ns,
	}); err != nil {
		return false, errs.NewWALAppend(err)
	}

	existed = s.lru.Delete(lru.Key{Namespace: ns, Name: key})
	if existed {
		s.logSize++
	}
	return existed, nil
}

// ListNamespaces returns every namespace represented by at least one entry in
// the map (expired entries count until swept, as in NamespaceSize). The
// default/empty namespace is reported under DefaultNamespace when it has
// entries.
func (s *Store) ListNamespaces() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	set := s.lru.Namespaces()
	out := make([]string, 0, len(set))
	for ns := range set {
		if ns == "" {
			out = append(out, DefaultNamespace)
			continue
		}
		out = append(out, ns)
	}
	return out
}

// NamespaceSize returns the number of live entries in ns (expired entries
// are counted until swept, matching LRU.Size's semantics for the whole map).
func (s *Store) NamespaceSize(ns string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.NamespaceSize(ns)
}

// ClearNamespace appends one DELETE record per entry currently in ns, then
// removes them from the map, and returns the count removed. It aborts on the
// first WAL append failure, leaving any already-appended DELETE records (and
// their corresponding map removals) in place.
func (s *Store) ClearNamespace(ns string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.lru.Keys(ns)
	removed := 0
	for _, k := range keys {
		if err := s.log.Append(wal.Record{
			Timestamp: float64(time.Now().Unix()),
			Action:    wal.ActionDelete,
			Key:       k.Name,
			Namespace: k.Namespace,
		}); err != nil {
			s.logSize += int64(removed)
			return removed, errs.NewWALAppend(err)
		}
		if s.lru.Delete(k) {
			removed++
		}
	}
	s.logSize += int64(removed)
	return removed, nil
}

// GlobalStats is a point-in-time snapshot of store-wide counters.
type GlobalStats struct {
	TotalKeys      int
	CacheHits      int64
	CacheMisses    int64
	Evictions      int64
	LogSize        int64
	LastCompaction time.Time
	StartTime      time.Time
}

// NamespaceStats is a point-in-time snapshot of one namespace's counters.
type NamespaceStats struct {
	CacheHits   int64
	CacheMisses int64
	TotalKeys   int
}

// Stats returns the global snapshot plus a per-namespace block for every
// namespace ever referenced. TotalKeys fields are always computed from the
// live LRU map, never from a running counter (spec §4.3).
func (s *Store) Stats() (GlobalStats, map[string]NamespaceStats) {
	s.mu.Lock()
	totalKeys := s.lru.Size()
	global := GlobalStats{
		TotalKeys:      totalKeys,
		CacheHits:      atomic.LoadInt64(&s.hits),
		CacheMisses:    atomic.LoadInt64(&s.misses),
		Evictions:      s.evictions,
		LogSize:        s.logSize,
		LastCompaction: s.lastCompaction,
		StartTime:      s.startTime,
	}
	s.mu.Unlock()

	s.nsMu.Lock()
	perNS := make(map[string]NamespaceStats, len(s.ns))
	for ns, c := range s.ns {
		perNS[ns] = NamespaceStats{
			CacheHits:   c.hits.Load(),
			CacheMisses: c.misses.Load(),
		}
	}
	s.nsMu.Unlock()

	for ns, stat := range perNS {
		stat.TotalKeys = s.NamespaceSize(ns)
		perNS[ns] = stat
	}

	return global, perNS
}

// CompactNow runs WAL compaction: snapshot live entries under the mutex,
// write+rename outside it, then re-acquire only to update counters (spec
// §4.2, §4.4).
func (s *Store) CompactNow() error {
	s.mu.Lock()
	now := time.Now()
	entries := s.lru.Snapshot(now)
	s.mu.Unlock()

	records := make([]wal.Record, 0, len(entries))
	for _, e := range entries {
		r := wal.Record{
			Timestamp: float64(now.Unix()),
			Action:    wal.ActionSet,
			Key:       e.Key.Name,
			Namespace: e.Key.Namespace,
			Value:     e.Value,
		}
		if !e.ExpiresAt.IsZero() {
			remaining := int64(e.ExpiresAt.Sub(now).Seconds())
			if remaining < 1 {
				remaining = 1
			}
			r.TTLSeconds = remaining
		}
		records = append(records, r)
	}

	if err := s.log.Compact(records); err != nil {
		return errs.NewWALCompact(err)
	}

	s.mu.Lock()
	s.logSize = int64(len(records))
	s.lastCompaction = time.Now()
	s.mu.Unlock()

	return nil
}

// Size returns the current total live entry count, used by the /health
// liveness surface.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Size()
}

// Healthy reports whether the store can currently serve requests: the WAL's
// file descriptor is reachable and the in-memory map is initialized. Used by
// the liveness check registered in cmd/kvstore/main.go.
func (s *Store) Healthy() error {
	s.mu.Lock()
	lruReady := s.lru != nil
	s.mu.Unlock()

	if !lruReady {
		return errs.NewInternal("health", nil)
	}
	return s.log.Healthy()
}

// Close stops background tasks (if running) and closes the WAL.
func (s *Store) Close() error {
	s.Stop()
	return s.log.Close()
}
