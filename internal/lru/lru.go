// Package lru implements a namespace-aware, TTL-aware LRU map with O(1)
// get, put, delete, and eviction.
//
// A qualified key is the pair (namespace, key); two entries that share a
// key but differ in namespace are independent. Recency is tracked with a
// doubly linked list: the head end holds the most-recently-used entry, the
// tail end holds the eviction candidate.
package lru

import (
	"time"

	timecache "github.com/agilira/go-timecache"
)

// Key identifies an entry by namespace and key name. The zero value
// Namespace is the default namespace.
type Key struct {
	Namespace string
	Name      string
}

// entry is a doubly linked list node holding a value with optional
// expiration. expiresAt.IsZero() means the entry never expires.
type entry struct {
	key       Key
	value     string
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func (e *entry) isExpired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Map is a namespace-aware, TTL-aware LRU map. It is not safe for
// concurrent use; callers (the store) serialize access externally.
type Map struct {
	capacity int
	items    map[Key]*entry
	head     *entry // sentinel, most-recently-used side
	tail     *entry // sentinel, least-recently-used side
	now      func() time.Time
}

// New creates a Map with the given capacity. Capacity 0 disables caching:
// Put of a new key stores nothing and reports no eviction.
func New(capacity int) *Map {
	head := &entry{}
	tail := &entry{}
	head.next = tail
	tail.prev = head

	return &Map{
		capacity: capacity,
		items:    make(map[Key]*entry),
		head:     head,
		tail:     tail,
		now:      cachedNow,
	}
}

// cachedNow adapts go-timecache's nanosecond clock to time.Time, avoiding a
// time.Now() syscall on every Get/Put in the hot path.
func cachedNow() time.Time {
	return time.Unix(0, timecache.CachedTimeNano())
}

// Capacity returns the configured capacity.
func (m *Map) Capacity() int {
	return m.capacity
}

// Get looks up a qualified key. ok is false if the key is absent. If ok is
// true and expired is true, the entry's TTL has passed; it is not touched
// and the caller is responsible for removing it. If ok is true and expired
// is false, the entry is moved to the head of the recency list.
func (m *Map) Get(key Key) (value string, expired bool, ok bool) {
	e, found := m.items[key]
	if !found {
		return "", false, false
	}

	if e.isExpired(m.now()) {
		return e.value, true, true
	}

	m.moveToFront(e)
	return e.value, false, true
}

// Put inserts or updates a qualified key. A zero expiresAt means no
// expiration. If the key already exists its value/expiry are updated and it
// is moved to the head; no eviction occurs in that case, even if the new
// expiry is already in the past (TTL is enforced on read, per §4.1).
// Otherwise, if the map is at capacity, the tail entry is evicted first.
// evicted is true iff an entry was evicted to make room.
func (m *Map) Put(key Key, value string, expiresAt time.Time) (evictedKey Key, evictedValue string, evicted bool) {
	if e, ok := m.items[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		m.moveToFront(e)
		return Key{}, "", false
	}

	if m.capacity <= 0 {
		// Capacity 0: nothing can ever live in the map. Report no eviction
		// since nothing was ever inserted.
		return Key{}, "", false
	}

	if len(m.items) >= m.capacity {
		victim := m.tail.prev
		evictedKey = victim.key
		evictedValue = victim.value
		m.unlink(victim)
		delete(m.items, victim.key)
		evicted = true
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	m.items[key] = e
	m.pushFront(e)
	return evictedKey, evictedValue, evicted
}

// Delete removes a qualified key. Returns whether it existed.
func (m *Map) Delete(key Key) bool {
	e, ok := m.items[key]
	if !ok {
		return false
	}
	m.unlink(e)
	delete(m.items, key)
	return true
}

// Size returns the current entry count, including not-yet-swept expired
// entries.
func (m *Map) Size() int {
	return len(m.items)
}

// IterExpired returns every qualified key whose expiry is at or before now.
// Used only by the sweeper and compactor; a full scan is acceptable here.
func (m *Map) IterExpired(now time.Time) []Key {
	var expired []Key
	for cur := m.head.next; cur != m.tail; cur = cur.next {
		if cur.isExpired(now) {
			expired = append(expired, cur.key)
		}
	}
	return expired
}

// ClearNamespace removes every entry whose namespace equals ns and returns
// how many were removed.
func (m *Map) ClearNamespace(ns string) int {
	removed := 0
	cur := m.head.next
	for cur != m.tail {
		next := cur.next
		if cur.key.Namespace == ns {
			m.unlink(cur)
			delete(m.items, cur.key)
			removed++
		}
		cur = next
	}
	return removed
}

// NamespaceSize returns the number of live entries (not checking
// expiration) whose namespace equals ns.
func (m *Map) NamespaceSize(ns string) int {
	count := 0
	for cur := m.head.next; cur != m.tail; cur = cur.next {
		if cur.key.Namespace == ns {
			count++
		}
	}
	return count
}

// Namespaces returns the set of distinct namespaces currently represented
// by at least one entry in the map, expired or not.
func (m *Map) Namespaces() map[string]struct{} {
	set := make(map[string]struct{})
	for cur := m.head.next; cur != m.tail; cur = cur.next {
		set[cur.key.Namespace] = struct{}{}
	}
	return set
}

// Keys returns every qualified key currently in namespace ns, regardless of
// expiration. Used by Store.ClearNamespace to generate one WAL DELETE
// record per removed entry.
func (m *Map) Keys(ns string) []Key {
	var keys []Key
	for cur := m.head.next; cur != m.tail; cur = cur.next {
		if cur.key.Namespace == ns {
			keys = append(keys, cur.key)
		}
	}
	return keys
}

// SnapshotEntry is one live, non-expired entry as of the snapshot instant.
type SnapshotEntry struct {
	Key       Key
	Value     string
	ExpiresAt time.Time // zero means no expiration
}

// Snapshot returns every live (non-expired) entry as of now, for WAL
// compaction (spec §4.2 step 1). It does not mutate recency order.
func (m *Map) Snapshot(now time.Time) []SnapshotEntry {
	var out []SnapshotEntry
	for cur := m.head.next; cur != m.tail; cur = cur.next {
		if cur.isExpired(now) {
			continue
		}
		out = append(out, SnapshotEntry{Key: cur.key, Value: cur.value, ExpiresAt: cur.expiresAt})
	}
	return out
}

// Trim removes entries from the tail until size <= capacity. Used by WAL
// recovery, which ignores capacity during replay (§4.2).
func (m *Map) Trim() {
	for m.capacity > 0 && len(m.items) > m.capacity {
		victim := m.tail.prev
		if victim == m.head {
			return
		}
		m.unlink(victim)
		delete(m.items, victim.key)
	}
}

func (m *Map) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}

func (m *Map) pushFront(e *entry) {
	e.next = m.head.next
	e.prev = m.head
	m.head.next.prev = e
	m.head.next = e
}

func (m *Map) moveToFront(e *entry) {
	m.unlink(e)
	m.pushFront(e)
}
