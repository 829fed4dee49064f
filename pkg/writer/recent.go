package writer

import (
	"container/list"
	"sync"
	"time"
)

// recentCache remembers when series were last written, bounded by an LRU
// of capacity entries and expiring entries older than ttl
type recentCache struct {
	capacity int
	ttl      time.Duration
	mu       sync.Mutex
	entries  map[uint64]*recentEntry
	lru      *list.List
}

type recentEntry struct {
	key       uint64
	timestamp time.Time
	element   *list.Element
}

func newRecentCache(capacity int, ttl time.Duration) *recentCache {
	return &recentCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[uint64]*recentEntry),
		lru:      list.New(),
	}
}

// Seen reports whether key was recorded within ttl of now
func (rc *recentCache) Seen(key uint64, now time.Time) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	entry, exists := rc.entries[key]
	if !exists {
		return false
	}

	if now.Sub(entry.timestamp) >= rc.ttl {
		rc.removeLocked(key)
		return false
	}

	rc.lru.MoveToFront(entry.element)
	return true
}

// Put records key as written at now
func (rc *recentCache) Put(key uint64, now time.Time) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if entry, exists := rc.entries[key]; exists {
		entry.timestamp = now
		rc.lru.MoveToFront(entry.element)
		return
	}

	entry := &recentEntry{key: key, timestamp: now}
	entry.element = rc.lru.PushFront(entry)
	rc.entries[key] = entry

	if rc.capacity > 0 && rc.lru.Len() > rc.capacity {
		if oldest := rc.lru.Back(); oldest != nil {
			rc.removeLocked(oldest.Value.(*recentEntry).key)
		}
	}
}

// removeLocked removes an entry (must hold lock)
func (rc *recentCache) removeLocked(key uint64) {
	if entry, exists := rc.entries[key]; exists {
		rc.lru.Remove(entry.element)
		delete(rc.entries, key)
	}
}

// Len returns the number of remembered series
func (rc *recentCache) Len() int {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return len(rc.entries)
}

