// Package cache keeps document text in memory, validated by modification
// time, so a run reading the same note for several projects hits disk once.
package cache

import (
	"sync"
	"time"

	"github.com/penwyp/go-pensieve/internal/util"
)

// DefaultMaxEntries bounds the cache when no limit is given
const DefaultMaxEntries = 512

// MemoryCacheEntry is one cached document version
type MemoryCacheEntry struct {
	Content      string
	ModTime      time.Time
	Size         int64
	LastAccessed int64
}

// Stats counts cache lookups
type Stats struct {
	Entries   int
	Hits      int
	Misses    int
	Evictions int
}

type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*MemoryCacheEntry
	maxEntries int
	stats      Stats
}

func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &MemoryCache{
		entries:    make(map[string]*MemoryCacheEntry),
		maxEntries: maxEntries,
	}
}

// Get returns the cached content of id if it was stored for the same
// modification time and size
func (mc *MemoryCache) Get(id string, modTime time.Time, size int64) (string, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.entries[id]
	if !ok || !entry.ModTime.Equal(modTime) || entry.Size != size {
		mc.stats.Misses++
		return "", false
	}
	entry.LastAccessed = time.Now().UnixNano()
	mc.stats.Hits++
	return entry.Content, true
}

// Set stores content for id, evicting the least recently used entry when full
func (mc *MemoryCache) Set(id string, modTime time.Time, size int64, content string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if _, exists := mc.entries[id]; !exists && len(mc.entries) >= mc.maxEntries {
		mc.evictOldest()
	}
	mc.entries[id] = &MemoryCacheEntry{
		Content:      content,
		ModTime:      modTime,
		Size:         size,
		LastAccessed: time.Now().UnixNano(),
	}
}

func (mc *MemoryCache) evictOldest() {
	var oldestID string
	var oldest int64
	for id, entry := range mc.entries {
		if oldestID == "" || entry.LastAccessed < oldest {
			oldestID, oldest = id, entry.LastAccessed
		}
	}
	if oldestID != "" {
		delete(mc.entries, oldestID)
		mc.stats.Evictions++
	}
}

// Invalidate drops id
func (mc *MemoryCache) Invalidate(id string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	delete(mc.entries, id)
}

func (mc *MemoryCache) Clear() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	n := len(mc.entries)
	mc.entries = make(map[string]*MemoryCacheEntry)
	util.LogDebugf("MemoryCache: cleared %d entries", n)
}

// Stats returns a snapshot of the counters
func (mc *MemoryCache) Stats() Stats {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	s := mc.stats
	s.Entries = len(mc.entries)
	return s
}
