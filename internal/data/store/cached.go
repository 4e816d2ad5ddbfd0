package store

import (
	"context"

	"github.com/penwyp/go-pensieve/internal/core/cache"
)

// CachedStore serves repeated reads of unchanged documents from memory
type CachedStore struct {
	Store
	cache *cache.MemoryCache
}

// NewCachedStore wraps inner with a read cache of at most maxEntries documents
func NewCachedStore(inner Store, maxEntries int) *CachedStore {
	return &CachedStore{Store: inner, cache: cache.NewMemoryCache(maxEntries)}
}

// Read returns the cached text when the document has not changed since it
// was last read
func (c *CachedStore) Read(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	entry, err := c.Store.Stat(ctx, id)
	if err != nil {
		return "", err
	}
	if content, ok := c.cache.Get(id, entry.ModTime, entry.Size); ok {
		return content, nil
	}
	content, err := c.Store.Read(ctx, id)
	if err != nil {
		return "", err
	}
	c.cache.Set(id, entry.ModTime, entry.Size, content)
	return content, nil
}

// Write replaces the document and drops its cached text
func (c *CachedStore) Write(ctx context.Context, id, content string) error {
	c.cache.Invalidate(id)
	return c.Store.Write(ctx, id, content)
}

// Stats returns the read cache counters
func (c *CachedStore) Stats() cache.Stats {
	return c.cache.Stats()
}
