// Package cache provides a read-through cache over the workflow config store.
// Entries never expire; writers invalidate with Dehydrate after DB updates.
package cache

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"loom/internal/config"
)

// Cache is a read-through cache keyed by config key.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]config.Entry
	store   config.Store
	logger  *slog.Logger

	hits   int64
	misses int64
}

// Stats reports cache counters.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// New creates a cache backed by the given store.
func New(store config.Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		entries: make(map[string]config.Entry),
		store:   store,
		logger:  logger.With("component", "cache"),
	}
}

// Get returns the entry for key, loading it from the store on a miss.
func (c *Cache) Get(ctx context.Context, key string) (*config.Entry, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return &entry, nil
	}

	loaded, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.misses++
	c.entries[key] = *loaded
	c.mu.Unlock()
	return loaded, nil
}

// Set writes through to the store and refreshes the cached entry.
func (c *Cache) Set(ctx context.Context, key string, value any, description string) error {
	if err := c.store.Set(ctx, key, value, description); err != nil {
		return err
	}

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		// Store write succeeded; drop the stale entry rather than cache a guess.
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil
	}

	c.mu.Lock()
	c.entries[key] = *entry
	c.mu.Unlock()
	return nil
}

// Dehydrate removes cached entries whose keys match pattern. A trailing "*"
// matches any suffix; a bare "*" clears everything; anything else is an exact
// key. Returns the number of entries removed.
func (c *Cache) Dehydrate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	if pattern == "*" || pattern == "" {
		removed = len(c.entries)
		c.entries = make(map[string]config.Entry)
	} else if prefix, ok := strings.CutSuffix(pattern, "*"); ok {
		for key := range c.entries {
			if strings.HasPrefix(key, prefix) {
				delete(c.entries, key)
				removed++
			}
		}
	} else {
		if _, ok := c.entries[pattern]; ok {
			delete(c.entries, pattern)
			removed = 1
		}
	}

	c.logger.Info("dehydrated cache", "pattern", pattern, "removed", removed)
	return removed
}

// Stats returns current cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
