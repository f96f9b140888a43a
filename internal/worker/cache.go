package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/ewilliams-labs/moodmix/internal/core/ports"
	"github.com/ewilliams-labs/moodmix/internal/metrics"
)

// TagCache is the in-memory tag cache owned by one process. An empty slice is
// a cached "no tags" answer; a missing key has never been looked up.
type TagCache struct {
	mu      sync.RWMutex
	entries map[string][]string
	store   ports.TagCacheStore
	logger  *zap.Logger
}

// LoadTagCache reads the persisted cache. A failing store yields an empty
// cache and a warning, never an error.
func LoadTagCache(ctx context.Context, store ports.TagCacheStore, logger *zap.Logger) *TagCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := store.Load(ctx)
	if err != nil {
		logger.Warn("tag cache: load failed, starting empty", zap.Error(err))
		entries = nil
	}
	if entries == nil {
		entries = make(map[string][]string)
	}
	metrics.TagCacheEntries.Set(float64(len(entries)))
	logger.Info("tag cache: loaded", zap.Int("entries", len(entries)))
	return &TagCache{entries: entries, store: store, logger: logger}
}

// Get returns the cached tags for key.
func (c *TagCache) Get(key string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tags, ok := c.entries[key]
	return tags, ok
}

// Put stores tags under key.
func (c *TagCache) Put(key string, tags []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = tags
}

// Len returns the number of cached keys.
func (c *TagCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot copies the entries for persistence.
func (c *TagCache) Snapshot() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make(map[string][]string, len(c.entries))
	for k, v := range c.entries {
		cp[k] = v
	}
	return cp
}

// Save persists the cache. Failures are logged and swallowed.
func (c *TagCache) Save(ctx context.Context) {
	snapshot := c.Snapshot()
	metrics.TagCacheEntries.Set(float64(len(snapshot)))
	if err := c.store.Save(ctx, snapshot); err != nil {
		c.logger.Error("tag cache: save failed", zap.Error(err))
	}
}
