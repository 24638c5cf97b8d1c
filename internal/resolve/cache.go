package resolve

import (
	"sort"
	"sync"
	"time"
)

const (
	defaultCacheMaxEntries = 2000
	defaultCacheTTL        = 24 * time.Hour
)

type cachedEntity struct {
	id        int64
	updatedAt time.Time
	expiresAt time.Time
}

// entityCache holds successful resolutions only. Expired entries are
// dropped first, then the oldest once maxEntries is exceeded.
type entityCache struct {
	mu         sync.Mutex
	entries    map[string]*cachedEntity
	maxEntries int
	ttl        time.Duration
}

func newEntityCache(maxEntries int, ttl time.Duration) *entityCache {
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &entityCache{
		entries:    make(map[string]*cachedEntity),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func (c *entityCache) get(key string, now time.Time) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return 0, false
	}
	if !now.Before(entry.expiresAt) {
		delete(c.entries, key)
		return 0, false
	}
	return entry.id, true
}

func (c *entityCache) put(key string, id int64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cachedEntity{
		id:        id,
		updatedAt: now,
		expiresAt: now.Add(c.ttl),
	}
	c.trimLocked(now)
}

func (c *entityCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *entityCache) trimLocked(now time.Time) {
	if len(c.entries) <= c.maxEntries {
		return
	}
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedEntity
	}
	items := make([]pair, 0, len(c.entries))
	for key, entry := range c.entries {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-c.maxEntries; i++ {
		delete(c.entries, items[i].key)
	}
}
