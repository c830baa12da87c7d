package render

import (
	"sync"

	"CollabBoard/internal/state"
)

type cacheEntry struct {
	drawable *Drawable
	version  int64
	site     string
}

// CacheStats reports cache usage.
type CacheStats struct {
	Entries     int
	Hits        uint64
	Misses      uint64
	Generations uint64
}

// Cache maps element id to the drawable generated for one element value,
// named by its (Version, Site) register tag. An entry is valid only while
// both match the element.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	hits    uint64
	misses  uint64
	puts    uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached drawable for el if it was generated for el's
// current version and writing site.
func (c *Cache) Get(el state.Element) (*Drawable, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[el.ID]
	if !ok || e.version != el.Version || e.site != el.Site {
		c.misses++
		return nil, false
	}
	c.hits++
	return e.drawable, true
}

// Put stores d as the drawable for el's id and register tag, replacing any
// older entry.
func (c *Cache) Put(el state.Element, d *Drawable) {
	c.mu.Lock()
	c.entries[el.ID] = cacheEntry{drawable: d, version: el.Version, site: el.Site}
	c.puts++
	c.mu.Unlock()
}

// Prune drops every entry whose id is not in live and returns how many went.
func (c *Cache) Prune(live map[string]struct{}) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for id := range c.entries {
		if _, ok := live[id]; !ok {
			delete(c.entries, id)
			n++
		}
	}
	return n
}

// Reset empties the cache. Entries are a pure function of (id, version, site), so
// this only costs regeneration.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Entries: len(c.entries), Hits: c.hits, Misses: c.misses, Generations: c.puts}
}
