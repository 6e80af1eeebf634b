package cluster

import "sync"

// Cache remembers which pattern name an experience was categorized under so
// repeat passes of the same algorithm instance skip the reasoning-service
// call. In-memory only, never persisted; eviction is manual via Clear.
type Cache struct {
	mu sync.RWMutex
	m  map[string]string // experience id -> pattern name
}

// NewCache creates an empty categorization cache
func NewCache() *Cache {
	return &Cache{m: make(map[string]string)}
}

// Get returns the cached pattern name for an experience id
func (c *Cache) Get(expID string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	name, ok := c.m[expID]
	return name, ok
}

// Put records a categorization result
func (c *Cache) Put(expID, patternName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[expID] = patternName
}

// Clear drops all cached results
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m = make(map[string]string)
}

// Len returns the number of cached results
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
