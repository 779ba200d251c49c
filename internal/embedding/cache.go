package embedding

import "sync"

// cache is a two-generation embedding cache keyed by text. When the current
// generation fills up it becomes the previous one and a fresh map starts, so
// at most 2*capacity entries are held and recently used texts survive rotation.
type cache struct {
	capacity int
	mu       sync.Mutex
	cur      map[string][]float32
	prev     map[string][]float32
}

func newCache(capacity int) *cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &cache{
		capacity: capacity,
		cur:      make(map[string][]float32),
		prev:     make(map[string][]float32),
	}
}

func (c *cache) get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.cur[key]; ok {
		return v, true
	}
	if v, ok := c.prev[key]; ok {
		c.setLocked(key, v)
		return v, true
	}
	return nil, false
}

func (c *cache) set(key string, value []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

func (c *cache) setLocked(key string, value []float32) {
	if len(c.cur) >= c.capacity {
		c.prev = c.cur
		c.cur = make(map[string][]float32, c.capacity)
	}
	c.cur[key] = value
}
