package regexgen

import "sync"

// Cache memoizes compiled patterns, including compile failures.
type Cache struct {
	cap int

	mu       sync.RWMutex
	patterns map[string]cached
}

type cached struct {
	pattern *Pattern
	err     error
}

// NewCache returns a cache compiling with the given repetition cap.
func NewCache(repetitionCap int) *Cache {
	return &Cache{cap: repetitionCap, patterns: make(map[string]cached)}
}

// Get returns the compiled pattern for src.
func (c *Cache) Get(src string) (*Pattern, error) {
	c.mu.RLock()
	e, ok := c.patterns[src]
	c.mu.RUnlock()
	if ok {
		return e.pattern, e.err
	}

	p, err := Compile(src, c.cap)
	c.mu.Lock()
	c.patterns[src] = cached{pattern: p, err: err}
	c.mu.Unlock()
	return p, err
}
