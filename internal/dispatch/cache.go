package dispatch

import "sync"

// ResponseCache keeps the last answer per entity. Each new answer replaces
// the prior one; no history is kept beyond the latest.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewResponseCache() *ResponseCache {
	return &ResponseCache{entries: map[string]string{}}
}

func (c *ResponseCache) Put(entityID, text string) {
	c.mu.Lock()
	c.entries[entityID] = text
	c.mu.Unlock()
}

func (c *ResponseCache) Get(entityID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.entries[entityID]
	return text, ok
}
