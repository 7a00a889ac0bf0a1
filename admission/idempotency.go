package admission

import (
	"sync"
	"time"
)

// idempotencyCache short-circuits a duplicate place_order submission
// carrying the same (user, key) pair within ttl of the first, returning
// the original result instead of re-matching it. This is in-process
// state, acceptable because the dedupe window is short and a cache miss
// after a restart only means a retried request matches again, which is
// the safe direction to fail in.
type idempotencyCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]idempotencyEntry
}

type idempotencyEntry struct {
	result    interface{}
	expiresAt time.Time
}

func newIdempotencyCache(ttl time.Duration) *idempotencyCache {
	return &idempotencyCache{ttl: ttl, entries: make(map[string]idempotencyEntry)}
}

func idempotencyKey(user, key string) string { return user + "|" + key }

func (c *idempotencyCache) get(user, key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[idempotencyKey(user, key)]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.result, true
}

func (c *idempotencyCache) put(user, key string, result interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[idempotencyKey(user, key)] = idempotencyEntry{result: result, expiresAt: time.Now().Add(c.ttl)}
}
