package auth

import (
	"sync"
	"time"

	"notification-relay/internal/models"
)

// cacheEntry stores a verified identity and the token's absolute expiry.
type cacheEntry struct {
	identity  models.Identity
	expiresAt time.Time
}

// tokenCache remembers recently verified tokens so that reconnecting tabs do
// not pay for a signature check on every handshake. Entries are trusted only
// until the token's own exp; cleanup is lazy, triggered when the cache is
// over capacity on insert.
type tokenCache struct {
	mu      sync.RWMutex
	maxSize int
	items   map[string]cacheEntry
}

func newTokenCache(maxSize int) *tokenCache {
	return &tokenCache{
		maxSize: maxSize,
		items:   make(map[string]cacheEntry),
	}
}

func (c *tokenCache) get(token string, now time.Time) (models.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.items[token]
	if !ok || !now.Before(e.expiresAt) {
		return models.Identity{}, false
	}
	return e.identity, true
}

func (c *tokenCache) put(token string, identity models.Identity, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) >= c.maxSize {
		c.purgeLocked(time.Now())
	}
	// Still full after purging expired entries: drop the cache rather than
	// grow without bound. Verification stays correct, just uncached.
	if len(c.items) >= c.maxSize {
		c.items = make(map[string]cacheEntry)
	}
	c.items[token] = cacheEntry{identity: identity, expiresAt: expiresAt}
}

func (c *tokenCache) purgeLocked(now time.Time) {
	for t, e := range c.items {
		if !now.Before(e.expiresAt) {
			delete(c.items, t)
		}
	}
}
