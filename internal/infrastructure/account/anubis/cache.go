package anubis

import (
	"sync"
	"time"

	"github.com/riskibarqy/fantasy-contest/internal/domain/user"
)

// principalCache holds verified principals keyed by token hash. Only
// successful introspections are stored, rejections always go upstream.
type principalCache struct {
	mu         sync.RWMutex
	entries    map[string]principalEntry
	ttl        time.Duration
	maxEntries int
}

type principalEntry struct {
	principal user.Principal
	expiresAt time.Time
}

func newPrincipalCache(ttl time.Duration, maxEntries int) *principalCache {
	return &principalCache{
		entries:    make(map[string]principalEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
	}
}

func (c *principalCache) Get(key string) (user.Principal, bool) {
	if c.ttl <= 0 {
		return user.Principal{}, false
	}

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !entry.expiresAt.After(time.Now()) {
		return user.Principal{}, false
	}

	return entry.principal, true
}

func (c *principalCache) Set(key string, principal user.Principal) {
	if c.ttl <= 0 {
		return
	}

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.sweepExpired(now)
		if len(c.entries) >= c.maxEntries {
			c.dropOne()
		}
	}

	c.entries[key] = principalEntry{
		principal: principal,
		expiresAt: now.Add(c.ttl),
	}
}

// sweepExpired runs under the write lock when the cache is full. Expired
// entries are otherwise left in place until they collide with a Set.
func (c *principalCache) sweepExpired(now time.Time) {
	for key, entry := range c.entries {
		if !entry.expiresAt.After(now) {
			delete(c.entries, key)
		}
	}
}

// dropOne removes an arbitrary entry. Map iteration order is random
// enough for a cache whose entries all expire within one TTL anyway.
func (c *principalCache) dropOne() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}
