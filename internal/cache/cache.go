// ABOUTME: Thread-safe TTL cache with per-category expiry and prefix invalidation.
// ABOUTME: Backs the access validator and the JWKS key-set verifier.

package cache

import (
	"strings"
	"sync"
	"time"
)

// Category scopes cache entries and selects their TTL.
type Category string

// Cache categories used by the auth subsystem.
const (
	CategoryServer       Category = "SERVER"
	CategoryServerAccess Category = "SERVER_ACCESS"
	CategoryJWKS         Category = "JWKS"
)

// keySep separates the category prefix and the id components of a composite
// key. It must not appear in identifiers; unit separator is a safe choice for
// uuids, hostnames and email addresses.
const keySep = "\x1f"

// DefaultTTLs returns the standard TTL table for the auth subsystem.
func DefaultTTLs() map[Category]time.Duration {
	return map[Category]time.Duration{
		CategoryServer:       2 * time.Minute,
		CategoryServerAccess: 5 * time.Minute,
		CategoryJWKS:         10 * time.Minute,
	}
}

// entry stores a cached value and its expiry deadline.
type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a process-local key/value store where each entry expires after its
// category's TTL. Keys are composites of a category and an ordered list of
// identifier strings, which makes category- and prefix-scoped invalidation
// possible.
//
// Concurrent lookups for the same missing key are not deduplicated: callers
// that miss simultaneously will each recompute the value. That is an accepted
// tradeoff for the low key cardinality this cache serves.
type Cache struct {
	mu         sync.RWMutex
	entries    map[string]entry
	ttls       map[Category]time.Duration
	defaultTTL time.Duration
	done       chan struct{}
	closed     bool
}

// New creates a cache with the given per-category TTL table. Categories
// absent from the table fall back to defaultTTL. A background goroutine
// periodically sweeps expired entries.
func New(ttls map[Category]time.Duration, defaultTTL time.Duration) *Cache {
	copied := make(map[Category]time.Duration, len(ttls))
	for cat, ttl := range ttls {
		copied[cat] = ttl
	}
	c := &Cache{
		entries:    make(map[string]entry),
		ttls:       copied,
		defaultTTL: defaultTTL,
		done:       make(chan struct{}),
	}
	go c.sweep()
	return c
}

// compositeKey builds the storage key for a category and id list.
func compositeKey(cat Category, ids []string) string {
	return string(cat) + keySep + strings.Join(ids, keySep)
}

// ttlFor returns the TTL configured for a category.
func (c *Cache) ttlFor(cat Category) time.Duration {
	if ttl, ok := c.ttls[cat]; ok {
		return ttl
	}
	return c.defaultTTL
}

// Get returns the cached value for (category, ids) if present and not past
// its TTL.
func (c *Cache) Get(cat Category, ids ...string) (any, bool) {
	key := compositeKey(cat, ids)

	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores a value under (category, ids) with the category's TTL.
func (c *Cache) Set(cat Category, value any, ids ...string) {
	key := compositeKey(cat, ids)
	e := entry{
		value:     value,
		expiresAt: time.Now().Add(c.ttlFor(cat)),
	}

	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

// Invalidate removes the single entry stored under (category, ids).
func (c *Cache) Invalidate(cat Category, ids ...string) {
	key := compositeKey(cat, ids)

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// InvalidatePrefix removes every entry in the category whose id list starts
// with the given ids.
func (c *Cache) InvalidatePrefix(cat Category, ids ...string) {
	prefix := compositeKey(cat, ids)

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key == prefix || strings.HasPrefix(key, prefix+keySep) {
			delete(c.entries, key)
		}
	}
}

// InvalidateCategory removes all entries in the category and nothing else.
func (c *Cache) InvalidateCategory(cat Category) {
	prefix := string(cat) + keySep

	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of entries currently stored, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// sweep runs in a background goroutine, periodically removing expired entries.
func (c *Cache) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runSweep()
		case <-c.done:
			return
		}
	}
}

// runSweep removes all expired entries.
func (c *Cache) runSweep() {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Close stops the background sweep goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
