// ABOUTME: Tests for the TTL cache backing the access validator and JWKS verifier.
// ABOUTME: Validates per-category TTLs, expiry, prefix and category invalidation.

package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestCache(ttls map[Category]time.Duration) *Cache {
	return New(ttls, time.Minute)
}

func TestCache_GetMiss(t *testing.T) {
	c := newTestCache(nil)
	defer c.Close()

	_, ok := c.Get(CategoryServer, "s1")
	assert.False(t, ok)
}

func TestCache_SetGet(t *testing.T) {
	c := newTestCache(nil)
	defer c.Close()

	c.Set(CategoryServer, "server-record", "s1")

	v, ok := c.Get(CategoryServer, "s1")
	assert.True(t, ok)
	assert.Equal(t, "server-record", v)
}

func TestCache_KeysAreOrdered(t *testing.T) {
	c := newTestCache(nil)
	defer c.Close()

	c.Set(CategoryServerAccess, "yes", "s1", "a@example.com")

	_, ok := c.Get(CategoryServerAccess, "a@example.com", "s1")
	assert.False(t, ok, "reversed id order must be a different key")

	v, ok := c.Get(CategoryServerAccess, "s1", "a@example.com")
	assert.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestCache_CategoriesAreIsolated(t *testing.T) {
	c := newTestCache(nil)
	defer c.Close()

	c.Set(CategoryServer, "server", "s1")

	_, ok := c.Get(CategoryServerAccess, "s1")
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	c := newTestCache(map[Category]time.Duration{
		CategoryServer: 10 * time.Millisecond,
	})
	defer c.Close()

	c.Set(CategoryServer, "server", "s1")

	_, ok := c.Get(CategoryServer, "s1")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	// A hit must never be returned past its TTL.
	_, ok = c.Get(CategoryServer, "s1")
	assert.False(t, ok)
}

func TestCache_PerCategoryTTL(t *testing.T) {
	c := newTestCache(map[Category]time.Duration{
		CategoryServer:       10 * time.Millisecond,
		CategoryServerAccess: time.Minute,
	})
	defer c.Close()

	c.Set(CategoryServer, "server", "s1")
	c.Set(CategoryServerAccess, "access", "s1", "a@example.com")

	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get(CategoryServer, "s1")
	assert.False(t, ok)

	_, ok = c.Get(CategoryServerAccess, "s1", "a@example.com")
	assert.True(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := newTestCache(nil)
	defer c.Close()

	c.Set(CategoryServer, "server", "s1")
	c.Set(CategoryServer, "server", "s2")

	c.Invalidate(CategoryServer, "s1")

	_, ok := c.Get(CategoryServer, "s1")
	assert.False(t, ok)
	_, ok = c.Get(CategoryServer, "s2")
	assert.True(t, ok)
}

func TestCache_InvalidatePrefix(t *testing.T) {
	c := newTestCache(nil)
	defer c.Close()

	c.Set(CategoryServerAccess, "a", "s1", "a@example.com")
	c.Set(CategoryServerAccess, "b", "s1", "b@example.com")
	c.Set(CategoryServerAccess, "c", "s2", "a@example.com")

	c.InvalidatePrefix(CategoryServerAccess, "s1")

	_, ok := c.Get(CategoryServerAccess, "s1", "a@example.com")
	assert.False(t, ok)
	_, ok = c.Get(CategoryServerAccess, "s1", "b@example.com")
	assert.False(t, ok)
	_, ok = c.Get(CategoryServerAccess, "s2", "a@example.com")
	assert.True(t, ok)
}

func TestCache_InvalidateCategory(t *testing.T) {
	c := newTestCache(nil)
	defer c.Close()

	c.Set(CategoryServer, "server", "s1")
	c.Set(CategoryServerAccess, "access", "s1", "a@example.com")

	c.InvalidateCategory(CategoryServer)

	_, ok := c.Get(CategoryServer, "s1")
	assert.False(t, ok)

	// Exactly the entries under the category prefix are removed.
	_, ok = c.Get(CategoryServerAccess, "s1", "a@example.com")
	assert.True(t, ok)
}

func TestCache_SweepRemovesExpired(t *testing.T) {
	c := newTestCache(map[Category]time.Duration{
		CategoryServer: 5 * time.Millisecond,
	})
	defer c.Close()

	c.Set(CategoryServer, "server", "s1")
	time.Sleep(10 * time.Millisecond)

	c.runSweep()
	assert.Equal(t, 0, c.Len())
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := newTestCache(nil)
	c.Close()
	c.Close()
}
