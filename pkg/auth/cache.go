package auth

import (
	"sync"
	"time"
)

// TokenCache holds token verification results for a bounded lifetime.
//
// Entries are keyed by the raw token string and replaced wholesale on
// write, so concurrent readers never observe a partially updated entry.
// Each write schedules its own eviction; the token's own expiry is
// re-checked on every read rather than folded into the timer.
type TokenCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	timers  map[string]*time.Timer

	// now is replaceable for tests.
	now func() time.Time
}

type cacheEntry struct {
	verification *Verification
	expiresAt    time.Time
}

// NewTokenCache creates an empty token cache.
func NewTokenCache() *TokenCache {
	return &TokenCache{
		entries: make(map[string]cacheEntry),
		timers:  make(map[string]*time.Timer),
		now:     time.Now,
	}
}

// Get returns the cached verification for token, if present and still
// valid by both the cache TTL and the token's own expiry.
func (c *TokenCache) Get(token string) (*Verification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[token]
	if !ok {
		return nil, false
	}
	now := c.now()
	if now.After(entry.expiresAt) {
		return nil, false
	}
	if entry.verification.Expired(now) {
		return nil, false
	}
	return entry.verification, true
}

// Set stores a verification for the given TTL and schedules its eviction.
// A second write for the same token replaces the entry and resets the timer.
func (c *TokenCache) Set(token string, v *Verification, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.timers[token]; ok {
		t.Stop()
	}
	c.entries[token] = cacheEntry{
		verification: v,
		expiresAt:    c.now().Add(ttl),
	}
	c.timers[token] = time.AfterFunc(ttl, func() {
		c.evict(token)
	})
}

func (c *TokenCache) evict(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
	delete(c.timers, token)
}

// Clear drops all entries and stops their eviction timers.
// Intended for tests and for invalidating state after config changes.
func (c *TokenCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range c.timers {
		t.Stop()
	}
	c.entries = make(map[string]cacheEntry)
	c.timers = make(map[string]*time.Timer)
}

// Len returns the number of live entries.
func (c *TokenCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
