// Package cache holds the short-TTL in-memory cache that sits in front of
// the key-value store. Every write path invalidates the touched collection
// before returning, so read-after-write within one process is always fresh;
// cross-process freshness is not guaranteed.
package cache

import (
	"sync"
	"time"

	"github.com/propiq/propiq/internal/domain"
)

// DefaultTTL is the absolute lifetime of a cached collection from its last
// fetch.
const DefaultTTL = 30 * time.Second

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache caches one decoded collection per entity kind. All state is instance
// state; tests create as many isolated caches as they need.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[domain.Kind]entry
}

// New creates a cache with the given TTL. A TTL of zero or less takes
// DefaultTTL.
func New(ttl time.Duration) *Cache {
	return NewWithClock(ttl, time.Now)
}

// NewWithClock creates a cache with an injectable clock for tests.
func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[domain.Kind]entry),
	}
}

// Get returns the cached collection for kind, or false on miss or expiry.
func (c *Cache) Get(kind domain.Kind) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[kind]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.fetchedAt) >= c.ttl {
		delete(c.entries, kind)
		return nil, false
	}
	return e.value, true
}

// Put stores the freshly fetched collection for kind.
func (c *Cache) Put(kind domain.Kind, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[kind] = entry{value: value, fetchedAt: c.now()}
}

// Invalidate drops the cached collection for kind.
func (c *Cache) Invalidate(kind domain.Kind) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, kind)
}

// Reset drops every cached collection. Called when the tenant namespace
// switches; the switch is a barrier and nothing cached may survive it.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[domain.Kind]entry)
}
