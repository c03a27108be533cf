// Package cache holds the idempotency cache of the mock backend. Bulk calls
// carry an idempotency key; a replayed key answers with the stored response
// instead of applying the operation again.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a thread-safe map whose entries expire after a fixed TTL
type TTLCache[V any] struct {
	mu      sync.RWMutex
	items   map[string]entry[V]
	ttl     time.Duration
	now     func() time.Time
	ticker  *time.Ticker
	stop    chan struct{}
	stopped sync.Once
}

// NewTTLCache creates a cache and starts its cleanup loop
func NewTTLCache[V any](ttl, cleanupInterval time.Duration) *TTLCache[V] {
	c := &TTLCache[V]{
		items:  make(map[string]entry[V]),
		ttl:    ttl,
		now:    time.Now,
		ticker: time.NewTicker(cleanupInterval),
		stop:   make(chan struct{}),
	}
	go c.cleanupLoop()

	slog.Debug("TTL cache initialized", "ttl", ttl.String(), "cleanup_interval", cleanupInterval.String())
	return c
}

func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = entry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Get returns the value for key unless it is missing or expired
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || c.now().After(e.expiresAt) {
		var zero V
		return zero, false
	}
	slog.Debug("Cache hit", "key", key)
	return e.value, true
}

// Len counts entries that have not expired
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	n := 0
	for _, e := range c.items {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

func (c *TTLCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry[V])
}

// Stop ends the cleanup loop; it is safe to call more than once
func (c *TTLCache[V]) Stop() {
	c.stopped.Do(func() {
		c.ticker.Stop()
		close(c.stop)
	})
}

func (c *TTLCache[V]) cleanupLoop() {
	for {
		select {
		case <-c.ticker.C:
			c.removeExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *TTLCache[V]) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	if removed > 0 {
		slog.Debug("Cache cleanup completed", "expired_entries", removed, "remaining_entries", len(c.items))
	}
}
