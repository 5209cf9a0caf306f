// Package cache implements the in-memory TTL cache that shields the
// upstream provider from repeated reads.
//
// Freshness is enforced on every read; the background sweep is purely a
// memory bound and never extends or shortens an entry's lifetime.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/marketpulse/marketpulse/internal/metrics"
)

// Cache is a key/value store where every entry carries an absolute expiry.
// Safe for concurrent use; callers receive values, never entry references.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	clock   clockwork.Clock

	stopSweep   chan struct{}
	destroyOnce sync.Once
}

type entry struct {
	value     any
	createdAt time.Time
	expiresAt time.Time
}

// New creates a cache and starts its background sweep. The sweep evicts
// already-expired entries every sweepInterval; Destroy stops it.
func New(clock clockwork.Clock, sweepInterval time.Duration) *Cache {
	c := &Cache{
		entries:   make(map[string]entry),
		clock:     clock,
		stopSweep: make(chan struct{}),
	}
	go c.sweep(sweepInterval)
	return c
}

// Set stores value under key, replacing any previous entry wholesale.
// The entry expires at now + ttl.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{
		value:     value,
		createdAt: now,
		expiresAt: now.Add(ttl),
	}
	metrics.CacheSize.Set(float64(len(c.entries)))
}

// Get returns the value for key, or false if the key is absent or expired.
// An expired entry is evicted as a side effect.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		metrics.CacheMisses.Inc()
		return nil, false
	}
	if c.clock.Now().After(e.expiresAt) {
		delete(c.entries, key)
		metrics.CacheMisses.Inc()
		metrics.CacheEvictions.Inc()
		metrics.CacheSize.Set(float64(len(c.entries)))
		return nil, false
	}
	metrics.CacheHits.Inc()
	return e.value, true
}

// Has reports whether key holds a live entry, with the same freshness rule
// (and lazy eviction) as Get.
func (c *Cache) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete removes key and reports whether a live entry was removed.
func (c *Cache) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false
	}
	delete(c.entries, key)
	metrics.CacheSize.Set(float64(len(c.entries)))
	return !c.clock.Now().After(e.expiresAt)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	metrics.CacheSize.Set(0)
}

// RemainingTTL returns how long the entry under key stays fresh,
// or -1 if the key is absent or already expired.
func (c *Cache) RemainingTTL(key string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return -1
	}
	remaining := e.expiresAt.Sub(c.clock.Now())
	if remaining < 0 {
		return -1
	}
	return remaining
}

// Len returns the current number of entries, including not-yet-swept
// expired ones.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// EvictExpired removes all expired entries and returns the count evicted.
func (c *Cache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	evicted := 0
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
			evicted++
		}
	}
	if evicted > 0 {
		metrics.CacheEvictions.Add(float64(evicted))
	}
	metrics.CacheSize.Set(float64(len(c.entries)))
	return evicted
}

// Destroy stops the sweep and clears all entries. Used during shutdown so
// the process can exit cleanly. Safe to call more than once.
func (c *Cache) Destroy() {
	c.destroyOnce.Do(func() {
		close(c.stopSweep)
		c.Clear()
	})
}

func (c *Cache) sweep(interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if evicted := c.EvictExpired(); evicted > 0 {
				slog.Debug("Evicted expired cache entries",
					"count", evicted,
					"remaining", c.Len(),
				)
			}
		case <-c.stopSweep:
			return
		}
	}
}
