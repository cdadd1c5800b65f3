// Package cache provides the process-scoped TTL memoization used in front of
// upstream providers.
package cache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"
)

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedhub_cache_hits_total",
		Help: "Number of cache lookups that returned a fresh entry",
	}, []string{"cache"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedhub_cache_misses_total",
		Help: "Number of cache lookups that found no fresh entry",
	}, []string{"cache"})

	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedhub_cache_evictions_total",
		Help: "Number of expired entries removed on lookup",
	}, []string{"cache"})
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Cache is a key/value store with per-entry expiry. Expired entries are
// removed lazily when looked up; there is no size bound.
type Cache[V any] struct {
	name string
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]entry[V]
}

// Option configures a Cache
type Option[V any] func(*Cache[V])

// WithClock replaces time.Now, mostly for tests
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) {
		c.now = now
	}
}

// New returns an empty cache. The name labels the cache's metrics.
func New[V any](name string, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		name:    name,
		now:     time.Now,
		entries: make(map[string]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value stored under key if it has not expired
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		cacheMisses.WithLabelValues(c.name).Inc()
		return zero, false
	}

	now := c.now()
	if now.After(e.expiresAt) {
		c.mu.Lock()
		// Another Put may have refreshed the entry in between
		if current, ok := c.entries[key]; ok && now.After(current.expiresAt) {
			delete(c.entries, key)
			cacheEvictions.WithLabelValues(c.name).Inc()
		}
		c.mu.Unlock()

		log.WithFields(log.Fields{
			"cache": c.name,
			"key":   key,
		}).Debug("Cache entry expired")
		cacheMisses.WithLabelValues(c.name).Inc()
		return zero, false
	}

	cacheHits.WithLabelValues(c.name).Inc()
	return e.value, true
}

// Put stores value under key for ttl, replacing any existing entry
func (c *Cache[V]) Put(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()
}

// Delete drops the entry stored under key, if any
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len counts stored entries, including expired ones not yet looked up
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
