// Package cache provides the bounded, TTL-based repository cache keyed by
// logical resource path.
package cache

import (
	"container/list"
	"regexp"
	"sync"
	"time"

	"github.com/storyreel/backend/metrics"
)

// Default configuration values.
const (
	// DefaultMaxEntries caps the number of cached values.
	DefaultMaxEntries = 100

	// DefaultTTL applies when Set is called with ttl <= 0.
	DefaultTTL = 5 * time.Minute
)

type entry struct {
	key       string
	data      interface{}
	storedAt  time.Time
	ttl       time.Duration
	orderElem *list.Element
}

func (e *entry) expired(now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

// Cache is a capacity-bounded TTL cache. Eviction is insertion-ordered:
// when full, the oldest-inserted entry goes first regardless of access
// recency. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	order      *list.List // front = oldest inserted
	maxEntries int
	defaultTTL time.Duration
	metrics    *metrics.Metrics
	now        func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithMaxEntries overrides the capacity bound.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithDefaultTTL overrides the default entry lifetime.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.defaultTTL = ttl
		}
	}
}

// WithClock injects the clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithMetrics wires hit/miss/eviction counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		if m != nil {
			c.metrics = m
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		order:      list.New(),
		maxEntries: DefaultMaxEntries,
		defaultTTL: DefaultTTL,
		metrics:    metrics.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores a value under key. A ttl <= 0 uses the default. Re-setting an
// existing key refreshes its value and timestamp but keeps its insertion
// position.
func (c *Cache) Set(key string, value interface{}, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		existing.data = value
		existing.storedAt = c.now()
		existing.ttl = ttl
		return
	}

	if len(c.entries) >= c.maxEntries {
		if oldest := c.order.Front(); oldest != nil {
			c.removeLocked(oldest.Value.(string))
			c.metrics.CacheEvictions.Inc()
		}
	}

	e := &entry{key: key, data: value, storedAt: c.now(), ttl: ttl}
	e.orderElem = c.order.PushBack(key)
	c.entries[key] = e
}

// Get returns the cached value, or nil on miss. Expired entries are
// evicted on access and count as misses.
func (c *Cache) Get(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.metrics.CacheMisses.Inc()
		return nil
	}
	if e.expired(c.now()) {
		c.removeLocked(key)
		c.metrics.CacheMisses.Inc()
		return nil
	}

	c.metrics.CacheHits.Inc()
	return e.data
}

// Invalidate removes every key matching the regular expression pattern and
// returns how many were removed. An invalid pattern removes nothing.
func (c *Cache) Invalidate(pattern string) int {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.entries {
		if re.MatchString(key) {
			c.removeLocked(key)
			removed++
		}
	}
	return removed
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.order.Init()
}

// Len returns the current entry count.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) removeLocked(key string) {
	if e, ok := c.entries[key]; ok {
		c.order.Remove(e.orderElem)
		delete(c.entries, key)
	}
}
