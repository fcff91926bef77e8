package weather

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/flood-risk-monitor/internal/domain"
	"github.com/couchcryptid/flood-risk-monitor/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Fetcher is the contract shared by Client and CachedFetcher.
type Fetcher interface {
	Available() error
	FetchWeather(ctx context.Context, coord domain.Coordinate) (domain.WeatherSample, error)
}

// CachedFetcher wraps a Fetcher with a short-lived LRU cache so areas that
// share a representative coordinate cost one provider call per cycle.
type CachedFetcher struct {
	inner   Fetcher
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedFetcher creates a cache decorator around a fetcher. Entries expire
// after ttl, which should stay below the monitor interval.
func NewCachedFetcher(inner Fetcher, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedFetcher {
	return &CachedFetcher{
		inner:   inner,
		cache:   newLRUCache(maxEntries, ttl, clock),
		metrics: metrics,
	}
}

func (c *CachedFetcher) Available() error {
	return c.inner.Available()
}

func (c *CachedFetcher) FetchWeather(ctx context.Context, coord domain.Coordinate) (domain.WeatherSample, error) {
	key := fmt.Sprintf("%.4f,%.4f", coord.Lat, coord.Lon)
	if sample, ok := c.cache.get(key); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return sample, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	sample, err := c.inner.FetchWeather(ctx, coord)
	if err != nil {
		// Failures are never cached so the next area or cycle retries.
		return sample, err
	}
	c.cache.put(key, sample)
	return sample, nil
}

// lruCache is a simple thread-safe LRU cache of weather samples with a fixed TTL.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     domain.WeatherSample
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &lruCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.WeatherSample, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.WeatherSample{}, false
	}
	// Expired samples are evicted lazily here; there is no sweeper, so a stale
	// entry would otherwise hold an LRU slot until it reached the tail.
	if !c.clock.Now().Before(e.expiresAt) {
		delete(c.entries, key)
		c.remove(e)
		return domain.WeatherSample{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.WeatherSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.clock.Now().Add(c.ttl)
	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
