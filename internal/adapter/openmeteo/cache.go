package openmeteo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/couchcryptid/flood-watch/internal/domain"
	"github.com/couchcryptid/flood-watch/internal/observability"
)

// CachedClient wraps a WeatherSource with a time-bounded in-memory cache.
type CachedClient struct {
	inner   domain.WeatherSource
	cache   *ttlCache
	group   singleflight.Group
	clock   clockwork.Clock
	metrics *observability.Metrics
}

// NewCachedClient creates a cache decorator around a weather source. Entries
// live for ttl after the fetch that stored them.
func NewCachedClient(inner domain.WeatherSource, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedClient {
	return &CachedClient{
		inner:   inner,
		cache:   newTTLCache(ttl),
		clock:   clock,
		metrics: metrics,
	}
}

// Fetch returns a cached snapshot when one is still fresh, otherwise fetches
// from the inner source. Concurrent misses for the same key share one fetch.
func (c *CachedClient) Fetch(ctx context.Context, lat, lon float64) (domain.WeatherSnapshot, error) {
	key := cacheKey(lat, lon)
	if snap, ok := c.cache.get(key, c.clock.Now()); ok {
		c.metrics.WeatherCache.WithLabelValues("hit").Inc()
		return snap, nil
	}
	c.metrics.WeatherCache.WithLabelValues("miss").Inc()

	v, err, _ := c.group.Do(key, func() (any, error) {
		// A fetch that finished between our miss and Do already filled the entry.
		if snap, ok := c.cache.get(key, c.clock.Now()); ok {
			return snap, nil
		}
		snap, err := c.inner.Fetch(ctx, lat, lon)
		if err != nil {
			// Failures are not cached so the next cycle retries.
			return domain.WeatherSnapshot{}, err
		}
		c.cache.put(key, snap, c.clock.Now())
		return snap, nil
	})
	if err != nil {
		return domain.WeatherSnapshot{}, err
	}
	return v.(domain.WeatherSnapshot), nil
}

// Invalidate drops the entry for a coordinate pair.
func (c *CachedClient) Invalidate(lat, lon float64) {
	c.cache.delete(cacheKey(lat, lon))
}

// Purge drops every entry.
func (c *CachedClient) Purge() {
	c.cache.purge()
}

// cacheKey rounds to 4 decimal places, about 11 m at the equator.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", normalizeZero(lat), normalizeZero(lon))
}

// normalizeZero maps values that round to zero onto +0 so "-0.0000" never appears.
func normalizeZero(v float64) float64 {
	if v > -0.00005 && v < 0.00005 {
		return 0
	}
	return v
}

// ttlCache is a thread-safe map of snapshots with per-entry expiry.
type ttlCache struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	snapshot  domain.WeatherSnapshot
	expiresAt time.Time
}

func newTTLCache(ttl time.Duration) *ttlCache {
	return &ttlCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func (c *ttlCache) get(key string, now time.Time) (domain.WeatherSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.WeatherSnapshot{}, false
	}
	if !now.Before(e.expiresAt) {
		delete(c.entries, key)
		return domain.WeatherSnapshot{}, false
	}
	return e.snapshot, true
}

func (c *ttlCache) put(key string, snap domain.WeatherSnapshot, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{snapshot: snap, expiresAt: now.Add(c.ttl)}
}

func (c *ttlCache) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *ttlCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

func (c *ttlCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
