package mapbox

import (
	"container/list"
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/couchcryptid/fire-detection-service/internal/domain"
	"github.com/couchcryptid/fire-detection-service/internal/observability"
)

// keyPrecision is the number of decimals kept in cache keys (about 110 m).
const keyPrecision = 3

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by
// rounded coordinates.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.GeocodingResult, error) {
	key := cacheKey(lat, lon)
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	result, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return result, err
	}
	// Empty answers stay uncached so they are retried.
	if result.PlaceName != "" || result.FormattedAddress != "" {
		c.cache.put(key, result)
	}
	return result, nil
}

func cacheKey(lat, lon float64) string {
	scale := math.Pow(10, keyPrecision)
	return fmt.Sprintf("%.*f,%.*f",
		keyPrecision, math.Round(lat*scale)/scale,
		keyPrecision, math.Round(lon*scale)/scale,
	)
}

// lruCache is a thread-safe LRU of geocoding results.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front is most recently used
	entries    map[string]*list.Element
}

type entry struct {
	key   string
	value domain.GeocodingResult
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(key string) (domain.GeocodingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.GeocodingResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key string, value domain.GeocodingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = value
		c.order.MoveToFront(el)
		return
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: value})
	if c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
