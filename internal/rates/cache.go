package rates

import (
	"strings"
	"sync"
	"time"

	"github.com/wms-platform/freight-service/internal/domain"
)

// cacheKey identifies one rated manifest+lane combination. Any manifest or
// destination change produces a different key, so stale quotes are never
// served for an edited session.
type cacheKey struct {
	manifestHash string
	destination  string
	shipmentType domain.ShipmentType
	serviceLevel domain.ServiceLevel
}

func keyFor(req domain.RateRequest) cacheKey {
	dest := strings.ToLower(strings.Join([]string{
		req.Destination.Street1,
		req.Destination.Suburb,
		req.Destination.City,
		req.Destination.PostalCode,
		req.Destination.Country,
	}, "|"))
	return cacheKey{
		manifestHash: domain.ManifestHash(req.Boxes),
		destination:  dest,
		shipmentType: req.ShipmentType,
		serviceLevel: req.ServiceLevel,
	}
}

type cacheEntry struct {
	quotes   []domain.CarrierQuote
	storedAt time.Time
}

// quoteCache is a TTL cache of ranked quote lists. Entries past the TTL are
// not served by Get but stay available to GetStale as a degraded fallback
// when every carrier is down.
type quoteCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[cacheKey]cacheEntry
	clock   func() time.Time
}

func newQuoteCache(ttl time.Duration) *quoteCache {
	return &quoteCache{
		ttl:     ttl,
		entries: make(map[cacheKey]cacheEntry),
		clock:   time.Now,
	}
}

func (c *quoteCache) Get(key cacheKey) ([]domain.CarrierQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || c.clock().Sub(entry.storedAt) > c.ttl {
		return nil, false
	}
	return cloneQuotes(entry.quotes), true
}

// GetStale returns a cached entry regardless of age.
func (c *quoteCache) GetStale(key cacheKey) ([]domain.CarrierQuote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return cloneQuotes(entry.quotes), true
}

func (c *quoteCache) Put(key cacheKey, quotes []domain.CarrierQuote) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{quotes: cloneQuotes(quotes), storedAt: c.clock()}
}

// Purge drops entries older than twice the TTL. Stale-but-recent entries are
// kept for the carrier-outage fallback.
func (c *quoteCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.clock().Add(-2 * c.ttl)
	for key, entry := range c.entries {
		if entry.storedAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}

func cloneQuotes(quotes []domain.CarrierQuote) []domain.CarrierQuote {
	out := make([]domain.CarrierQuote, len(quotes))
	copy(out, quotes)
	for i := range out {
		if len(quotes[i].Tags) > 0 {
			out[i].Tags = append([]domain.QuoteTag(nil), quotes[i].Tags...)
		}
	}
	return out
}
