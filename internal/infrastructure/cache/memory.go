package cache

import (
	"context"
	"sync"
	"time"

	"github.com/basketscout/backend/internal/domain"
)

const defaultSweepInterval = 10 * time.Minute

// cacheEntry is one (addressKey, itemcode) record with its fetch time
type cacheEntry struct {
	offers    []domain.RawStoreOffer
	fetchedAt time.Time
}

type entryKey struct {
	addressKey string
	itemcode   string
}

// MemoryPriceCache is a thread-safe in-memory price cache with TTL support
type MemoryPriceCache struct {
	data  map[entryKey]cacheEntry
	mutex sync.RWMutex
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// NewMemoryPriceCache creates a new in-memory price cache whose records stay
// fresh for ttl.
func NewMemoryPriceCache(ttl time.Duration) *MemoryPriceCache {
	c := &MemoryPriceCache{
		data: make(map[entryKey]cacheEntry),
		ttl:  ttl,
		now:  time.Now,
		stop: make(chan struct{}),
	}

	go c.sweepExpired(defaultSweepInterval)

	return c
}

// Lookup returns the fresh offer lists for itemcodes and the codes that
// have none.
func (c *MemoryPriceCache) Lookup(ctx context.Context, addressKey string, itemcodes []string) (domain.CacheLookup, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	result := domain.CacheLookup{Found: make(map[string][]domain.RawStoreOffer)}
	now := c.now()
	for _, code := range itemcodes {
		entry, ok := c.data[entryKey{addressKey, code}]
		if !ok || !c.fresh(entry, now) {
			result.Missing = append(result.Missing, code)
			continue
		}
		result.Found[code] = copyOffers(entry.offers)
	}
	return result, nil
}

// Write replaces the record for (addressKey, itemcode).
func (c *MemoryPriceCache) Write(ctx context.Context, addressKey, itemcode string, offers []domain.RawStoreOffer) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data[entryKey{addressKey, itemcode}] = cacheEntry{
		offers:    copyOffers(offers),
		fetchedAt: c.now(),
	}
	return nil
}

// Size returns the current number of records (for debugging/monitoring)
func (c *MemoryPriceCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Clear removes all records
func (c *MemoryPriceCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.data = make(map[entryKey]cacheEntry)
}

// Close stops the background sweeper.
func (c *MemoryPriceCache) Close() error {
	c.stopOnce.Do(func() { close(c.stop) })
	return nil
}

func (c *MemoryPriceCache) fresh(entry cacheEntry, now time.Time) bool {
	return now.Before(entry.fetchedAt.Add(c.ttl))
}

// sweepExpired removes expired records periodically
func (c *MemoryPriceCache) sweepExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *MemoryPriceCache) removeExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.now()
	for key, entry := range c.data {
		if !c.fresh(entry, now) {
			delete(c.data, key)
		}
	}
}

// copyOffers deep-copies offers so callers never share geo pointers with
// the cache.
func copyOffers(offers []domain.RawStoreOffer) []domain.RawStoreOffer {
	out := make([]domain.RawStoreOffer, len(offers))
	for i, offer := range offers {
		if offer.Geo != nil {
			geo := *offer.Geo
			offer.Geo = &geo
		}
		out[i] = offer
	}
	return out
}
