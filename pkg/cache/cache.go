// Package cache holds the last known-good tariff prices for a resolver.
package cache

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/raterudder/electrohold/pkg/types"
)

// PriceCache keeps the last successfully computed day/night prices and the
// latest observed refresh. The resolver is its only writer; the mutex lets
// readers snapshot it from other goroutines.
type PriceCache struct {
	mu     sync.Mutex
	entry  types.CacheEntry
	latest types.ResolvedTariffs
}

// New returns an empty, never-initialized cache.
func New() *PriceCache {
	return &PriceCache{}
}

// Observe records the prices of a refresh. Bands absent from r keep their
// previous last-good value.
func (c *PriceCache) Observe(r types.ResolvedTariffs) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest = r
	if r.DayPrice.Valid {
		c.entry.LastGoodDayPrice = r.DayPrice
		c.entry.LastGoodDayBase = r.DayBase
		c.entry.DayUpdatedAt = r.ComputedAt
		c.entry.DayInitialized = true
		c.entry.LastUpdatedAt = r.ComputedAt
	}
	if r.NightPrice.Valid {
		c.entry.LastGoodNightPrice = r.NightPrice
		c.entry.LastGoodNightBase = r.NightBase
		c.entry.NightUpdatedAt = r.ComputedAt
		c.entry.NightInitialized = true
		c.entry.LastUpdatedAt = r.ComputedAt
	}
}

// ReadForBand returns the latest refresh's value for the band if present,
// otherwise the last-good value, otherwise nothing.
func (c *PriceCache) ReadForBand(b types.Band) (decimal.NullDecimal, types.Freshness) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readLocked(b)
}

func (c *PriceCache) readLocked(b types.Band) (decimal.NullDecimal, types.Freshness) {
	if v := c.latest.Price(b); v.Valid {
		return v, types.FreshnessFresh
	}
	if c.entry.Initialized(b) {
		return c.entry.LastGood(b), types.FreshnessCached
	}
	return decimal.NullDecimal{}, types.FreshnessUnavailable
}

// Reading returns the band's value, pre-VAT base, freshness and last fresh
// update.
func (c *PriceCache) Reading(b types.Band) types.BandReading {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, f := c.readLocked(b)
	base := c.entry.LastGoodBase(b)
	switch f {
	case types.FreshnessFresh:
		base = c.latest.Base(b)
	case types.FreshnessUnavailable:
		base = decimal.NullDecimal{}
	}
	return types.BandReading{
		Band:      b,
		Value:     v,
		Base:      base,
		Freshness: f,
		UpdatedAt: c.entry.UpdatedAt(b),
	}
}

// Fees returns the fee prices of the latest refresh.
func (c *PriceCache) Fees() map[string]decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest.Fees
}

// RecordCurrent stores the last resolved current price and its label. Absent
// values leave the previous current price in place.
func (c *PriceCache) RecordCurrent(p types.ResolvedPrice, label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p.Value.Valid {
		c.entry.LastGoodCurrentPrice = p.Value
	}
	c.entry.TariffTypeLabel = label
}

// Snapshot returns a copy of the cache entry.
func (c *PriceCache) Snapshot() types.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry
}

// Restore seeds the cache from a persisted entry. The restored bands are served
// as cached until the next successful refresh. A band is only considered
// initialized if it carries a value.
func (c *PriceCache) Restore(e types.CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.DayInitialized = e.DayInitialized && e.LastGoodDayPrice.Valid
	e.NightInitialized = e.NightInitialized && e.LastGoodNightPrice.Valid
	c.entry = e
	c.latest = types.ResolvedTariffs{}
}
