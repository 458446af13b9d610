package cache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/raterudder/electrohold/pkg/types"
)

func price(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestFirstRun(t *testing.T) {
	c := New()
	for _, b := range []types.Band{types.BandDay, types.BandNight} {
		v, f := c.ReadForBand(b)
		assert.False(t, v.Valid)
		assert.Equal(t, types.FreshnessUnavailable, f)
	}

	// a failed first refresh changes nothing
	c.Observe(types.ResolvedTariffs{ComputedAt: time.Now()})
	v, f := c.ReadForBand(types.BandDay)
	assert.False(t, v.Valid)
	assert.Equal(t, types.FreshnessUnavailable, f)
	assert.True(t, c.Snapshot().LastUpdatedAt.IsZero())
}

func TestFallback(t *testing.T) {
	c := New()
	t1 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	c.Observe(types.ResolvedTariffs{
		DayPrice:   price("0.14974"),
		NightPrice: price("0.08857"),
		ComputedAt: t1,
	})
	v, f := c.ReadForBand(types.BandDay)
	assert.Equal(t, types.FreshnessFresh, f)
	assert.Equal(t, "0.14974", v.Decimal.String())

	// day missing from the next refresh, night still fresh
	c.Observe(types.ResolvedTariffs{
		NightPrice: price("0.09"),
		ComputedAt: t2,
	})
	v, f = c.ReadForBand(types.BandDay)
	assert.Equal(t, types.FreshnessCached, f)
	assert.Equal(t, "0.14974", v.Decimal.String())

	v, f = c.ReadForBand(types.BandNight)
	assert.Equal(t, types.FreshnessFresh, f)
	assert.Equal(t, "0.09", v.Decimal.String())

	snap := c.Snapshot()
	assert.Equal(t, t1, snap.DayUpdatedAt)
	assert.Equal(t, t2, snap.NightUpdatedAt)
	assert.Equal(t, t2, snap.LastUpdatedAt)
	assert.True(t, snap.DayInitialized)
	assert.True(t, snap.NightInitialized)

	// total failure keeps both last-good values
	c.Observe(types.ResolvedTariffs{ComputedAt: t2.Add(time.Hour)})
	r := c.Reading(types.BandNight)
	assert.Equal(t, types.FreshnessCached, r.Freshness)
	assert.Equal(t, "0.09", r.Value.Decimal.String())
	assert.Equal(t, t2, r.UpdatedAt)
	assert.True(t, c.Snapshot().DayInitialized, "initialized never reverts")
}

func TestReadingBase(t *testing.T) {
	c := New()
	assert.False(t, c.Reading(types.BandDay).Base.Valid)

	t1 := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	c.Observe(types.ResolvedTariffs{
		DayPrice:   price("0.14974"),
		DayBase:    price("0.12478"),
		NightPrice: price("0.08857"),
		NightBase:  price("0.07381"),
		ComputedAt: t1,
	})
	r := c.Reading(types.BandDay)
	assert.Equal(t, types.FreshnessFresh, r.Freshness)
	assert.Equal(t, "0.12478", r.Base.Decimal.String())

	// the base follows the served value when falling back
	c.Observe(types.ResolvedTariffs{
		NightPrice: price("0.09"),
		NightBase:  price("0.075"),
		ComputedAt: t1.Add(time.Hour),
	})
	r = c.Reading(types.BandDay)
	assert.Equal(t, types.FreshnessCached, r.Freshness)
	assert.Equal(t, "0.12478", r.Base.Decimal.String())
	assert.Equal(t, "0.075", c.Reading(types.BandNight).Base.Decimal.String())
	assert.Equal(t, "0.075", c.Snapshot().LastGoodNightBase.Decimal.String())
}

func TestRecordCurrent(t *testing.T) {
	c := New()
	c.RecordCurrent(types.ResolvedPrice{Value: price("0.14974")}, "Day (Summer)")
	c.RecordCurrent(types.ResolvedPrice{}, "Night (Summer)")

	snap := c.Snapshot()
	assert.Equal(t, "0.14974", snap.LastGoodCurrentPrice.Decimal.String())
	assert.Equal(t, "Night (Summer)", snap.TariffTypeLabel)
}

func TestRestore(t *testing.T) {
	at := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	c := New()
	c.Observe(types.ResolvedTariffs{DayPrice: price("0.2"), ComputedAt: at})

	c.Restore(types.CacheEntry{
		LastGoodDayPrice: price("0.14974"),
		DayUpdatedAt:     at,
		DayInitialized:   true,
		NightInitialized: true,
	})

	v, f := c.ReadForBand(types.BandDay)
	assert.Equal(t, types.FreshnessCached, f)
	assert.Equal(t, "0.14974", v.Decimal.String())

	v, f = c.ReadForBand(types.BandNight)
	assert.False(t, v.Valid)
	assert.Equal(t, types.FreshnessUnavailable, f)
	assert.Nil(t, c.Fees())
}
