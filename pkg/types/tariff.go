package types

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// ComponentDayBase is the fee-inclusive, pre-VAT day price.
	ComponentDayBase = "day_base"
	// ComponentNightBase is the fee-inclusive, pre-VAT night price.
	ComponentNightBase = "night_base"
)

// Band is the two-valued tariff period.
type Band string

const (
	BandDay   Band = "day"
	BandNight Band = "night"
)

// Other returns the opposite band.
func (b Band) Other() Band {
	if b == BandNight {
		return BandDay
	}
	return BandNight
}

// Component returns the TariffComponents key holding the band's base price.
func (b Band) Component() string {
	if b == BandNight {
		return ComponentNightBase
	}
	return ComponentDayBase
}

// Season is the two-valued yearly calendar split.
type Season string

const (
	SeasonSummer Season = "summer"
	SeasonWinter Season = "winter"
)

// Freshness classifies where a served value came from.
type Freshness string

const (
	// FreshnessFresh means the value was extracted on the latest refresh.
	FreshnessFresh Freshness = "fresh"
	// FreshnessCached means the latest refresh missed the band and a prior
	// value is being served instead.
	FreshnessCached Freshness = "cached"
	// FreshnessUnavailable means no value has ever been extracted for the band.
	FreshnessUnavailable Freshness = "unavailable"
)

// RawDocument is the unparsed body returned by the fetch collaborator.
type RawDocument struct {
	Body      string
	URL       string
	FetchedAt time.Time
}

// TariffComponents maps a component name to its non-negative pre-VAT value.
// A missing key means the component was not found.
type TariffComponents map[string]decimal.Decimal

// Get returns the component if present.
func (c TariffComponents) Get(name string) (decimal.Decimal, bool) {
	v, ok := c[name]
	return v, ok
}

// ResolvedTariffs holds the VAT-inclusive prices computed from one extraction.
// DayBase and NightBase are the pre-VAT components behind each valid price.
type ResolvedTariffs struct {
	DayPrice   decimal.NullDecimal        `json:"dayPrice"`
	NightPrice decimal.NullDecimal        `json:"nightPrice"`
	DayBase    decimal.NullDecimal        `json:"dayBase"`
	NightBase  decimal.NullDecimal        `json:"nightBase"`
	Fees       map[string]decimal.Decimal `json:"fees,omitempty"`
	ComputedAt time.Time                  `json:"computedAt"`
}

// Price returns the price for the given band.
func (r ResolvedTariffs) Price(b Band) decimal.NullDecimal {
	if b == BandNight {
		return r.NightPrice
	}
	return r.DayPrice
}

// Base returns the pre-VAT component for the given band.
func (r ResolvedTariffs) Base(b Band) decimal.NullDecimal {
	if b == BandNight {
		return r.NightBase
	}
	return r.DayBase
}

// CacheEntry is the persisted state of a PriceCache. Only the scalar fields are
// ever stored.
type CacheEntry struct {
	LastGoodDayPrice     decimal.NullDecimal `json:"lastGoodDayPrice"`
	LastGoodNightPrice   decimal.NullDecimal `json:"lastGoodNightPrice"`
	LastGoodCurrentPrice decimal.NullDecimal `json:"lastGoodCurrentPrice"`
	LastGoodDayBase      decimal.NullDecimal `json:"lastGoodDayBase"`
	LastGoodNightBase    decimal.NullDecimal `json:"lastGoodNightBase"`
	TariffTypeLabel      string              `json:"tariffTypeLabel,omitempty"`
	LastUpdatedAt        time.Time           `json:"lastUpdatedAt"`
	DayUpdatedAt         time.Time           `json:"dayUpdatedAt"`
	NightUpdatedAt       time.Time           `json:"nightUpdatedAt"`
	DayInitialized       bool                `json:"dayInitialized"`
	NightInitialized     bool                `json:"nightInitialized"`
}

// LastGood returns the last good value for the band.
func (e CacheEntry) LastGood(b Band) decimal.NullDecimal {
	if b == BandNight {
		return e.LastGoodNightPrice
	}
	return e.LastGoodDayPrice
}

// LastGoodBase returns the pre-VAT component behind the band's last good value.
func (e CacheEntry) LastGoodBase(b Band) decimal.NullDecimal {
	if b == BandNight {
		return e.LastGoodNightBase
	}
	return e.LastGoodDayBase
}

// Initialized reports whether the band ever received a valid fresh value.
func (e CacheEntry) Initialized(b Band) bool {
	if b == BandNight {
		return e.NightInitialized
	}
	return e.DayInitialized
}

// UpdatedAt returns when the band last received a fresh value.
func (e CacheEntry) UpdatedAt(b Band) time.Time {
	if b == BandNight {
		return e.NightUpdatedAt
	}
	return e.DayUpdatedAt
}

// ResolvedPrice is the currently effective price.
type ResolvedPrice struct {
	Value     decimal.NullDecimal `json:"value"`
	Band      Band                `json:"band"`
	Season    Season              `json:"season"`
	Freshness Freshness           `json:"freshness"`
	AsOf      time.Time           `json:"asOf"`
}

// BandReading is a cache read for a single band. Base is the pre-VAT component
// behind Value.
type BandReading struct {
	Band      Band                `json:"band"`
	Value     decimal.NullDecimal `json:"value"`
	Base      decimal.NullDecimal `json:"base"`
	Freshness Freshness           `json:"freshness"`
	UpdatedAt time.Time           `json:"updatedAt"`
}
