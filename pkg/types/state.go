package types

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// LocalTimeLayout is used for every timestamp exposed as an attribute.
const LocalTimeLayout = "2006-01-02 15:04:05"

// SensorState is everything handed to the host after a tick: the current price
// plus both band readings and the attributes derived from them.
type SensorState struct {
	Current     ResolvedPrice              `json:"current"`
	Day         BandReading                `json:"day"`
	Night       BandReading                `json:"night"`
	TariffType  string                     `json:"tariffType"`
	Timezone    string                     `json:"timezone"`
	LastUpdated time.Time                  `json:"lastUpdated"`
	Fees        map[string]decimal.Decimal `json:"fees,omitempty"`
	VATPercent  int                        `json:"vatPercent"`
	SourceURL   string                     `json:"sourceURL,omitempty"`
}

// Initialized reports whether the state was produced by a tick.
func (s SensorState) Initialized() bool {
	return !s.Current.AsOf.IsZero()
}

// Reading returns the reading for the band.
func (s SensorState) Reading(b Band) BandReading {
	if b == BandNight {
		return s.Night
	}
	return s.Day
}

// Attributes renders the extra attributes of the current price sensor.
func (s SensorState) Attributes() map[string]any {
	other := s.Reading(s.Current.Band.Other())
	attrs := map[string]any{
		"tariff_type":            s.TariffType,
		"season":                 string(s.Current.Season),
		"day_tariff":             nullableFloat(s.Day.Value),
		"night_tariff":           nullableFloat(s.Night.Value),
		"last_updated":           formatLocal(s.LastUpdated),
		"timezone":               s.Timezone,
		"data_source":            string(s.Current.Freshness),
		"day_last_updated":       formatLocal(s.Day.UpdatedAt),
		"night_last_updated":     formatLocal(s.Night.UpdatedAt),
		"other_band":             string(other.Band),
		"other_band_value":       nullableFloat(other.Value),
		"other_band_data_source": string(other.Freshness),
		"vat_rate":               vatRate(s.VATPercent),
	}
	if s.SourceURL != "" {
		attrs["source_url"] = s.SourceURL
	}
	for name, v := range s.Fees {
		attrs["fee_"+name] = v.InexactFloat64()
	}
	return attrs
}

// BandAttributes renders the attributes of a single band sensor.
func (s SensorState) BandAttributes(b Band) map[string]any {
	r := s.Reading(b)
	attrs := map[string]any{
		"data_source":         string(r.Freshness),
		"last_updated":        formatLocal(r.UpdatedAt),
		"timezone":            s.Timezone,
		"vat_rate":            vatRate(s.VATPercent),
		"base_price_excl_vat": nullableFloat(r.Base),
	}
	if s.SourceURL != "" {
		attrs["source_url"] = s.SourceURL
	}
	return attrs
}

func nullableFloat(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.InexactFloat64()
}

func formatLocal(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(LocalTimeLayout)
}

func vatRate(pct int) string {
	return strconv.Itoa(pct) + "%"
}
