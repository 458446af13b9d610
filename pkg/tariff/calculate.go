package tariff

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/raterudder/electrohold/pkg/types"
)

const (
	// DefaultPrecision is the number of fractional digits kept after VAT.
	DefaultPrecision int32 = 5
)

// VATMultiplier converts a pre-VAT price into a consumer price (20% VAT).
var VATMultiplier = decimal.RequireFromString("1.2")

// VATPercent returns the VAT rate implied by VATMultiplier.
func VATPercent() int {
	return int(VATMultiplier.Sub(decimal.NewFromInt(1)).Mul(decimal.NewFromInt(100)).IntPart())
}

// Calculator applies VAT to extracted components.
type Calculator struct {
	Precision int32
}

// NewCalculator returns a Calculator rounding to DefaultPrecision.
func NewCalculator() Calculator {
	return Calculator{Precision: DefaultPrecision}
}

// Price returns the VAT-inclusive price of a component. A zero component is
// treated as absent.
func (c Calculator) Price(component decimal.Decimal, ok bool) decimal.NullDecimal {
	if !ok || component.IsZero() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(component.Mul(VATMultiplier).Round(c.Precision))
}

// Resolve computes day, night and fee prices from the components.
func (c Calculator) Resolve(components types.TariffComponents, at time.Time) types.ResolvedTariffs {
	r := types.ResolvedTariffs{
		DayPrice:   c.Price(components.Get(types.ComponentDayBase)),
		NightPrice: c.Price(components.Get(types.ComponentNightBase)),
		ComputedAt: at,
	}
	if r.DayPrice.Valid {
		r.DayBase = decimal.NewNullDecimal(components[types.ComponentDayBase])
	}
	if r.NightPrice.Valid {
		r.NightBase = decimal.NewNullDecimal(components[types.ComponentNightBase])
	}
	for name, v := range components {
		if name == types.ComponentDayBase || name == types.ComponentNightBase {
			continue
		}
		p := c.Price(v, true)
		if !p.Valid {
			continue
		}
		if r.Fees == nil {
			r.Fees = make(map[string]decimal.Decimal)
		}
		r.Fees[name] = p.Decimal
	}
	return r
}
