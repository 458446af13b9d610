package metrics

import (
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/raterudder/electrohold/pkg/types"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveFetch(nil)
	m.ObserveFetch(errors.New("boom"))
	m.ObserveFetch(errors.New("boom"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fetches.WithLabelValues(resultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.fetches.WithLabelValues(resultError)))

	m.ObserveExtraction(2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.components))

	day := decimal.NewNullDecimal(decimal.RequireFromString("0.14974"))
	m.ObserveState(types.SensorState{
		Current: types.ResolvedPrice{Value: day, Band: types.BandDay, Freshness: types.FreshnessFresh},
		Day:     types.BandReading{Band: types.BandDay, Value: day, Freshness: types.FreshnessFresh},
		Night:   types.BandReading{Band: types.BandNight, Freshness: types.FreshnessUnavailable},
	})
	assert.Equal(t, 0.14974, testutil.ToFloat64(m.current))
	assert.Equal(t, 0.14974, testutil.ToFloat64(m.prices.WithLabelValues("day")))
	assert.True(t, math.IsNaN(testutil.ToFloat64(m.prices.WithLabelValues("night"))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.freshness.WithLabelValues("night", "unavailable")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.freshness.WithLabelValues("night", "fresh")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.freshness.WithLabelValues("day", "fresh")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveFetch(nil)
		m.ObserveExtraction(1)
		m.ObserveState(types.SensorState{})
	})
}
