// Package metrics exposes resolver state as Prometheus metrics.
package metrics

import (
	"math"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/raterudder/electrohold/pkg/types"
)

const (
	metricPrefix = "electrohold_"

	resultSuccess = "success"
	resultError   = "error"
)

var freshnessValues = []types.Freshness{
	types.FreshnessFresh,
	types.FreshnessCached,
	types.FreshnessUnavailable,
}

// Metrics records prices, freshness and fetch outcomes. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	prices     *prometheus.GaugeVec
	current    prometheus.Gauge
	freshness  *prometheus.GaugeVec
	fetches    *prometheus.CounterVec
	components prometheus.Gauge
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		prices: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "price_eur_per_kwh",
				Help: "VAT-inclusive price by band, NaN when unavailable",
			},
			[]string{"band"},
		),
		current: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "current_price_eur_per_kwh",
				Help: "Currently effective VAT-inclusive price, NaN when unavailable",
			},
		),
		freshness: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "band_freshness",
				Help: "1 for the freshness each band is currently served with",
			},
			[]string{"band", "freshness"},
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "fetch_total",
				Help: "Price page fetches by result",
			},
			[]string{"result"},
		),
		components: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: metricPrefix + "extracted_components",
				Help: "Number of tariff components found on the latest refresh",
			},
		),
	}
	reg.MustRegister(m.prices, m.current, m.freshness, m.fetches, m.components)
	return m
}

// ObserveFetch counts a fetch attempt.
func (m *Metrics) ObserveFetch(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.fetches.WithLabelValues(resultError).Inc()
		return
	}
	m.fetches.WithLabelValues(resultSuccess).Inc()
}

// ObserveExtraction records how many components the latest refresh found.
func (m *Metrics) ObserveExtraction(n int) {
	if m == nil {
		return
	}
	m.components.Set(float64(n))
}

// ObserveState records the prices and freshness of a resolved state.
func (m *Metrics) ObserveState(s types.SensorState) {
	if m == nil {
		return
	}
	m.current.Set(value(s.Current.Value.Valid, s.Current.Value.Decimal.InexactFloat64()))
	for _, r := range []types.BandReading{s.Day, s.Night} {
		m.prices.WithLabelValues(string(r.Band)).Set(value(r.Value.Valid, r.Value.Decimal.InexactFloat64()))
		for _, f := range freshnessValues {
			v := 0.0
			if f == r.Freshness {
				v = 1
			}
			m.freshness.WithLabelValues(string(r.Band), string(f)).Set(v)
		}
	}
}

func value(ok bool, v float64) float64 {
	if !ok {
		return math.NaN()
	}
	return v
}
