package resolver

import (
	"context"
	"log/slog"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/electrohold/pkg/log"
	"github.com/raterudder/electrohold/pkg/metrics"
	"github.com/raterudder/electrohold/pkg/season"
	"github.com/raterudder/electrohold/pkg/storage"
	"github.com/raterudder/electrohold/pkg/tariff"
	"github.com/raterudder/electrohold/pkg/utility"
)

// Configured registers the timezone, resolver ID and fee rule flags and returns
// a Resolver that is completed once flags are parsed.
func Configured(source utility.Source, store storage.Store, m *metrics.Metrics) *Resolver {
	r := New(Config{Source: source, Store: store, Metrics: m})

	timezone := lflag.String("timezone", season.DefaultTimezone, "IANA timezone used to pick the tariff band")
	id := lflag.String("resolver-id", DefaultID, "Identifier used to persist this resolver's cached prices")
	var fees []tariff.Rule
	lflag.JSON(&fees, "fee-rules", fees, `JSON list of extra components to extract, e.g. [{"component":"network","keyword":"Мрежови","max":"0.05"}]`)

	lflag.Do(func() {
		ctx := context.Background()
		loc, err := season.LoadLocation(*timezone)
		if err != nil {
			log.Ctx(ctx).WarnContext(
				ctx,
				"invalid timezone, using default",
				slog.String("timezone", *timezone),
				slog.String("default", season.DefaultTimezone),
				slog.Any("error", err),
			)
		}
		r.clock = season.NewClock(loc)
		if *id != "" {
			r.id = *id
		}
		r.extractor = tariff.NewExtractor(fees...)
	})

	return r
}
