// Package resolver turns the fetched price page into the currently effective
// tariff, falling back to the last known-good prices when a refresh fails.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/raterudder/electrohold/pkg/cache"
	"github.com/raterudder/electrohold/pkg/log"
	"github.com/raterudder/electrohold/pkg/metrics"
	"github.com/raterudder/electrohold/pkg/season"
	"github.com/raterudder/electrohold/pkg/storage"
	"github.com/raterudder/electrohold/pkg/tariff"
	"github.com/raterudder/electrohold/pkg/types"
	"github.com/raterudder/electrohold/pkg/utility"
)

// DefaultID names the resolver when only one is configured.
const DefaultID = "default"

// Config holds the collaborators of a Resolver. Source and Clock are required;
// everything else has a default.
type Config struct {
	ID         string
	Source     utility.Source
	Clock      *season.Clock
	Extractor  *tariff.Extractor
	Calculator *tariff.Calculator
	Cache      *cache.PriceCache
	Store      storage.Store
	Metrics    *metrics.Metrics
}

// Resolver owns one PriceCache and is the only code that writes to it.
// Refresh and Evaluate must not be called concurrently; the scheduler
// serializes them. State is safe to call from any goroutine.
type Resolver struct {
	id         string
	source     utility.Source
	clock      *season.Clock
	extractor  *tariff.Extractor
	calculator tariff.Calculator
	cache      *cache.PriceCache
	store      storage.Store
	metrics    *metrics.Metrics

	mu    sync.Mutex
	state types.SensorState
}

// New returns a resolver in the not-yet-initialized state. It performs no I/O.
func New(cfg Config) *Resolver {
	r := &Resolver{
		id:         cfg.ID,
		source:     cfg.Source,
		clock:      cfg.Clock,
		extractor:  cfg.Extractor,
		calculator: tariff.NewCalculator(),
		cache:      cfg.Cache,
		store:      cfg.Store,
		metrics:    cfg.Metrics,
	}
	if r.id == "" {
		r.id = DefaultID
	}
	if r.clock == nil {
		r.clock = season.NewClock(nil)
	}
	if r.extractor == nil {
		r.extractor = tariff.NewExtractor()
	}
	if cfg.Calculator != nil {
		r.calculator = *cfg.Calculator
	}
	if r.cache == nil {
		r.cache = cache.New()
	}
	if r.store == nil {
		r.store = storage.Nop{}
	}
	return r
}

// ID returns the resolver's identifier.
func (r *Resolver) ID() string {
	return r.id
}

// Restore seeds the cache from the store. A missing snapshot is not an error.
func (r *Resolver) Restore(ctx context.Context) error {
	entry, ok, err := r.store.GetSnapshot(ctx, r.id)
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if !ok {
		log.Ctx(ctx).DebugContext(ctx, "no stored snapshot", slog.String("resolverID", r.id))
		return nil
	}
	r.cache.Restore(entry)
	log.Ctx(ctx).InfoContext(
		ctx,
		"restored price cache",
		slog.String("resolverID", r.id),
		slog.Bool("day", entry.DayInitialized),
		slog.Bool("night", entry.NightInitialized),
		slog.Time("lastUpdatedAt", entry.LastUpdatedAt),
	)
	return nil
}

// Refresh fetches and parses the price page, updates the cache and resolves the
// current price. Failures never propagate: they degrade the freshness of the
// returned state instead.
func (r *Resolver) Refresh(ctx context.Context) types.SensorState {
	now := r.clock.Now()

	components := types.TariffComponents{}
	doc, err := r.source.Fetch(ctx)
	r.metrics.ObserveFetch(err)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to fetch price page, serving cached prices", slog.Any("error", err))
	} else {
		components = r.extractor.Extract(ctx, doc)
	}
	r.metrics.ObserveExtraction(len(components))

	resolved := r.calculator.Resolve(components, now)
	r.cache.Observe(resolved)
	log.Ctx(ctx).InfoContext(
		ctx,
		"refreshed tariffs",
		slog.String("day", nullString(resolved.DayPrice)),
		slog.String("night", nullString(resolved.NightPrice)),
		slog.Int("components", len(components)),
	)

	state := r.evaluate(ctx, now)

	if err := r.store.SaveSnapshot(ctx, r.id, r.cache.Snapshot()); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to save snapshot", slog.Any("error", err))
	}
	return state
}

// Evaluate re-resolves the current price from cached data. The active band can
// change between refreshes as time passes.
func (r *Resolver) Evaluate(ctx context.Context) types.SensorState {
	return r.evaluate(ctx, r.clock.Now())
}

func (r *Resolver) evaluate(ctx context.Context, now time.Time) types.SensorState {
	loc := r.clock.Location()
	now = now.In(loc)

	s, band := r.clock.Classify(now)
	value, freshness := r.cache.ReadForBand(band)
	current := types.ResolvedPrice{
		Value:     value,
		Band:      band,
		Season:    s,
		Freshness: freshness,
		AsOf:      now,
	}
	label := season.Label(s, band)
	r.cache.RecordCurrent(current, label)

	day := r.cache.Reading(types.BandDay)
	day.UpdatedAt = day.UpdatedAt.In(loc)
	night := r.cache.Reading(types.BandNight)
	night.UpdatedAt = night.UpdatedAt.In(loc)

	state := types.SensorState{
		Current:     current,
		Day:         day,
		Night:       night,
		TariffType:  label,
		Timezone:    loc.String(),
		LastUpdated: r.cache.Snapshot().LastUpdatedAt.In(loc),
		Fees:        r.cache.Fees(),
		VATPercent:  tariff.VATPercent(),
		SourceURL:   r.source.URL(),
	}
	r.metrics.ObserveState(state)

	r.mu.Lock()
	r.state = state
	r.mu.Unlock()

	log.Ctx(ctx).DebugContext(
		ctx,
		"resolved current price",
		slog.String("value", nullString(value)),
		slog.String("band", string(band)),
		slog.String("season", string(s)),
		slog.String("freshness", string(freshness)),
	)
	return state
}

// State returns the most recently resolved state. Before the first tick it is
// the zero value and Initialized reports false.
func (r *Resolver) State() types.SensorState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "absent"
	}
	return d.Decimal.String()
}
