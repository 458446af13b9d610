// Package scheduler drives a resolver on two cadences from a single goroutine.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/electrohold/pkg/log"
	"github.com/raterudder/electrohold/pkg/types"
)

// Resolver is the work done on each tick.
type Resolver interface {
	// Refresh fetches new raw data and resolves the current price.
	Refresh(ctx context.Context) types.SensorState
	// Evaluate resolves the current price from cached data.
	Evaluate(ctx context.Context) types.SensorState
}

// Publisher hands each resolved state to the host.
type Publisher interface {
	Publish(ctx context.Context, state types.SensorState) error
}

// Scheduler runs refresh and evaluate ticks. Ticks never overlap: each one runs
// to completion before the next is picked.
type Scheduler struct {
	resolver   Resolver
	publishers []Publisher

	refreshInterval  time.Duration
	evaluateInterval time.Duration

	trigger chan struct{}
}

// New returns a Scheduler with the given intervals.
func New(r Resolver, refreshInterval, evaluateInterval time.Duration, publishers ...Publisher) *Scheduler {
	return &Scheduler{
		resolver:         r,
		publishers:       publishers,
		refreshInterval:  refreshInterval,
		evaluateInterval: evaluateInterval,
		trigger:          make(chan struct{}, 1),
	}
}

// Configured registers the interval flags and returns the Scheduler.
func Configured(r Resolver, publishers ...Publisher) *Scheduler {
	s := New(r, 0, 0, publishers...)
	refresh := lflag.Duration("refresh-interval", 24*time.Hour, "How often to fetch the price page")
	evaluate := lflag.Duration("evaluate-interval", 15*time.Minute, "How often to re-evaluate the active tariff band")

	lflag.Do(func() {
		s.refreshInterval = *refresh
		s.evaluateInterval = *evaluate
		if err := s.Validate(); err != nil {
			panic(fmt.Sprintf("scheduler validation failed: %v", err))
		}
	})

	return s
}

// Validate ensures the intervals are usable.
func (s *Scheduler) Validate() error {
	if s.refreshInterval <= 0 {
		return fmt.Errorf("refresh-interval must be positive")
	}
	if s.evaluateInterval <= 0 {
		return fmt.Errorf("evaluate-interval must be positive")
	}
	return nil
}

// Trigger requests a refresh on the scheduler goroutine. Requests made while
// one is pending are coalesced. It never blocks.
func (s *Scheduler) Trigger() bool {
	select {
	case s.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run refreshes immediately and then ticks until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"starting scheduler",
		slog.Duration("refreshInterval", s.refreshInterval),
		slog.Duration("evaluateInterval", s.evaluateInterval),
	)

	refresh := time.NewTicker(s.refreshInterval)
	defer refresh.Stop()
	evaluate := time.NewTicker(s.evaluateInterval)
	defer evaluate.Stop()

	s.tick(ctx, "refresh", s.resolver.Refresh)
	for {
		select {
		case <-ctx.Done():
			log.Ctx(ctx).InfoContext(ctx, "scheduler stopped")
			return nil
		case <-refresh.C:
			s.tick(ctx, "refresh", s.resolver.Refresh)
		case <-s.trigger:
			s.tick(ctx, "refresh", s.resolver.Refresh)
			refresh.Reset(s.refreshInterval)
		case <-evaluate.C:
			s.tick(ctx, "evaluate", s.resolver.Evaluate)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, kind string, fn func(context.Context) types.SensorState) {
	ctx = log.WithAttrs(ctx, slog.String("tick", kind))
	state := fn(ctx)
	for _, p := range s.publishers {
		if err := p.Publish(ctx, state); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to publish state", slog.Any("error", err))
		}
	}
}
