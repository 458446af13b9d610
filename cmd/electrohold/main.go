package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/levenlabs/go-lflag"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/raterudder/electrohold/pkg/homeassistant"
	"github.com/raterudder/electrohold/pkg/log"
	"github.com/raterudder/electrohold/pkg/metrics"
	"github.com/raterudder/electrohold/pkg/resolver"
	"github.com/raterudder/electrohold/pkg/scheduler"
	"github.com/raterudder/electrohold/pkg/server"
	"github.com/raterudder/electrohold/pkg/storage"
	"github.com/raterudder/electrohold/pkg/utility"
)

func main() {
	// .env is optional, it only seeds env-derived flag defaults
	envErr := godotenv.Load()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// init packages
	src := utility.Configured()
	s := storage.Configured()
	ha := homeassistant.Configured()
	r := resolver.Configured(src, s, m)
	sched := scheduler.Configured(r, ha)

	// init server
	srv := server.Configured(r, sched, reg)

	// parse flags
	lflag.Configure()
	level := log.Configure()
	slog.Debug("logger configured", slog.String("level", level.String()))
	if envErr != nil {
		slog.Debug("no .env file loaded", slog.Any("error", envErr))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = log.WithAttrs(ctx, slog.String("resolverID", r.ID()))

	// If initialization inside lflag.Do failed, we wouldn't be here (panic).
	defer func() {
		if err := s.Close(); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to close storage", slog.Any("error", err))
		}
	}()

	if err := r.Restore(ctx); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to restore cached prices", slog.Any("error", err))
	}

	if ha.Enabled() {
		disconnect, err := ha.Connect(ctx)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to connect to mqtt broker", slog.Any("error", err))
			os.Exit(1)
		}
		defer disconnect()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sched.Run(ctx); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "scheduler failed", slog.Any("error", err))
			cancel()
		}
	}()

	// Run will block until context is canceled or error happens
	if err := srv.Run(ctx); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", slog.Any("error", err))
		cancel()
		wg.Wait()
		os.Exit(1)
	}
	wg.Wait()
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
