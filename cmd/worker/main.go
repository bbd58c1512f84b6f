// Command worker keeps a shared data store polling the backend without
// serving HTTP and records every refresh into the BigQuery metrics history.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/finance-dashboard/internal/app"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/history"
	infraBQ "github.com/dvloznov/finance-dashboard/internal/infra/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "Path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewWithConfig(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	if !cfg.BigQuery.Enabled {
		log.Fatal().Msg("bigquery.enabled must be set: the worker only records metrics history")
	}

	// Create context that cancels on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	svc, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	repo, err := infraBQ.NewMetricsHistoryRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create metrics history repository")
	}
	defer repo.Close()

	if err := repo.EnsureTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure metrics history table")
	}

	bus := events.NewBus(log)
	bus.Subscribe(events.Error, func(e events.Event) {
		if p, ok := e.Payload.(events.ErrorPayload); ok {
			log.Warn().Str("op", p.Op).Str("error", p.Message).Msg("Store reported an error")
		}
	})

	recorder := history.NewRecorder(repo, history.Config{MinInterval: cfg.BigQuery.MinInterval}, log)
	recorder.Attach(bus)

	dataStore := svc.NewStore(bus)
	if err := dataStore.Initialize(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start shared data store")
	}

	log.Info().
		Dur("refresh_interval", cfg.Store.RefreshInterval).
		Dur("min_interval", cfg.BigQuery.MinInterval).
		Str("table", cfg.BigQuery.Dataset+"."+cfg.BigQuery.Table).
		Msg("Worker started, recording metrics history...")

	// Blocks until interrupted
	if err := recorder.Run(ctx); err != nil {
		log.Error().Err(err).Msg("Recorder stopped with error")
	}

	log.Info().Msg("Shutting down worker...")
	dataStore.Destroy()

	written, dropped := recorder.Stats()
	log.Info().Int("written", written).Int("dropped", dropped).Msg("Worker exited")
}
