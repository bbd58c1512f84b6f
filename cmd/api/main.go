package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/advisor"
	"github.com/dvloznov/finance-dashboard/internal/api/handlers"
	"github.com/dvloznov/finance-dashboard/internal/apiclient"
	"github.com/dvloznov/finance-dashboard/internal/app"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/gcsuploader"
	"github.com/dvloznov/finance-dashboard/internal/history"
	infraBQ "github.com/dvloznov/finance-dashboard/internal/infra/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/intent"
	"github.com/dvloznov/finance-dashboard/internal/jobs/inmemory"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/receipt"
	"github.com/dvloznov/finance-dashboard/internal/store"
	"github.com/dvloznov/finance-dashboard/internal/telemetry"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const historyMemoryLimit = 500

func main() {
	configPath := flag.String("config", "", "Path to config.toml (defaults to ./config.toml or ~/.config/findash)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.NewWithConfig(os.Stdout, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Dashboard server failed")
	}
	log.Info().Msg("Server exited")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	collector := telemetry.NewCollector(true)

	svc, err := app.New(ctx, cfg, log, apiclient.WithObserver(collector))
	if err != nil {
		return err
	}
	defer svc.Close()

	bus := events.NewBus(log)
	bus.SetObserver(collector)
	dataStore := svc.NewStore(bus, store.WithRefreshObserver(collector))
	defer dataStore.Destroy()

	// Receipt scanning
	var extractor receipt.TextExtractor
	if cfg.Gemini.APIKey != "" {
		gemini, err := receipt.NewGeminiExtractor(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		extractor = gemini
	} else {
		log.Warn().Msg("No Gemini API key configured - scan jobs will fail, text parsing still works")
	}
	scanner := receipt.NewScanner(extractor, log)

	var images receipt.ImageStore
	if cfg.GCS.Bucket != "" {
		bucket, err := gcsuploader.NewBucketStore(ctx, cfg.GCS.Bucket, cfg.GCS.Prefix)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		defer bucket.Close()
		images = bucket
	} else {
		log.Warn().Msg("No GCS bucket configured - receipt images are kept in memory")
		images = gcsuploader.NewMemoryStore()
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(inmemory.Config{
		BufferSize: cfg.Jobs.BufferSize,
		Workers:    cfg.Jobs.Workers,
	}, jobStore, log)
	processor := receipt.NewProcessor(images, scanner, dataStore, log)

	// Metrics history
	var (
		sink   history.Sink
		reader history.Reader
	)
	if cfg.BigQuery.Enabled {
		repo, err := infraBQ.NewMetricsHistoryRepository(ctx, cfg.BigQuery.ProjectID, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}
		defer repo.Close()
		if err := repo.EnsureTable(ctx); err != nil {
			return fmt.Errorf("run: %w", err)
		}
		sink, reader = repo, repo
	} else {
		mem := history.NewMemorySink(historyMemoryLimit)
		sink, reader = mem, mem
	}
	recorder := history.NewRecorder(sink, history.Config{MinInterval: cfg.BigQuery.MinInterval}, log)
	recorder.Attach(bus)

	eventsHandler := handlers.NewEventsHandler(dataStore, log)
	router := handlers.NewRouter(handlers.Deps{
		Store:     dataStore,
		Planner:   svc.Goals,
		Stocks:    advisor.NewAnalyzer(advisor.MockPrices{}, log),
		Commands:  intent.NewExecutor(dataStore, log),
		Scanner:   scanner,
		Images:    images,
		Publisher: jobQueue,
		Jobs:      jobStore,
		History:   reader,
		Events:    eventsHandler,
		Metrics:   collector.Handler(),
		APIKey:    cfg.Server.APIKey,
	}, log)

	if cfg.Server.APIKey == "" {
		log.Warn().Msg("No server API key configured - the dashboard API is open")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	server.RegisterOnShutdown(eventsHandler.Close)

	if err := dataStore.Initialize(ctx); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if err := jobQueue.Start(gctx, processor.HandleJob); err != nil {
		return fmt.Errorf("run: start job queue: %w", err)
	}

	g.Go(func() error {
		return recorder.Run(gctx)
	})

	g.Go(func() error {
		log.Info().Str("port", cfg.Server.Port).Msg("Starting dashboard server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		// Graceful shutdown
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}

		// Stop job queue and wait for in-flight jobs
		if err := jobQueue.Stop(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("stop job queue: %w", err))
		}

		written, dropped := recorder.Stats()
		log.Info().Int("history_written", written).Int("history_dropped", dropped).Msg("Metrics history recorder stopped")
		return errors.Join(errs...)
	})

	return g.Wait()
}
