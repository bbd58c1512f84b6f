package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/app"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/notionsync"
)

func main() {
	// Parse CLI flags
	configPath := flag.String("config", "", "Path to config.toml")
	notionToken := flag.String("notion-token", "", "Notion API token (overrides notion.token)")
	goalsDB := flag.String("goals-db", "", "Notion goals database ID (overrides notion.goals_db)")
	transactionsDB := flag.String("transactions-db", "", "Notion transactions database ID (overrides notion.transactions_db)")
	dryRun := flag.Bool("dry-run", false, "Dry run mode - preview changes without syncing")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.NewWithConfig(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	if *notionToken != "" {
		cfg.Notion.Token = *notionToken
	}
	if *goalsDB != "" {
		cfg.Notion.GoalsDB = *goalsDB
	}
	if *transactionsDB != "" {
		cfg.Notion.TransactionsDB = *transactionsDB
	}

	// Validate required settings
	if cfg.Notion.Token == "" {
		log.Fatal().Msg("Error: --notion-token or notion.token is required")
	}
	if cfg.Notion.GoalsDB == "" && cfg.Notion.TransactionsDB == "" {
		log.Fatal().Msg("Error: at least one of --goals-db and --transactions-db is required")
	}

	// Create context with timeout so CLI doesn't hang
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Add logger to context
	ctx = logger.WithContext(ctx, log)

	svc, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer svc.Close()

	// One refresh, no polling.
	dataStore := svc.NewStore(events.NewBus(log))
	defer dataStore.Destroy()
	if err := dataStore.RefreshData(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to load goals and transactions")
	}

	log.Info().
		Bool("dry_run", *dryRun).
		Int("goals", len(dataStore.Goals())).
		Int("transactions", len(dataStore.Transactions())).
		Msg("Starting Notion sync")

	exporter := notionsync.NewExporter(notionsync.NewNotionClient(cfg.Notion.Token), notionsync.Config{
		GoalsDatabaseID:        cfg.Notion.GoalsDB,
		TransactionsDatabaseID: cfg.Notion.TransactionsDB,
		DryRun:                 *dryRun,
	}, log)

	report, err := exporter.Export(ctx, dataStore.Snapshot())
	if err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
}
