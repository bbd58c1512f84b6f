package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/notionsync"
	"github.com/spf13/cobra"
)

func (c *cli) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the store polling and print every event as a JSON line",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := c.services(ctx)
			if err != nil {
				return err
			}

			var mu sync.Mutex
			enc := json.NewEncoder(cmd.OutOrStdout())
			bus := events.NewBus(c.log)
			bus.SubscribeAll(func(e events.Event) {
				mu.Lock()
				defer mu.Unlock()
				if err := enc.Encode(e); err != nil {
					c.log.Warn().Err(err).Str("event", string(e.Type)).Msg("Failed to write event")
				}
			})

			s := svc.NewStore(bus)
			defer s.Destroy()
			if err := s.Initialize(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return nil
		},
	}
}

func (c *cli) exportCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export goals and transactions to the configured Notion databases",
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Notion.Token == "" {
				return fmt.Errorf("notion.token is required")
			}
			if c.cfg.Notion.GoalsDB == "" && c.cfg.Notion.TransactionsDB == "" {
				return fmt.Errorf("notion.goals_db or notion.transactions_db is required")
			}

			s, err := c.loadStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Destroy()

			exporter := notionsync.NewExporter(notionsync.NewNotionClient(c.cfg.Notion.Token), notionsync.Config{
				GoalsDatabaseID:        c.cfg.Notion.GoalsDB,
				TransactionsDatabaseID: c.cfg.Notion.TransactionsDB,
				DryRun:                 dryRun,
			}, c.log)
			report, err := exporter.Export(cmd.Context(), s.Snapshot())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview changes without writing to Notion")
	return cmd
}
