package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/finance-dashboard/internal/app"
	"github.com/dvloznov/finance-dashboard/internal/config"
	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/logger"
	"github.com/dvloznov/finance-dashboard/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// cli holds what every subcommand shares. Services are created on first use
// so offline commands never touch the credential store.
type cli struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log zerolog.Logger
	svc *app.Services
}

func newRootCmd() *cobra.Command {
	c := &cli{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "findash",
		Short: "Personal finance dashboard from the command line",
		Long: `findash talks to the finance backend: log in, add goals and transactions,
view metrics and insights, run voice-style commands, parse receipts and
analyze stocks.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			level := cfg.Log.Level
			if !c.verbose {
				level = "warn"
			}
			c.log = logger.NewWithConfig(cmd.ErrOrStderr(), level, "console")
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if c.svc != nil {
				return c.svc.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to config.toml")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Log at the configured level instead of warn")

	root.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.profileCmd(),
		c.snapshotCmd(),
		c.metricsCmd(),
		c.insightsCmd(),
		c.goalsCmd(),
		c.transactionsCmd(),
		c.commandCmd(),
		c.stocksCmd(),
		c.receiptCmd(),
		c.historyCmd(),
		c.watchCmd(),
		c.exportCmd(),
	)
	return root
}

func (c *cli) services(ctx context.Context) (*app.Services, error) {
	if c.svc != nil {
		return c.svc, nil
	}
	svc, err := app.New(ctx, c.cfg, c.log)
	if err != nil {
		return nil, err
	}
	c.svc = svc
	return svc, nil
}

// loadStore returns a store holding one fresh snapshot. A partially failed
// refresh is reported and the half that loaded is used.
func (c *cli) loadStore(ctx context.Context) (*store.Store, error) {
	svc, err := c.services(ctx)
	if err != nil {
		return nil, err
	}
	s := svc.NewStore(events.NewBus(c.log))
	if err := s.RefreshData(ctx); err != nil {
		var re *store.RefreshError
		if !errors.As(err, &re) || !re.Partial() {
			s.Destroy()
			return nil, err
		}
		c.log.Warn().Err(err).Msg("Showing partial data")
	}
	return s, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
