package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dvloznov/finance-dashboard/internal/advisor"
	infraBQ "github.com/dvloznov/finance-dashboard/internal/infra/bigquery"
	"github.com/dvloznov/finance-dashboard/internal/receipt"
	"github.com/spf13/cobra"
)

func (c *cli) stocksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stocks <symbol>",
		Short: "Buy, sell or hold recommendation for a stock symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			analysis, err := advisor.NewAnalyzer(advisor.MockPrices{}, c.log).Analyze(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", analysis.Symbol, analysis.Recommendation)
			fmt.Fprintf(out, "last %s, average of previous closes %s\n", analysis.Last.StringFixed(2), analysis.Average.StringFixed(2))
			return nil
		},
	}
}

func (c *cli) receiptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receipt",
		Short: "Parse receipts into expenses",
	}

	var confidence float64
	parse := &cobra.Command{
		Use:   "parse <text-file>",
		Short: "Parse OCR text from a file (- for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				text []byte
				err  error
			)
			if args[0] == "-" {
				text, err = io.ReadAll(cmd.InOrStdin())
			} else {
				text, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			result := receipt.NewScanner(nil, c.log).ParseText(string(text), confidence)
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	parse.Flags().Float64Var(&confidence, "confidence", 1.0, "OCR confidence between 0 and 1")

	var record bool
	scan := &cobra.Command{
		Use:   "scan <image>",
		Short: "Run OCR on a receipt image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.Gemini.APIKey == "" {
				return fmt.Errorf("gemini.api_key is required for scanning")
			}
			image, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}

			extractor, err := receipt.NewGeminiExtractor(cmd.Context(), c.cfg.Gemini.APIKey, c.cfg.Gemini.Model)
			if err != nil {
				return err
			}
			result, err := receipt.NewScanner(extractor, c.log).Scan(cmd.Context(), image, http.DetectContentType(image))
			if err != nil {
				return err
			}
			result.Receipt.ImageURI = "file://" + absPath(args[0])

			if record {
				if !result.Validation.Valid {
					return fmt.Errorf("receipt is not valid: %v", result.Validation.Errors)
				}
				svc, err := c.services(cmd.Context())
				if err != nil {
					return err
				}
				tx, err := svc.Transactions.Create(cmd.Context(), result.Receipt.TransactionInput())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Recorded expense %s\n", tx.ID)
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	scan.Flags().BoolVar(&record, "record", false, "Create an expense from a valid receipt")

	cmd.AddCommand(parse, scan)
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage the BigQuery metrics history",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, args); err != nil {
				return err
			}
			if !c.cfg.BigQuery.Enabled {
				return fmt.Errorf("bigquery.enabled must be set")
			}
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Create the metrics history table if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := infraBQ.NewMetricsHistoryRepository(cmd.Context(), c.cfg.BigQuery.ProjectID, c.cfg.BigQuery.Dataset, c.cfg.BigQuery.Table)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.EnsureTable(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table %s.%s.%s is ready\n", c.cfg.BigQuery.ProjectID, c.cfg.BigQuery.Dataset, c.cfg.BigQuery.Table)
			return nil
		},
	}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "Show recent metrics samples",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := infraBQ.NewMetricsHistoryRepository(cmd.Context(), c.cfg.BigQuery.ProjectID, c.cfg.BigQuery.Dataset, c.cfg.BigQuery.Table)
			if err != nil {
				return err
			}
			defer repo.Close()

			entries, err := repo.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RECORDED\tINCOME\tSPENDING\tSAVINGS RATE\tTREND")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%.0f\t%.0f\t%.1f%%\t%s\n",
					e.RecordedAt.Local().Format("2006-01-02 15:04"),
					e.Metrics.TotalIncome, e.Metrics.TotalSpending, e.Metrics.SavingsRate, e.Trend)
			}
			return w.Flush()
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Number of samples to show")

	cmd.AddCommand(initCmd, list)
	return cmd
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
