package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/insights"
	"github.com/dvloznov/finance-dashboard/internal/intent"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func (c *cli) snapshotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot",
		Short: "Print goals, transactions and metrics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Destroy()
			return printJSON(cmd.OutOrStdout(), s.Snapshot())
		},
	}
}

func (c *cli) metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show the dashboard metrics and this month's savings trend",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Destroy()

			m := s.Metrics()
			trend := insights.MonthlySavingsTrend(s.Transactions(), time.Now())

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "Total income\t%s\n", insights.FormatRupees(decimal.NewFromFloat(m.TotalIncome)))
			fmt.Fprintf(w, "Total spending\t%s\n", insights.FormatRupees(decimal.NewFromFloat(m.TotalSpending)))
			fmt.Fprintf(w, "Savings rate\t%.1f%%\n", m.SavingsRate)
			fmt.Fprintf(w, "Budget utilization\t%.1f%%\n", m.BudgetUtilization)
			fmt.Fprintf(w, "Investment growth\t%.1f%%\n", m.InvestmentGrowth)
			fmt.Fprintf(w, "Savings this month\t%s (%s)\n", insights.FormatRupees(decimal.NewFromFloat(trend.CurrentMonth)), trend.Trend)
			return w.Flush()
		},
	}
}

func (c *cli) insightsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Generate insights from the current data",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Destroy()

			report := insights.BuildReport(s.InsightsData(), time.Now())
			out := cmd.OutOrStdout()
			if len(report.Insights) == 0 {
				fmt.Fprintln(out, "Nothing to report.")
			}
			for _, in := range report.Insights {
				fmt.Fprintf(out, "[%s] %s: %s\n", in.Kind, in.Title, in.Description)
			}
			if suggestion := insights.SuggestGoal(s.Transactions()); suggestion != "" {
				fmt.Fprintf(out, "\nSuggested goal: %s\n", suggestion)
			}
			return nil
		},
	}
}

func (c *cli) goalsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "List, add and plan goals",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List goals",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}

			// A failed fetch is logged by List and prints an empty table.
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tTYPE\tTARGET\tPROGRESS\tTIMELINE")
			for _, g := range svc.Goals.List(cmd.Context()) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.0f%%\t%s\n", g.ID, g.Title, g.Type, insights.FormatRupees(g.Amount.Decimal), g.ProgressPercent(), g.Timeline)
			}
			return w.Flush()
		},
	}

	var in domain.GoalInput
	var amount, goalType string
	var progress float64
	add := &cobra.Command{
		Use:   "add",
		Short: "Create a goal",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := domain.ParseMoney(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			in.Amount = m
			in.Type = domain.GoalType(goalType)
			if cmd.Flags().Changed("progress") {
				in.Progress = &progress
			}

			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			goal, err := svc.Goals.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), goal)
		},
	}
	add.Flags().StringVar(&in.Title, "title", "", "Goal title")
	add.Flags().StringVar(&amount, "amount", "", "Target amount, e.g. 100000 or ₹1,00,000")
	add.Flags().StringVar(&goalType, "type", string(domain.GoalShortTerm), "Short-Term or Long-Term")
	add.Flags().StringVar(&in.Timeline, "timeline", "", "Free-form timeline, e.g. 2027 or 18 months")
	add.Flags().StringVar(&in.Category, "category", "", "Goal category, e.g. Investment")
	add.Flags().Float64Var(&progress, "progress", 0, "Current progress in percent")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("amount")

	var remote bool
	plan := &cobra.Command{
		Use:   "plan <goal-id>",
		Short: "Show a savings plan for a goal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote {
				svc, err := c.services(cmd.Context())
				if err != nil {
					return err
				}
				p, err := svc.Goals.GeneratePlan(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p.Plan)
				return nil
			}

			s, err := c.loadStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Destroy()

			now := time.Now()
			for _, g := range s.Goals() {
				if g.ID == args[0] {
					p := insights.BuildGoalPlan(g, insights.AnalyzeExpenses(s.Transactions(), now), now)
					return printJSON(cmd.OutOrStdout(), p)
				}
			}
			return fmt.Errorf("goal %s not found", args[0])
		},
	}
	plan.Flags().BoolVar(&remote, "remote", false, "Ask the backend to write the plan")

	cmd.AddCommand(list, add, plan)
	return cmd
}

func (c *cli) transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List and add transactions",
	}

	var typ string
	list := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
			for _, tx := range svc.Transactions.List(cmd.Context()) {
				if typ != "" && string(tx.Type) != typ {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", tx.Date, tx.Type, insights.FormatRupees(tx.Amount.Decimal), tx.CategoryOrDefault(), tx.Description)
			}
			return w.Flush()
		},
	}
	list.Flags().StringVar(&typ, "type", "", "Only income or expense")

	var in domain.TransactionInput
	var amount, txType string
	add := &cobra.Command{
		Use:   "add",
		Short: "Record a transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := domain.ParseMoney(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			in.Amount = m
			in.Type = domain.TransactionType(txType)
			if in.Date == "" {
				in.Date = time.Now().Format(domain.DateLayout)
			}

			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			tx, err := svc.Transactions.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), tx)
		},
	}
	add.Flags().StringVar(&txType, "type", string(domain.TransactionExpense), "income or expense")
	add.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 450 or ₹1,200")
	add.Flags().StringVar(&in.Category, "category", "", "Category (defaults to "+domain.DefaultCategory+")")
	add.Flags().StringVar(&in.Description, "description", "", "Description")
	add.Flags().StringVar(&in.Date, "date", "", "Date as YYYY-MM-DD (defaults to today)")
	_ = add.MarkFlagRequired("amount")
	_ = add.MarkFlagRequired("description")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show backend totals and the category breakdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), svc.Transactions.Stats(cmd.Context()))
		},
	}

	cmd.AddCommand(list, add, stats)
	return cmd
}

func (c *cli) commandCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "say <text>",
		Short: "Run a spoken-style command",
		Long:  "Run a spoken-style command. Examples:\n  " + strings.Join(intent.Examples, "\n  "),
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.loadStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Destroy()

			outcome, err := intent.NewExecutor(s, c.log).Execute(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), outcome)
		},
	}
}
