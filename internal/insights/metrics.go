// Package insights holds the pure calculators behind the dashboard: headline
// metrics, the monthly savings trend, expense analysis, insight rules and goal
// plans. Nothing here does I/O; functions that depend on the calendar take an
// explicit now.
package insights

import (
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

var (
	hundred     = decimal.NewFromInt(100)
	budgetShare = decimal.NewFromFloat(0.8)
)

// Totals are the decimal income and expense sums of a transaction list.
type Totals struct {
	Income   decimal.Decimal
	Spending decimal.Decimal
}

// Net is income minus spending.
func (t Totals) Net() decimal.Decimal {
	return t.Income.Sub(t.Spending)
}

// SumTotals partitions txs by type. Transactions of any other type count towards neither sum.
func SumTotals(txs []domain.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		switch tx.Type {
		case domain.TransactionIncome:
			t.Income = t.Income.Add(tx.Amount.Decimal)
		case domain.TransactionExpense:
			t.Spending = t.Spending.Add(tx.Amount.Decimal)
		}
	}
	return t
}

// ComputeMetrics derives the dashboard metrics from one (goals, transactions) pair.
// Ratios are 0 when there is no income.
func ComputeMetrics(goals []domain.Goal, txs []domain.Transaction) domain.Metrics {
	totals := SumTotals(txs)

	m := domain.Metrics{
		TotalSpending: totals.Spending.InexactFloat64(),
		TotalIncome:   totals.Income.InexactFloat64(),
	}
	if totals.Income.IsPositive() {
		m.SavingsRate = totals.Net().Div(totals.Income).Mul(hundred).InexactFloat64()
		budget := totals.Income.Mul(budgetShare)
		m.BudgetUtilization = totals.Spending.Div(budget).Mul(hundred).InexactFloat64()
	}

	var growth float64
	for _, g := range goals {
		if g.IsInvestment() {
			growth += g.ProgressPercent()
		}
	}
	m.InvestmentGrowth = growth
	return m
}
