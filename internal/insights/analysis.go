package insights

import (
	"sort"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	analysisMonths  = 3
	topExpenseLimit = 3
)

// CategoryAmount is a category with its summed expenses.
type CategoryAmount struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

// ExpenseAnalysis summarises recent cash flow for goal planning.
type ExpenseAnalysis struct {
	TotalExpenses          decimal.Decimal  `json:"totalExpenses"`
	TotalIncome            decimal.Decimal  `json:"totalIncome"`
	MonthlyExpenses        decimal.Decimal  `json:"monthlyExpenses"`
	MonthlyIncome          decimal.Decimal  `json:"monthlyIncome"`
	MonthlySavings         decimal.Decimal  `json:"monthlySavings"`
	TopExpenses            []CategoryAmount `json:"topExpenses"`
	TransactionCount       int              `json:"transactionCount"`
	RecentTransactionCount int              `json:"recentTransactionCount"`
}

// AnalyzeExpenses averages income and expenses over the window starting on the
// first day of the month three months before now. The average always divides
// by three months, even when the history is shorter. MonthlySavings is never
// negative. TopExpenses covers the full history.
func AnalyzeExpenses(txs []domain.Transaction, now time.Time) ExpenseAnalysis {
	windowStart := monthStart(now).AddDate(0, -analysisMonths, 0)

	var recent []domain.Transaction
	for _, tx := range txs {
		if at, ok := tx.Time(); ok && !at.Before(windowStart) {
			recent = append(recent, tx)
		}
	}

	all := SumTotals(txs)
	window := SumTotals(recent)
	months := decimal.NewFromInt(analysisMonths)

	a := ExpenseAnalysis{
		TotalExpenses:          all.Spending,
		TotalIncome:            all.Income,
		MonthlyExpenses:        window.Spending.Div(months),
		MonthlyIncome:          window.Income.Div(months),
		TopExpenses:            topCategories(txs, topExpenseLimit),
		TransactionCount:       len(txs),
		RecentTransactionCount: len(recent),
	}
	a.MonthlySavings = decimal.Max(decimal.Zero, a.MonthlyIncome.Sub(a.MonthlyExpenses))
	return a
}

// ExpensesByCategory sums expenses per category, largest first. Ties are broken
// by category name so the order is deterministic.
func ExpensesByCategory(txs []domain.Transaction) []CategoryAmount {
	sums := map[string]decimal.Decimal{}
	for _, tx := range txs {
		if tx.Type != domain.TransactionExpense {
			continue
		}
		c := tx.CategoryOrDefault()
		sums[c] = sums[c].Add(tx.Amount.Decimal)
	}

	out := make([]CategoryAmount, 0, len(sums))
	for c, amt := range sums {
		out = append(out, CategoryAmount{Category: c, Amount: amt})
	}
	sort.Slice(out, func(i, j int) bool {
		if cmp := out[i].Amount.Cmp(out[j].Amount); cmp != 0 {
			return cmp > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

func topCategories(txs []domain.Transaction, n int) []CategoryAmount {
	all := ExpensesByCategory(txs)
	if len(all) > n {
		all = all[:n]
	}
	return all
}

// CategoryTrend is one row of the spending-by-category view.
type CategoryTrend struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
	Share    float64 `json:"share"`
}

// CategoryTrends lists expense categories with their share of total spending.
func CategoryTrends(txs []domain.Transaction) []CategoryTrend {
	cats := ExpensesByCategory(txs)
	total := decimal.Zero
	for _, c := range cats {
		total = total.Add(c.Amount)
	}

	out := make([]CategoryTrend, 0, len(cats))
	for _, c := range cats {
		t := CategoryTrend{Category: c.Category, Amount: c.Amount.InexactFloat64()}
		if total.IsPositive() {
			t.Share = c.Amount.Div(total).Mul(hundred).Round(1).InexactFloat64()
		}
		out = append(out, t)
	}
	return out
}
