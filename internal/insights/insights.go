package insights

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// Kind classifies an insight for presentation.
type Kind string

const (
	KindWarning        Kind = "warning"
	KindOpportunity    Kind = "opportunity"
	KindRecommendation Kind = "recommendation"
	KindAlert          Kind = "alert"
)

// Insight is one generated observation about the user's finances.
type Insight struct {
	Kind        Kind   `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Change      string `json:"change"`
	Trend       Trend  `json:"trend"`
}

// Thresholds used by GenerateInsights, as percentages.
const (
	SpendingChangeThreshold    = 10
	TargetSavingsRate          = 20
	InvestmentProgressFloor    = 50
	BudgetUtilizationThreshold = 80
)

// Report bundles everything the insights view shows.
type Report struct {
	Metrics  domain.Metrics  `json:"metrics"`
	Trend    SavingsTrend    `json:"savingsTrend"`
	Insights []Insight       `json:"insights"`
	Trends   []CategoryTrend `json:"categoryTrends"`
}

// BuildReport computes metrics, trend, insights and category trends for snap.
func BuildReport(snap domain.Snapshot, now time.Time) Report {
	return Report{
		Metrics:  ComputeMetrics(snap.Goals, snap.Transactions),
		Trend:    MonthlySavingsTrend(snap.Transactions, now),
		Insights: GenerateInsights(snap, now),
		Trends:   CategoryTrends(snap.Transactions),
	}
}

// GenerateInsights applies the insight rules to snap, in a fixed order:
// spending change, savings opportunity, investment recommendation, budget alert.
// Metrics are recomputed from the snapshot's goals and transactions.
func GenerateInsights(snap domain.Snapshot, now time.Time) []Insight {
	out := []Insight{}
	totals := SumTotals(snap.Transactions)
	metrics := ComputeMetrics(snap.Goals, snap.Transactions)

	if change, ok := spendingChange(snap.Transactions, now); ok && change.GreaterThan(decimal.NewFromInt(SpendingChangeThreshold)) {
		pct := change.Round(0)
		out = append(out, Insight{
			Kind:        KindWarning,
			Title:       "Spending Pattern Analysis",
			Description: fmt.Sprintf("Your expenses increased by %s%% this month compared to last month", pct.Abs().String()),
			Change:      "+" + pct.String() + "%",
			Trend:       TrendUp,
		})
	}

	if metrics.SavingsRate < TargetSavingsRate {
		target := totals.Income.Mul(decimal.NewFromInt(TargetSavingsRate)).Div(hundred)
		potential := target.Sub(totals.Net())
		if potential.IsPositive() {
			out = append(out, Insight{
				Kind:        KindOpportunity,
				Title:       "Savings Opportunity",
				Description: fmt.Sprintf("You can save %s more by reducing expenses", FormatRupees(potential)),
				Change:      FormatRupees(potential),
				Trend:       TrendUp,
			})
		}
	}

	if avg, ok := averageInvestmentProgress(snap.Goals); ok && avg < InvestmentProgressFloor {
		out = append(out, Insight{
			Kind:        KindRecommendation,
			Title:       "Investment Recommendation",
			Description: "Consider increasing your SIP investment for better returns",
			Change:      FormatRupees(decimal.NewFromInt(5000)),
			Trend:       TrendUp,
		})
	}

	if metrics.BudgetUtilization > BudgetUtilizationThreshold {
		pct := decimal.NewFromFloat(metrics.BudgetUtilization).Round(0).String()
		out = append(out, Insight{
			Kind:        KindAlert,
			Title:       "Budget Alert",
			Description: fmt.Sprintf("You've spent %s%% of your monthly budget", pct),
			Change:      pct + "%",
			Trend:       TrendDown,
		})
	}
	return out
}

// spendingChange is the month-over-month expense change in percent. ok is
// false when last month had no expenses.
func spendingChange(txs []domain.Transaction, now time.Time) (decimal.Decimal, bool) {
	thisMonth := monthStart(now)
	current := SumTotals(inMonth(txs, thisMonth)).Spending
	last := SumTotals(inMonth(txs, thisMonth.AddDate(0, -1, 0))).Spending
	if !last.IsPositive() {
		return decimal.Zero, false
	}
	return current.Sub(last).Div(last).Mul(hundred), true
}

func averageInvestmentProgress(goals []domain.Goal) (float64, bool) {
	var sum float64
	n := 0
	for _, g := range goals {
		if g.IsInvestment() {
			sum += g.ProgressPercent()
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// SuggestGoal proposes a goal from spending habits: when food-related
// categories exceed 10% of all transaction volume it suggests cutting back.
func SuggestGoal(txs []domain.Transaction) string {
	total := decimal.Zero
	food := decimal.Zero
	for _, tx := range txs {
		total = total.Add(tx.Amount.Decimal)
		if foodCategories[tx.CategoryOrDefault()] {
			food = food.Add(tx.Amount.Decimal)
		}
	}
	if food.GreaterThan(total.Mul(decimal.NewFromFloat(0.1))) {
		return "Your food-related expenses are high. Consider a goal to reduce food delivery by 10% and save more!"
	}
	return "You are on track! Consider setting a new goal for vacation or emergency fund."
}

var foodCategories = map[string]bool{
	"Groceries":  true,
	"Food":       true,
	"Restaurant": true,
}

// FormatRupees renders d rounded to whole rupees with thousands separators.
func FormatRupees(d decimal.Decimal) string {
	s := d.Round(0).String()
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-₹" + b.String()
	}
	return "₹" + b.String()
}
