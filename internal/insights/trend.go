package insights

import (
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// Trend is the direction of month-over-month savings.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

var (
	upThreshold   = decimal.NewFromFloat(1.1)
	downThreshold = decimal.NewFromFloat(0.9)
)

// SavingsTrend compares this calendar month's savings with last month's.
type SavingsTrend struct {
	CurrentMonth float64 `json:"currentMonthSavings"`
	LastMonth    float64 `json:"lastMonthSavings"`
	Trend        Trend   `json:"trend"`
}

// ClassifyTrend applies the 10% band: up only when current is strictly above
// 110% of last, down only when strictly below 90%.
func ClassifyTrend(current, last decimal.Decimal) Trend {
	switch {
	case current.GreaterThan(last.Mul(upThreshold)):
		return TrendUp
	case current.LessThan(last.Mul(downThreshold)):
		return TrendDown
	default:
		return TrendStable
	}
}

// MonthlySavingsTrend buckets txs into the calendar month of now and the one
// before it. Transactions without a readable date are left out.
func MonthlySavingsTrend(txs []domain.Transaction, now time.Time) SavingsTrend {
	thisMonth := monthStart(now)
	prevMonth := thisMonth.AddDate(0, -1, 0)

	current := SumTotals(inMonth(txs, thisMonth)).Net()
	last := SumTotals(inMonth(txs, prevMonth)).Net()

	return SavingsTrend{
		CurrentMonth: current.InexactFloat64(),
		LastMonth:    last.InexactFloat64(),
		Trend:        ClassifyTrend(current, last),
	}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}

func inMonth(txs []domain.Transaction, month time.Time) []domain.Transaction {
	var out []domain.Transaction
	for _, tx := range txs {
		if at, ok := tx.Time(); ok && sameMonth(at, month) {
			out = append(out, tx)
		}
	}
	return out
}
