// Package advisor gives a naive Buy/Sell/Hold signal from recent closing prices.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Recommendation is the outcome of the heuristic.
type Recommendation string

const (
	Buy           Recommendation = "Buy"
	Sell          Recommendation = "Sell"
	Hold          Recommendation = "Hold"
	NotEnoughData Recommendation = "Not enough data"
)

var (
	sellAbove = decimal.NewFromFloat(1.01)
	buyBelow  = decimal.NewFromFloat(0.99)
)

// Recommend compares the newest price with the average of all earlier ones,
// oldest first. More than 1% above the average is Sell, more than 1% below is
// Buy, anything in between is Hold.
func Recommend(prices []decimal.Decimal) Recommendation {
	if len(prices) < 2 {
		return NotEnoughData
	}
	last := prices[len(prices)-1]
	avg := average(prices[:len(prices)-1])

	switch {
	case last.GreaterThan(avg.Mul(sellAbove)):
		return Sell
	case last.LessThan(avg.Mul(buyBelow)):
		return Buy
	default:
		return Hold
	}
}

func average(prices []decimal.Decimal) decimal.Decimal {
	if len(prices) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(prices[0], prices[1:]...).Div(decimal.NewFromInt(int64(len(prices))))
}

// PriceSource returns recent closing prices for a symbol, oldest first.
type PriceSource interface {
	ClosingPrices(ctx context.Context, symbol string) ([]decimal.Decimal, error)
}

// Analysis is the result shown for one symbol.
type Analysis struct {
	Symbol         string            `json:"symbol"`
	Prices         []decimal.Decimal `json:"prices"`
	Average        decimal.Decimal   `json:"average"`
	Last           decimal.Decimal   `json:"last"`
	Recommendation Recommendation    `json:"recommendation"`
}

// Analyzer runs the heuristic over a price source.
type Analyzer struct {
	source PriceSource
	log    zerolog.Logger
}

// NewAnalyzer creates an analyzer.
func NewAnalyzer(source PriceSource, log zerolog.Logger) *Analyzer {
	return &Analyzer{source: source, log: log}
}

// Analyze fetches prices for symbol and classifies them.
func (a *Analyzer) Analyze(ctx context.Context, symbol string) (Analysis, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Analysis{}, &domain.ValidationError{Field: "symbol", Message: "stock symbol is required"}
	}

	prices, err := a.source.ClosingPrices(ctx, symbol)
	if err != nil {
		return Analysis{}, fmt.Errorf("Analyze %s: failed to fetch prices: %w", symbol, err)
	}

	out := Analysis{
		Symbol:         symbol,
		Prices:         prices,
		Recommendation: Recommend(prices),
	}
	if len(prices) > 0 {
		out.Last = prices[len(prices)-1]
		out.Average = average(prices[:len(prices)-1])
	}

	a.log.Debug().
		Str("symbol", symbol).
		Int("prices", len(prices)).
		Str("recommendation", string(out.Recommendation)).
		Msg("Stock analyzed")
	return out, nil
}
