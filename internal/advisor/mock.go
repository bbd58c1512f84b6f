package advisor

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
)

var mockCloses = map[string][]int64{
	"AAPL": {170, 172, 174, 173, 175},
	"MSFT": {320, 322, 321, 323, 325},
	"TSLA": {700, 710, 705, 715, 720},
	"INFY": {1400, 1410, 1405, 1420, 1430},
}

var defaultCloses = []int64{100, 101, 102, 103, 104}

// MockPrices serves the last five closes from a fixed table. Unknown symbols
// get a generic rising series.
type MockPrices struct{}

var _ PriceSource = MockPrices{}

// ClosingPrices implements PriceSource.
func (MockPrices) ClosingPrices(_ context.Context, symbol string) ([]decimal.Decimal, error) {
	closes, ok := mockCloses[strings.ToUpper(symbol)]
	if !ok {
		closes = defaultCloses
	}
	out := make([]decimal.Decimal, len(closes))
	for i, c := range closes {
		out[i] = decimal.NewFromInt(c)
	}
	return out, nil
}
