package advisor

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prices(vs ...int64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vs))
	for i, v := range vs {
		out[i] = decimal.NewFromInt(v)
	}
	return out
}

func TestRecommend(t *testing.T) {
	cases := []struct {
		name   string
		prices []decimal.Decimal
		want   Recommendation
	}{
		{"rising AAPL closes", prices(170, 172, 174, 173, 175), Sell},
		{"default series", prices(100, 101, 102, 103, 104), Sell},
		{"single price", prices(100), NotEnoughData},
		{"no prices", nil, NotEnoughData},
		{"drop below band", prices(100, 100, 98), Buy},
		{"exactly one percent up", prices(100, 101), Hold},
		{"exactly one percent down", prices(100, 99), Hold},
		{"flat", prices(50, 50, 50), Hold},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Recommend(c.prices))
		})
	}
}

func TestAnalyzer_Analyze(t *testing.T) {
	a := NewAnalyzer(MockPrices{}, zerolog.Nop())

	got, err := a.Analyze(context.Background(), " aapl ")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, "172.25", got.Average.String())
	assert.Equal(t, "175", got.Last.String())
	assert.Equal(t, Sell, got.Recommendation)
	assert.Len(t, got.Prices, 5)

	unknown, err := a.Analyze(context.Background(), "ZZZ")
	require.NoError(t, err)
	assert.Equal(t, "101.5", unknown.Average.String())
	assert.Equal(t, Sell, unknown.Recommendation)
}

func TestAnalyzer_RequiresSymbol(t *testing.T) {
	_, err := NewAnalyzer(MockPrices{}, zerolog.Nop()).Analyze(context.Background(), "  ")

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "symbol", verr.Field)
}

type failingSource struct{}

func (failingSource) ClosingPrices(context.Context, string) ([]decimal.Decimal, error) {
	return nil, errors.New("quote service down")
}

func TestAnalyzer_SourceError(t *testing.T) {
	_, err := NewAnalyzer(failingSource{}, zerolog.Nop()).Analyze(context.Background(), "MSFT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quote service down")
}
