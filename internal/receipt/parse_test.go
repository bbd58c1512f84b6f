package receipt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, time.October, 18, 15, 4, 0, 0, time.UTC)

const groceryReceipt = `BIG BAZAAR
123 MG Road
Date: 15/03/2026
Milk 45.00
Bread ₹30
Eggs 72.50

Subtotal: 147.50
Tax: 7.38
Total: 154.88
Thank you`

func TestParse_FullReceipt(t *testing.T) {
	r := Parse(groceryReceipt, now)

	assert.Equal(t, "BIG BAZAAR", r.Vendor)
	assert.Equal(t, "2026-03-15", r.Date)
	assert.True(t, r.DateFound)
	assert.Equal(t, "147.5", r.Subtotal.String())
	assert.Equal(t, "7.38", r.Tax.String())
	assert.Equal(t, "154.88", r.Total.String())

	require.Len(t, r.Items, 3)
	assert.Equal(t, "Milk", r.Items[0].Name)
	assert.Equal(t, "45", r.Items[0].Amount.String())
	assert.Equal(t, "Bread", r.Items[1].Name)
	assert.Equal(t, "30", r.Items[1].UnitPrice.String())
	assert.Equal(t, "72.5", r.Items[2].Amount.String())
	assert.Equal(t, 1, r.Items[2].Quantity)
}

func TestParse_NoDateFallsBackToToday(t *testing.T) {
	r := Parse("Corner Shop\nChips 20\nTotal 20", now)

	assert.Equal(t, "2026-10-18", r.Date)
	assert.False(t, r.DateFound)
	_, err := time.Parse("2006-01-02", r.Date)
	assert.NoError(t, err)
}

func TestParse_EmptyText(t *testing.T) {
	r := Parse("", now)

	assert.Empty(t, r.Vendor)
	assert.NotNil(t, r.Items)
	assert.True(t, r.Total.IsZero())
	assert.Equal(t, "2026-10-18", r.Date)
}

func TestParse_Dates(t *testing.T) {
	cases := map[string]string{
		"Invoice 2024-03-15":     "2024-03-15",
		"Bill date 2025/1/9":     "2025-01-09",
		"12/25/2025":             "2025-12-25",
		"05.06.24":               "2024-06-05",
		"15032026":               "2026-03-15",
		"date:2023-12-01 10:45":  "2023-12-01",
		"Dated 7-8-2022 at noon": "2022-08-07",
	}
	for line, want := range cases {
		r := Parse("Shop\n"+line, now)
		assert.True(t, r.DateFound, line)
		assert.Equal(t, want, r.Date, line)
	}
}

func TestParse_RejectsImpossibleDates(t *testing.T) {
	for _, line := range []string{"31/02/2026", "45/13/2026", "15/03/1999", "01/01/2031", "99999999"} {
		r := Parse("Shop\n"+line, now)
		assert.False(t, r.DateFound, line)
		assert.Equal(t, "2026-10-18", r.Date, line)
	}
}

func TestParse_FirstValidLineWins(t *testing.T) {
	r := Parse("Shop\n99/99/2026\n02/01/2026\n2026-05-05", now)
	assert.Equal(t, "2026-01-02", r.Date)
}

func TestParse_Vendor(t *testing.T) {
	r := Parse("12345\nTOTAL 50\nCafe Coffee Day\nLatte 180", now)
	assert.Equal(t, "Cafe Coffee Day", r.Vendor)

	r = Parse("1\n2\n3\n4\n5\nLate Vendor", now)
	assert.Empty(t, r.Vendor)
}

func TestParse_TotalFallsBackToItems(t *testing.T) {
	r := Parse("Fruit Stall\nApples 120\nMangoes 1,250.50\nXY 5", now)

	require.Len(t, r.Items, 2)
	assert.Equal(t, "1250.5", r.Items[1].Amount.String())
	assert.Equal(t, "1370.5", r.Total.String())
	assert.Equal(t, r.Total.String(), r.Subtotal.String())
}

func TestParse_SubtotalIsNotTotal(t *testing.T) {
	r := Parse("Shop\nTotal: 110\nSubtotal: 100", now)

	assert.Equal(t, "110", r.Total.String())
	assert.Equal(t, "100", r.Subtotal.String())
}
