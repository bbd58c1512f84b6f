package domain

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a monetary amount. It decodes from a JSON number or a numeric
// string and always encodes as a JSON number.
// Values that cannot be read as a number decode to zero.
type Money struct {
	decimal.Decimal
}

// NewMoney wraps a decimal.
func NewMoney(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// MoneyFromFloat is a convenience for tests and literal amounts.
func MoneyFromFloat(f float64) Money {
	return Money{Decimal: decimal.NewFromFloat(f)}
}

// ParseMoney parses a plain numeric string, tolerating surrounding spaces
// and a leading currency symbol.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "₹$")
	s = strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Money{}, err
	}
	return Money{Decimal: d}, nil
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		m.Decimal = decimal.Zero
		return nil
	}

	raw := string(data)
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = s
	}

	parsed, err := ParseMoney(raw)
	if err != nil {
		m.Decimal = decimal.Zero
		return nil
	}
	m.Decimal = parsed.Decimal
	return nil
}
