// Package receipt turns OCR output from a shop receipt into structured data
// and, from there, into an expense transaction.
package receipt

import (
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// Item is one purchased line.
type Item struct {
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Amount    decimal.Decimal `json:"amount"`
}

// Receipt is the structured form of a scanned receipt.
type Receipt struct {
	Vendor          string          `json:"vendor"`
	Date            string          `json:"date"`
	DateFound       bool            `json:"dateFound"`
	Items           []Item          `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	Currency        string          `json:"currency,omitempty"`
	Confidence      float64         `json:"confidence,omitempty"`
	ConfidenceLevel string          `json:"confidenceLevel,omitempty"`
	Category        string          `json:"category,omitempty"`
	Description     string          `json:"description,omitempty"`
	ImageURI        string          `json:"imageUri,omitempty"`
}

const vendorScanLines = 5

var (
	leadingDigit    = regexp.MustCompile(`^\d`)
	summaryKeywords = regexp.MustCompile(`(?i)total|tax|subtotal`)

	itemLine = regexp.MustCompile(`([A-Za-z\s]+)\s*[₹$]?(\d[\d,]*\.?\d*)`)

	totalLine    = regexp.MustCompile(`(?i)\b(?:grand\s+)?total[:\s]*[₹$]?(\d[\d,]*\.?\d*)`)
	subtotalLine = regexp.MustCompile(`(?i)sub\s*-?\s*total[:\s]*[₹$]?(\d[\d,]*\.?\d*)`)
	taxLine      = regexp.MustCompile(`(?i)\b(?:tax|gst|vat)[:\s]*[₹$]?(\d[\d,]*\.?\d*)`)
)

// Parse extracts vendor, date, items and totals from newline separated OCR
// text. It never fails: missing pieces stay zero, the total falls back to the
// sum of items, the subtotal to the total, and the date to now.
func Parse(text string, now time.Time) Receipt {
	lines := nonEmptyLines(text)
	r := Receipt{Items: []Item{}}

	r.Vendor = findVendor(lines)
	r.Date, r.DateFound = findDate(lines)
	if !r.DateFound {
		r.Date = now.Format(domain.DateLayout)
	}

	for _, line := range lines {
		if item, ok := parseItem(line); ok {
			r.Items = append(r.Items, item)
		}
	}

	for _, line := range lines {
		if m := subtotalLine.FindStringSubmatch(line); m != nil {
			r.Subtotal = amount(m[1])
			continue
		}
		if m := totalLine.FindStringSubmatch(line); m != nil {
			r.Total = amount(m[1])
		}
		if m := taxLine.FindStringSubmatch(line); m != nil {
			r.Tax = amount(m[1])
		}
	}

	if r.Total.IsZero() && len(r.Items) > 0 {
		for _, it := range r.Items {
			r.Total = r.Total.Add(it.Amount)
		}
	}
	if r.Subtotal.IsZero() {
		r.Subtotal = r.Total
	}
	return r
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, l := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func findVendor(lines []string) string {
	for i := 0; i < len(lines) && i < vendorScanLines; i++ {
		if !leadingDigit.MatchString(lines[i]) && !summaryKeywords.MatchString(lines[i]) {
			return lines[i]
		}
	}
	return ""
}

// parseItem reads "name price" lines. Summary lines and lines holding a date
// are not items.
func parseItem(line string) (Item, bool) {
	lower := strings.ToLower(line)
	if strings.Contains(lower, "total") || strings.Contains(lower, "tax") || hasDate(line) {
		return Item{}, false
	}
	m := itemLine.FindStringSubmatch(line)
	if m == nil {
		return Item{}, false
	}
	name := strings.TrimSpace(m[1])
	price := amount(m[2])
	if len(name) <= 2 || !price.IsPositive() {
		return Item{}, false
	}
	return Item{Name: name, Quantity: 1, UnitPrice: price, Amount: price}, true
}

func amount(s string) decimal.Decimal {
	m, err := domain.ParseMoney(strings.TrimRight(s, "."))
	if err != nil {
		return decimal.Zero
	}
	return m.Decimal
}
