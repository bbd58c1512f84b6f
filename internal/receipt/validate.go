package receipt

import (
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// Confidence bands.
const (
	HighConfidence = 0.9
	LowConfidence  = 0.7
)

var unusuallyHighTotal = decimal.NewFromInt(100000)

// Validation lists blocking errors and advisory warnings for a parsed receipt.
type Validation struct {
	Valid    bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// Validate checks that the receipt can become a transaction.
func Validate(r Receipt) Validation {
	v := Validation{Errors: []string{}, Warnings: []string{}}

	if strings.TrimSpace(r.Vendor) == "" {
		v.Errors = append(v.Errors, "Vendor information is missing")
	}
	if !r.Total.IsPositive() {
		v.Errors = append(v.Errors, "Invalid total amount")
	}
	if !r.DateFound {
		v.Warnings = append(v.Warnings, "Date information is missing or invalid - using current date")
	}
	if r.Total.GreaterThan(unusuallyHighTotal) {
		v.Warnings = append(v.Warnings, "Total amount seems unusually high")
	}
	if len(r.Items) == 0 {
		v.Warnings = append(v.Warnings, "No individual items were detected")
	}
	if r.Confidence > 0 && r.Confidence < LowConfidence {
		v.Warnings = append(v.Warnings, "Low confidence in OCR results - please verify manually")
	}

	v.Valid = len(v.Errors) == 0
	return v
}

// vendorCategories maps vendor name fragments to a spending category, checked in order.
var vendorCategories = []struct {
	category string
	keywords []string
}{
	{"Shopping", []string{"walmart", "target", "costco", "amazon", "flipkart"}},
	{"Groceries", []string{"kroger", "grocery", "supermarket", "food"}},
	{"Transport", []string{"gas", "fuel", "petrol", "diesel"}},
	{"Food", []string{"restaurant", "cafe", "pizza", "burger"}},
	{"Healthcare", []string{"hospital", "clinic", "pharmacy"}},
	{"Entertainment", []string{"movie", "cinema", "theater"}},
}

const fallbackCategory = "Shopping"

// CategoryForVendor guesses a category from the vendor name.
func CategoryForVendor(vendor string) string {
	v := strings.ToLower(vendor)
	for _, vc := range vendorCategories {
		for _, k := range vc.keywords {
			if strings.Contains(v, k) {
				return vc.category
			}
		}
	}
	return fallbackCategory
}

// Enhance fills category, description and confidence level.
func Enhance(r Receipt) Receipt {
	r.Category = CategoryForVendor(r.Vendor)
	r.Description = "Receipt from " + r.Vendor
	switch {
	case r.Confidence <= 0:
		r.ConfidenceLevel = ""
	case r.Confidence >= HighConfidence:
		r.ConfidenceLevel = "High"
	case r.Confidence >= LowConfidence:
		r.ConfidenceLevel = "Medium"
	default:
		r.ConfidenceLevel = "Low"
	}
	return r
}

// TransactionInput turns an enhanced receipt into an expense.
func (r Receipt) TransactionInput() domain.TransactionInput {
	return domain.TransactionInput{
		Type:        domain.TransactionExpense,
		Amount:      domain.NewMoney(r.Total),
		Category:    r.Category,
		Date:        r.Date,
		Description: r.Description,
		Method:      domain.MethodReceipt,
	}
}
