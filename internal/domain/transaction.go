package domain

import (
	"strings"
	"time"
)

// TransactionType separates money coming in from money going out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid reports whether t is income or expense.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// DefaultCategory is used for transactions without a category.
const DefaultCategory = "Other"

// How a transaction was entered.
const (
	MethodManual  = "manual"
	MethodVoice   = "voice"
	MethodReceipt = "receipt"
)

// DateLayout is the ISO calendar date format used on the wire.
const DateLayout = "2006-01-02"

// Transaction is a single income or expense entry as stored by the backend.
type Transaction struct {
	ID          string          `json:"_id"`
	Type        TransactionType `json:"type"`
	Amount      Money           `json:"amount"`
	Category    string          `json:"category,omitempty"`
	Date        string          `json:"date,omitempty"`
	Description string          `json:"description,omitempty"`
	Method      string          `json:"method,omitempty"`
}

// CategoryOrDefault returns the category, or "Other" when it is blank.
func (t Transaction) CategoryOrDefault() string {
	if c := strings.TrimSpace(t.Category); c != "" {
		return c
	}
	return DefaultCategory
}

// Time parses the transaction date. ok is false for missing or malformed dates,
// which callers exclude from any month bucketing.
func (t Transaction) Time() (time.Time, bool) {
	return parseDate(t.Date)
}

// TransactionInput is the body sent when creating or updating a transaction.
type TransactionInput struct {
	Type        TransactionType `json:"type"`
	Amount      Money           `json:"amount"`
	Category    string          `json:"category"`
	Date        string          `json:"date,omitempty"`
	Description string          `json:"description"`
	Method      string          `json:"method,omitempty"`
}

// Normalize fills defaults: category "Other", method "manual".
func (in TransactionInput) Normalize() TransactionInput {
	if strings.TrimSpace(in.Category) == "" {
		in.Category = DefaultCategory
	}
	if in.Method == "" {
		in.Method = MethodManual
	}
	in.Description = strings.TrimSpace(in.Description)
	return in
}

// Validate checks the fields the backend requires.
func (in TransactionInput) Validate() error {
	var errs ValidationErrors
	if !in.Type.Valid() {
		errs = append(errs, &ValidationError{Field: "type", Message: "type must be income or expense"})
	}
	if !in.Amount.IsPositive() {
		errs = append(errs, &ValidationError{Field: "amount", Message: "amount must be greater than zero"})
	}
	if strings.TrimSpace(in.Description) == "" {
		errs = append(errs, &ValidationError{Field: "description", Message: "description is required"})
	}
	if in.Date != "" {
		if _, ok := parseDate(in.Date); !ok {
			errs = append(errs, &ValidationError{Field: "date", Message: "date must be YYYY-MM-DD"})
		}
	}
	return errs.orNil()
}

// CategoryTotal is one row of the backend's category breakdown.
type CategoryTotal struct {
	Category string `json:"_id"`
	Total    Money  `json:"total"`
}

// TransactionStats is the aggregate returned by /api/transactions/stats.
type TransactionStats struct {
	TotalIncome       Money           `json:"totalIncome"`
	TotalExpenses     Money           `json:"totalExpenses"`
	NetSavings        Money           `json:"netSavings"`
	CategoryBreakdown []CategoryTotal `json:"categoryBreakdown"`
}

var dateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
