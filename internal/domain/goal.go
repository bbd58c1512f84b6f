package domain

import (
	"strings"
	"time"
)

// GoalType is the horizon of a savings goal.
type GoalType string

const (
	GoalShortTerm GoalType = "Short-Term"
	GoalLongTerm  GoalType = "Long-Term"
)

// Valid reports whether t is one of the known goal types.
func (t GoalType) Valid() bool {
	return t == GoalShortTerm || t == GoalLongTerm
}

// CategoryInvestment marks goals whose progress counts towards investment growth.
const CategoryInvestment = "investment"

// Goal is a savings target as stored by the backend.
type Goal struct {
	ID             string   `json:"_id"`
	Title          string   `json:"title"`
	Amount         Money    `json:"amount"`
	Type           GoalType `json:"type"`
	Timeline       string   `json:"timeline,omitempty"`
	Progress       *float64 `json:"progress,omitempty"`
	Category       string   `json:"category,omitempty"`
	Icon           string   `json:"icon,omitempty"`
	Color          string   `json:"color,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// ProgressPercent returns progress clamped to [0, 100]; a missing value is 0.
func (g Goal) ProgressPercent() float64 {
	if g.Progress == nil {
		return 0
	}
	return clampPercent(*g.Progress)
}

// IsInvestment reports whether the goal belongs to the investment category.
func (g Goal) IsInvestment() bool {
	return strings.EqualFold(strings.TrimSpace(g.Category), CategoryInvestment)
}

// Deadline interprets the free-form timeline as a date.
// It understands ISO dates, RFC3339 timestamps, "YYYY-MM" and a bare year
// (end of that year). ok is false when there is no deadline.
func (g Goal) Deadline() (time.Time, bool) {
	s := strings.TrimSpace(g.Timeline)
	if s == "" {
		return time.Time{}, false
	}
	if t, ok := parseDate(s); ok {
		return t, true
	}
	if t, err := time.Parse("2006-01", s); err == nil {
		return t.AddDate(0, 1, -1), true
	}
	if t, err := time.Parse("2006", s); err == nil {
		return time.Date(t.Year(), time.December, 31, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// GoalInput is the body sent when creating a goal.
type GoalInput struct {
	Title          string   `json:"title"`
	Amount         Money    `json:"amount"`
	Type           GoalType `json:"type"`
	Timeline       string   `json:"timeline,omitempty"`
	Progress       *float64 `json:"progress,omitempty"`
	Category       string   `json:"category,omitempty"`
	Icon           string   `json:"icon,omitempty"`
	Color          string   `json:"color,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// Validate checks the invariants the backend relies on.
func (in GoalInput) Validate() error {
	var errs ValidationErrors
	if strings.TrimSpace(in.Title) == "" {
		errs = append(errs, &ValidationError{Field: "title", Message: "title is required"})
	}
	if !in.Amount.IsPositive() {
		errs = append(errs, &ValidationError{Field: "amount", Message: "target amount must be greater than zero"})
	}
	if !in.Type.Valid() {
		errs = append(errs, &ValidationError{Field: "type", Message: "type must be Short-Term or Long-Term"})
	}
	if in.Progress != nil && !validPercent(*in.Progress) {
		errs = append(errs, &ValidationError{Field: "progress", Message: "progress must be between 0 and 100"})
	}
	return errs.orNil()
}

// GoalPatch is a partial update; nil fields are left untouched by the backend.
type GoalPatch struct {
	Title          *string   `json:"title,omitempty"`
	Amount         *Money    `json:"amount,omitempty"`
	Type           *GoalType `json:"type,omitempty"`
	Timeline       *string   `json:"timeline,omitempty"`
	Progress       *float64  `json:"progress,omitempty"`
	Category       *string   `json:"category,omitempty"`
	Recommendation *string   `json:"recommendation,omitempty"`
}

// Validate checks only the fields that are set.
func (p GoalPatch) Validate() error {
	var errs ValidationErrors
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		errs = append(errs, &ValidationError{Field: "title", Message: "title must not be empty"})
	}
	if p.Amount != nil && !p.Amount.IsPositive() {
		errs = append(errs, &ValidationError{Field: "amount", Message: "target amount must be greater than zero"})
	}
	if p.Type != nil && !p.Type.Valid() {
		errs = append(errs, &ValidationError{Field: "type", Message: "type must be Short-Term or Long-Term"})
	}
	if p.Progress != nil && !validPercent(*p.Progress) {
		errs = append(errs, &ValidationError{Field: "progress", Message: "progress must be between 0 and 100"})
	}
	return errs.orNil()
}

// GoalPlan is the backend-generated plan for a goal.
type GoalPlan struct {
	Success     bool                   `json:"success"`
	Plan        string                 `json:"plan"`
	GoalContext map[string]interface{} `json:"goalContext,omitempty"`
}

func validPercent(p float64) bool {
	return p >= 0 && p <= 100
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
