package insights

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/shopspring/decimal"
)

// DefaultPlanMonths is used when the timeline names neither a year nor a month count.
const DefaultPlanMonths = 12

var (
	timelineYear   = regexp.MustCompile(`\b(20\d{2})\b`)
	timelineMonths = regexp.MustCompile(`(?i)(\d+)\s*months?`)

	categoryCut = decimal.NewFromFloat(0.2)
)

// Milestone is a checkpoint on the way to a goal.
type Milestone struct {
	Percent int             `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

// Plan is a locally computed savings plan for one goal.
type Plan struct {
	GoalID          string          `json:"goalId"`
	Summary         string          `json:"summary"`
	Months          int             `json:"months"`
	AlreadySaved    decimal.Decimal `json:"alreadySaved"`
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	RequiredMonthly decimal.Decimal `json:"requiredMonthly"`
	ActualMonthly   decimal.Decimal `json:"actualMonthly"`
	Gap             decimal.Decimal `json:"gap"`
	Feasible        bool            `json:"feasible"`
	Suggestions     []string        `json:"suggestions"`
	Milestones      []Milestone     `json:"milestones"`
}

// PlanMonths reads the saving horizon from a free-form timeline. A year such as
// "by 2027" counts the months until December of that year (at least one); a
// phrase like "18 months" is taken literally; anything else is DefaultPlanMonths.
func PlanMonths(timeline string, now time.Time) int {
	if m := timelineYear.FindStringSubmatch(timeline); m != nil {
		year, _ := strconv.Atoi(m[1])
		months := (year-now.Year())*12 + 12 - int(now.Month())
		if months < 1 {
			return 1
		}
		return months
	}
	if m := timelineMonths.FindStringSubmatch(timeline); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	return DefaultPlanMonths
}

// BuildGoalPlan works out how much must be saved each month to reach goal and,
// when current savings fall short, which of the top expense categories to trim.
// Each category is cut by at most 20% of its total; if the cuts cannot close
// the gap the plan is marked infeasible.
func BuildGoalPlan(goal domain.Goal, analysis ExpenseAnalysis, now time.Time) Plan {
	months := PlanMonths(goal.Timeline, now)
	target := goal.Amount.Decimal
	saved := target.Mul(decimal.NewFromFloat(goal.ProgressPercent())).Div(hundred)
	remaining := target.Sub(saved)

	required := remaining.Div(decimal.NewFromInt(int64(months))).Ceil()
	actual := analysis.MonthlySavings.Floor()
	gap := required.Sub(actual)

	p := Plan{
		GoalID:          goal.ID,
		Months:          months,
		AlreadySaved:    saved,
		RemainingAmount: remaining,
		RequiredMonthly: required,
		ActualMonthly:   actual,
		Gap:             gap,
		Feasible:        true,
		Suggestions:     []string{},
		Milestones:      milestones(target),
	}

	if !gap.IsPositive() {
		p.Summary = fmt.Sprintf("You are on track! You need to save %s per month, and your current monthly savings is %s.",
			FormatRupees(required), FormatRupees(actual))
		p.Suggestions = append(p.Suggestions,
			"Consider investing your savings in a recurring deposit or mutual fund for better returns.",
			"Maintain your current savings rate, and review your progress monthly.")
		return p
	}

	p.Summary = fmt.Sprintf("To reach your goal, you need to save %s per month, but your current monthly savings is %s. You have a gap of %s per month.",
		FormatRupees(required), FormatRupees(actual), FormatRupees(gap))

	reduced := decimal.Zero
	for _, c := range analysis.TopExpenses {
		if reduced.GreaterThanOrEqual(gap) {
			break
		}
		cut := decimal.Min(gap.Sub(reduced), c.Amount.Mul(categoryCut).Ceil())
		if cut.IsPositive() {
			p.Suggestions = append(p.Suggestions,
				fmt.Sprintf("Reduce your spending on %s by %s per month.", c.Category, FormatRupees(cut)))
			reduced = reduced.Add(cut)
		}
	}

	if reduced.LessThan(gap) {
		p.Feasible = false
		p.Suggestions = append(p.Suggestions,
			"Consider increasing your income (side gig, freelancing, etc.) or extending your goal timeline.")
	} else {
		p.Suggestions = append(p.Suggestions,
			"Set up an automatic transfer of the required amount to a dedicated savings account.")
	}
	return p
}

func milestones(target decimal.Decimal) []Milestone {
	out := make([]Milestone, 0, 4)
	for _, pct := range []int{25, 50, 75, 100} {
		amt := target.Mul(decimal.NewFromInt(int64(pct))).Div(hundred).Round(0)
		out = append(out, Milestone{Percent: pct, Amount: amt})
	}
	return out
}

// Progress describes how far along a goal is.
type Progress struct {
	Percent    float64         `json:"percent"`
	Saved      decimal.Decimal `json:"saved"`
	Remaining  decimal.Decimal `json:"remaining"`
	MonthsLeft *int            `json:"monthsLeft,omitempty"`
	Overdue    bool            `json:"overdue"`
}

// GoalProgress reports saved and remaining amounts. MonthsLeft is set only
// when the goal has a readable deadline; a goal without a timeline has none.
func GoalProgress(goal domain.Goal, now time.Time) Progress {
	pct := goal.ProgressPercent()
	saved := goal.Amount.Decimal.Mul(decimal.NewFromFloat(pct)).Div(hundred)
	p := Progress{
		Percent:   pct,
		Saved:     saved,
		Remaining: goal.Amount.Decimal.Sub(saved),
	}

	deadline, ok := goal.Deadline()
	if !ok {
		return p
	}
	left := (deadline.Year()-now.Year())*12 + int(deadline.Month()) - int(now.Month())
	if left < 0 {
		left = 0
	}
	p.MonthsLeft = &left
	p.Overdue = pct < 100 && deadline.Before(now)
	return p
}
