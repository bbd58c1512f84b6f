// Package intent understands short spoken or typed commands such as
// "add ₹500 for groceries" or "save 100000 for new car by 2027" and turns
// them into transactions and goals.
package intent

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/rs/zerolog"
)

// Kind is what a command creates.
type Kind string

const (
	KindExpense Kind = "expense"
	KindGoal    Kind = "goal"
)

// ErrUnrecognized is returned for text that matches no command.
var ErrUnrecognized = errors.New("command not recognized")

// Examples are shown to users whose command was not understood.
var Examples = []string{
	"add ₹500 for groceries",
	"log 200 taxi expense",
	"record ₹300 movie expense",
	"save 100000 for new car by 2027",
}

const amountPattern = `₹?\s*(\d[\d,]*(?:\.\d+)?)`

var expenseCommands = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*add\s+` + amountPattern + `\s+for\s+(.+?)\s*$`),
	regexp.MustCompile(`(?i)^\s*log\s+` + amountPattern + `\s+(.+?)\s+expense\s*$`),
	regexp.MustCompile(`(?i)^\s*record\s+` + amountPattern + `\s+(.+?)\s+expense\s*$`),
	regexp.MustCompile(`(?i)^\s*record\s+` + amountPattern + `\s+for\s+(.+?)\s*$`),
}

var goalCommand = regexp.MustCompile(`(?i)^\s*save\s+` + amountPattern + `\s+for\s+(.+?)\s+by\s+(.+?)\s*$`)

// keywordCategories is checked in order; the first keyword found in the
// description decides the category.
var keywordCategories = []struct {
	keyword  string
	category string
}{
	{"groceries", "Groceries"},
	{"food", "Food & Dining"},
	{"restaurant", "Food & Dining"},
	{"transport", "Transport"},
	{"uber", "Transport"},
	{"ola", "Transport"},
	{"taxi", "Transport"},
	{"fuel", "Transport"},
	{"entertainment", "Entertainment"},
	{"movie", "Entertainment"},
	{"bills", "Bills"},
	{"electricity", "Bills"},
	{"water", "Bills"},
	{"healthcare", "Healthcare"},
	{"medical", "Healthcare"},
	{"shopping", "Shopping"},
	{"clothes", "Shopping"},
}

// CategoryFor maps a free-text description to a spending category.
func CategoryFor(description string) string {
	lower := strings.ToLower(description)
	for _, kc := range keywordCategories {
		if strings.Contains(lower, kc.keyword) {
			return kc.category
		}
	}
	return domain.DefaultCategory
}

// Command is a parsed command. Exactly one of Expense and Goal is set.
type Command struct {
	Kind    Kind                     `json:"kind"`
	Expense *domain.TransactionInput `json:"expense,omitempty"`
	Goal    *domain.GoalInput        `json:"goal,omitempty"`
}

// ParseExpense recognises add/log/record commands. The expense is dated now
// and marked as entered by voice.
func ParseExpense(text string, now time.Time) (domain.TransactionInput, bool) {
	for _, re := range expenseCommands {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		amount, err := domain.ParseMoney(m[1])
		if err != nil {
			continue
		}
		description := strings.TrimSpace(m[2])
		return domain.TransactionInput{
			Type:        domain.TransactionExpense,
			Amount:      amount,
			Category:    CategoryFor(description),
			Date:        now.Format(domain.DateLayout),
			Description: description,
			Method:      domain.MethodVoice,
		}, true
	}
	return domain.TransactionInput{}, false
}

// ParseGoal recognises "save <amount> for <title> by <timeline>" and
// produces a long-term goal with no progress.
func ParseGoal(text string) (domain.GoalInput, bool) {
	m := goalCommand.FindStringSubmatch(text)
	if m == nil {
		return domain.GoalInput{}, false
	}
	amount, err := domain.ParseMoney(m[1])
	if err != nil {
		return domain.GoalInput{}, false
	}
	zero := 0.0
	return domain.GoalInput{
		Title:    strings.TrimSpace(m[2]),
		Amount:   amount,
		Type:     domain.GoalLongTerm,
		Timeline: strings.TrimSpace(m[3]),
		Progress: &zero,
	}, true
}

// Parse tries the goal command first, then the expense commands.
func Parse(text string, now time.Time) (Command, error) {
	if g, ok := ParseGoal(text); ok {
		return Command{Kind: KindGoal, Goal: &g}, nil
	}
	if e, ok := ParseExpense(text, now); ok {
		return Command{Kind: KindExpense, Expense: &e}, nil
	}
	return Command{}, fmt.Errorf("%w: try %q", ErrUnrecognized, Examples[0])
}

// Mutator is the part of the shared data store commands write through.
type Mutator interface {
	AddTransaction(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error)
	AddGoal(ctx context.Context, in domain.GoalInput) (domain.Goal, error)
}

// Outcome is what executing a command created.
type Outcome struct {
	Kind        Kind                `json:"kind"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Goal        *domain.Goal        `json:"goal,omitempty"`
}

// Executor parses commands and applies them.
type Executor struct {
	target Mutator
	log    zerolog.Logger
	now    func() time.Time
}

// NewExecutor creates an executor writing to target.
func NewExecutor(target Mutator, log zerolog.Logger) *Executor {
	return &Executor{target: target, log: log, now: time.Now}
}

// Execute parses text and creates the transaction or goal it describes.
func (e *Executor) Execute(ctx context.Context, text string) (Outcome, error) {
	cmd, err := Parse(text, e.now())
	if err != nil {
		return Outcome{}, err
	}

	switch cmd.Kind {
	case KindGoal:
		g, err := e.target.AddGoal(ctx, *cmd.Goal)
		if err != nil {
			return Outcome{}, fmt.Errorf("Execute: add goal: %w", err)
		}
		e.log.Info().Str("goal_id", g.ID).Str("title", g.Title).Msg("Goal created from command")
		return Outcome{Kind: KindGoal, Goal: &g}, nil
	default:
		tx, err := e.target.AddTransaction(ctx, *cmd.Expense)
		if err != nil {
			return Outcome{}, fmt.Errorf("Execute: add expense: %w", err)
		}
		e.log.Info().Str("transaction_id", tx.ID).Str("category", cmd.Expense.Category).Msg("Expense recorded from command")
		return Outcome{Kind: KindExpense, Transaction: &tx}, nil
	}
}
