package domain

import "time"

// Metrics are derived from a (goals, transactions) pair and never mutated on their own.
type Metrics struct {
	TotalSpending     float64 `json:"totalSpending"`
	TotalIncome       float64 `json:"totalIncome"`
	SavingsRate       float64 `json:"savingsRate"`
	BudgetUtilization float64 `json:"budgetUtilization"`
	InvestmentGrowth  float64 `json:"investmentGrowth"`
}

// Snapshot is one consistent view of the user's data.
type Snapshot struct {
	Goals        []Goal        `json:"goals"`
	Transactions []Transaction `json:"transactions"`
	Metrics      Metrics       `json:"metrics"`
	LastUpdate   time.Time     `json:"lastUpdate"`
}

// Clone returns a copy whose slices do not alias s.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Goals = CloneGoals(s.Goals)
	out.Transactions = CloneTransactions(s.Transactions)
	return out
}

// CloneGoals copies goals, including progress pointers.
func CloneGoals(goals []Goal) []Goal {
	out := make([]Goal, len(goals))
	copy(out, goals)
	for i := range out {
		if out[i].Progress != nil {
			p := *out[i].Progress
			out[i].Progress = &p
		}
	}
	return out
}

// CloneTransactions copies a transaction slice.
func CloneTransactions(txs []Transaction) []Transaction {
	out := make([]Transaction, len(txs))
	copy(out, txs)
	return out
}

// User is the minimal profile persisted next to the auth token.
type User struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email"`
	CreatedAt string `json:"createdAt,omitempty"`
}
