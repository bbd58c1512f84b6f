package resource

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/dvloznov/finance-dashboard/internal/apiclient"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/rs/zerolog"
)

type transactionsEnvelope struct {
	Transactions []domain.Transaction `json:"transactions"`
}

type transactionEnvelope struct {
	Transaction domain.Transaction `json:"transaction"`
}

type statsEnvelope struct {
	Stats domain.TransactionStats `json:"stats"`
}

// TransactionService handles /api/transactions.
type TransactionService struct {
	client Doer
	log    zerolog.Logger
}

// NewTransactionService creates a transaction service.
func NewTransactionService(client Doer, log zerolog.Logger) *TransactionService {
	return &TransactionService{client: client, log: log}
}

// Fetch lists transactions and reports any failure.
func (s *TransactionService) Fetch(ctx context.Context) ([]domain.Transaction, error) {
	var env transactionsEnvelope
	err := s.client.Do(ctx, apiclient.Request{Name: "transactions.list", Method: http.MethodGet, Path: "/api/transactions"}, &env)
	if err != nil {
		return nil, fmt.Errorf("Fetch transactions: %w", err)
	}
	if env.Transactions == nil {
		return []domain.Transaction{}, nil
	}
	return env.Transactions, nil
}

// List is the tolerant variant of Fetch; failures yield an empty slice.
func (s *TransactionService) List(ctx context.Context) []domain.Transaction {
	txs, err := s.Fetch(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to list transactions")
		return []domain.Transaction{}
	}
	return txs
}

// Create normalizes and validates in, then creates the transaction.
func (s *TransactionService) Create(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Transaction{}, fmt.Errorf("Create transaction: %w", err)
	}

	var env transactionEnvelope
	err := s.client.Do(ctx, apiclient.Request{Name: "transactions.create", Method: http.MethodPost, Path: "/api/transactions", Body: in}, &env)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("Create transaction: %w", err)
	}
	return env.Transaction, nil
}

// Update replaces a transaction.
func (s *TransactionService) Update(ctx context.Context, id string, in domain.TransactionInput) (domain.Transaction, error) {
	if id == "" {
		return domain.Transaction{}, &domain.ValidationError{Field: "id", Message: "transaction id is required"}
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return domain.Transaction{}, fmt.Errorf("Update transaction %s: %w", id, err)
	}

	var env transactionEnvelope
	err := s.client.Do(ctx, apiclient.Request{Name: "transactions.update", Method: http.MethodPut, Path: transactionPath(id), Body: in}, &env)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("Update transaction %s: %w", id, err)
	}
	return env.Transaction, nil
}

// Delete removes a transaction.
func (s *TransactionService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return &domain.ValidationError{Field: "id", Message: "transaction id is required"}
	}
	err := s.client.Do(ctx, apiclient.Request{Name: "transactions.delete", Method: http.MethodDelete, Path: transactionPath(id)}, nil)
	if err != nil {
		return fmt.Errorf("Delete transaction %s: %w", id, err)
	}
	return nil
}

// Stats returns backend aggregates. Like List it never fails: errors yield zero stats.
func (s *TransactionService) Stats(ctx context.Context) domain.TransactionStats {
	var env statsEnvelope
	err := s.client.Do(ctx, apiclient.Request{Name: "transactions.stats", Method: http.MethodGet, Path: "/api/transactions/stats"}, &env)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to load transaction stats")
		return domain.TransactionStats{CategoryBreakdown: []domain.CategoryTotal{}}
	}
	if env.Stats.CategoryBreakdown == nil {
		env.Stats.CategoryBreakdown = []domain.CategoryTotal{}
	}
	return env.Stats
}

func transactionPath(id string) string {
	return "/api/transactions/" + url.PathEscape(id)
}
