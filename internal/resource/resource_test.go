package resource

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/dvloznov/finance-dashboard/internal/apiclient"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend mimics the REST surface of the finance backend.
type fakeBackend struct {
	mu      sync.Mutex
	goals   []domain.Goal
	txs     []domain.Transaction
	failAll int // when non-zero every route answers with this status
	lastPut map[string]interface{}
}

func (b *fakeBackend) router() http.Handler {
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Authorization") != "Bearer tok" {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "No token"})
				return
			}
			if b.failAll != 0 {
				writeJSON(w, b.failAll, map[string]interface{}{"success": false, "message": "backend down"})
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.HandleFunc("/api/goals", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "goals": b.goals})
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/goals", func(w http.ResponseWriter, req *http.Request) {
		var in domain.GoalInput
		_ = json.NewDecoder(req.Body).Decode(&in)
		b.mu.Lock()
		defer b.mu.Unlock()
		g := domain.Goal{ID: "g-new", Title: in.Title, Amount: in.Amount, Type: in.Type}
		b.goals = append(b.goals, g)
		writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "goal": g})
	}).Methods(http.MethodPost)

	r.HandleFunc("/api/goals/{id}", func(w http.ResponseWriter, req *http.Request) {
		var patch map[string]interface{}
		_ = json.NewDecoder(req.Body).Decode(&patch)
		b.mu.Lock()
		defer b.mu.Unlock()
		b.lastPut = patch
		id := mux.Vars(req)["id"]
		for i := range b.goals {
			if b.goals[i].ID == id {
				if title, ok := patch["title"].(string); ok {
					b.goals[i].Title = title
				}
				writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "goal": b.goals[i]})
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"success": false, "message": "Goal not found"})
	}).Methods(http.MethodPut)

	r.HandleFunc("/api/goals/{id}", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}).Methods(http.MethodDelete)

	r.HandleFunc("/api/goals/{id}/plan", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "plan": "Save 5000 a month", "goalContext": map[string]interface{}{"months": 12}})
	}).Methods(http.MethodPost)

	r.HandleFunc("/api/transactions", func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		defer b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "transactions": b.txs})
	}).Methods(http.MethodGet)

	r.HandleFunc("/api/transactions", func(w http.ResponseWriter, req *http.Request) {
		var in domain.TransactionInput
		_ = json.NewDecoder(req.Body).Decode(&in)
		tx := domain.Transaction{ID: "t-new", Type: in.Type, Amount: in.Amount, Category: in.Category, Description: in.Description, Method: in.Method}
		writeJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "transaction": tx})
	}).Methods(http.MethodPost)

	r.HandleFunc("/api/transactions/stats", func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"stats":{"totalIncome":5000,"totalExpenses":1200,"netSavings":3800,"categoryBreakdown":[{"_id":"Food","total":700}]}}`))
	}).Methods(http.MethodGet)

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newServices(t *testing.T, backend *fakeBackend, token string) (*GoalService, *TransactionService) {
	t.Helper()
	server := httptest.NewServer(backend.router())
	t.Cleanup(server.Close)

	client, err := apiclient.New(apiclient.Config{BaseURL: server.URL}, apiclient.StaticToken(token))
	require.NoError(t, err)
	return NewGoalService(client, zerolog.Nop()), NewTransactionService(client, zerolog.Nop())
}

func TestGoalService_ListAndCreate(t *testing.T) {
	backend := &fakeBackend{goals: []domain.Goal{{ID: "g1", Title: "Laptop", Amount: domain.MoneyFromFloat(80000), Type: domain.GoalShortTerm}}}
	goals, _ := newServices(t, backend, "tok")
	ctx := context.Background()

	list := goals.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "Laptop", list[0].Title)

	created, err := goals.Create(ctx, domain.GoalInput{Title: "Car", Amount: domain.MoneyFromFloat(500000), Type: domain.GoalLongTerm})
	require.NoError(t, err)
	assert.Equal(t, "g-new", created.ID)

	list = goals.List(ctx)
	assert.Len(t, list, 2)
}

func TestGoalService_ListIsTolerant(t *testing.T) {
	backend := &fakeBackend{failAll: http.StatusInternalServerError}
	goals, _ := newServices(t, backend, "tok")

	list := goals.List(context.Background())
	assert.NotNil(t, list)
	assert.Empty(t, list)

	_, err := goals.Fetch(context.Background())
	var rf *apiclient.RequestFailedError
	require.True(t, errors.As(err, &rf))
	assert.Equal(t, "backend down", rf.Message)
}

func TestGoalService_CreateValidatesLocally(t *testing.T) {
	backend := &fakeBackend{}
	goals, _ := newServices(t, backend, "tok")

	_, err := goals.Create(context.Background(), domain.GoalInput{Title: "Car", Type: domain.GoalLongTerm})

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "amount", verr.Field)
	assert.Empty(t, backend.goals)
}

func TestGoalService_UpdateSendsOnlySetFields(t *testing.T) {
	backend := &fakeBackend{goals: []domain.Goal{{ID: "g1", Title: "Laptop"}}}
	goals, _ := newServices(t, backend, "tok")

	title := "Gaming laptop"
	updated, err := goals.Update(context.Background(), "g1", domain.GoalPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Gaming laptop", updated.Title)
	assert.Equal(t, map[string]interface{}{"title": "Gaming laptop"}, backend.lastPut)

	_, err = goals.Update(context.Background(), "missing", domain.GoalPatch{Title: &title})
	var rf *apiclient.RequestFailedError
	require.True(t, errors.As(err, &rf))
	assert.Equal(t, http.StatusNotFound, rf.StatusCode)
	assert.Equal(t, "Goal not found", rf.Message)
}

func TestGoalService_DeleteAndPlan(t *testing.T) {
	goals, _ := newServices(t, &fakeBackend{}, "tok")
	ctx := context.Background()

	require.NoError(t, goals.Delete(ctx, "g1"))

	plan, err := goals.GeneratePlan(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, plan.Success)
	assert.Equal(t, "Save 5000 a month", plan.Plan)
	assert.EqualValues(t, 12, plan.GoalContext["months"])

	assert.Error(t, goals.Delete(ctx, ""))
}

func TestServices_Unauthenticated(t *testing.T) {
	goals, txs := newServices(t, &fakeBackend{}, "")

	_, err := goals.Fetch(context.Background())
	assert.ErrorIs(t, err, apiclient.ErrUnauthenticated)

	_, err = txs.Create(context.Background(), domain.TransactionInput{Type: domain.TransactionExpense, Amount: domain.MoneyFromFloat(5), Description: "tea"})
	assert.ErrorIs(t, err, apiclient.ErrUnauthenticated)
}

func TestTransactionService_CreateNormalizes(t *testing.T) {
	_, txs := newServices(t, &fakeBackend{}, "tok")

	tx, err := txs.Create(context.Background(), domain.TransactionInput{Type: domain.TransactionExpense, Amount: domain.MoneyFromFloat(250), Description: "Auto fare"})
	require.NoError(t, err)
	assert.Equal(t, "t-new", tx.ID)
	assert.Equal(t, domain.DefaultCategory, tx.Category)
	assert.Equal(t, domain.MethodManual, tx.Method)
}

func TestTransactionService_Stats(t *testing.T) {
	_, txs := newServices(t, &fakeBackend{}, "tok")

	stats := txs.Stats(context.Background())
	assert.Equal(t, "5000", stats.TotalIncome.String())
	require.Len(t, stats.CategoryBreakdown, 1)
	assert.Equal(t, "Food", stats.CategoryBreakdown[0].Category)

	_, failing := newServices(t, &fakeBackend{failAll: http.StatusBadGateway}, "tok")
	zero := failing.Stats(context.Background())
	assert.True(t, zero.TotalIncome.IsZero())
	assert.NotNil(t, zero.CategoryBreakdown)
}

func TestTransactionService_ListDecodesStringAmounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"transactions":[{"_id":"t1","type":"income","amount":"1500.50","date":"2024-02-01"}]}`))
	}))
	defer server.Close()

	client, err := apiclient.New(apiclient.Config{BaseURL: server.URL}, apiclient.StaticToken("tok"))
	require.NoError(t, err)

	list := NewTransactionService(client, zerolog.Nop()).List(context.Background())
	require.Len(t, list, 1)
	assert.Equal(t, "1500.5", list[0].Amount.String())
}
