package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/dvloznov/finance-dashboard/internal/events"
	"github.com/dvloznov/finance-dashboard/internal/insights"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// DataStore is the shared data store as seen by the HTTP layer.
type DataStore interface {
	Snapshot() domain.Snapshot
	Goals() []domain.Goal
	Transactions() []domain.Transaction
	Metrics() domain.Metrics
	RefreshData(ctx context.Context) error
	AddGoal(ctx context.Context, in domain.GoalInput) (domain.Goal, error)
	UpdateGoal(ctx context.Context, id string, patch domain.GoalPatch) (domain.Goal, error)
	DeleteGoal(ctx context.Context, id string) error
	AddTransaction(ctx context.Context, in domain.TransactionInput) (domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id string, in domain.TransactionInput) (domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) error
	SubscribeAll(h events.Handler) func()
}

// PlanGenerator asks the backend for a written goal plan.
type PlanGenerator interface {
	GeneratePlan(ctx context.Context, id string) (domain.GoalPlan, error)
}

// SnapshotHandler serves the read side of the dashboard.
type SnapshotHandler struct {
	store DataStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(store DataStore, log zerolog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

// GetSnapshot handles GET /api/snapshot
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.store.Snapshot())
}

// GetMetrics handles GET /api/metrics
func (h *SnapshotHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"metrics":      snap.Metrics,
		"savingsTrend": insights.MonthlySavingsTrend(snap.Transactions, h.now()),
		"lastUpdate":   snap.LastUpdate,
	})
}

// GetInsights handles GET /api/insights
func (h *SnapshotHandler) GetInsights(w http.ResponseWriter, r *http.Request) {
	snap := h.store.Snapshot()
	now := h.now()
	report := insights.BuildReport(snap, now)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"report":         report,
		"analysis":       insights.AnalyzeExpenses(snap.Transactions, now),
		"goalSuggestion": insights.SuggestGoal(snap.Transactions),
	})
}

// Refresh handles POST /api/refresh. A partial failure still answers with
// the refreshed snapshot plus the error.
func (h *SnapshotHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	err := h.store.RefreshData(r.Context())
	if err == nil {
		middleware.WriteJSON(w, http.StatusOK, h.store.Snapshot())
		return
	}

	var re interface{ Partial() bool }
	if errors.As(err, &re) && re.Partial() {
		h.log.Warn().Err(err).Msg("Partial refresh")
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"snapshot": h.store.Snapshot(),
			"error":    err.Error(),
		})
		return
	}
	writeErr(w, h.log, "refresh", err)
}

// GoalsHandler handles goal endpoints.
type GoalsHandler struct {
	store   DataStore
	planner PlanGenerator
	log     zerolog.Logger
	now     func() time.Time
}

// NewGoalsHandler creates a new goals handler. planner may be nil, in which
// case only locally computed plans are served.
func NewGoalsHandler(store DataStore, planner PlanGenerator, log zerolog.Logger) *GoalsHandler {
	return &GoalsHandler{
		store:   store,
		planner: planner,
		log:     log,
		now:     time.Now,
	}
}

// ListGoals handles GET /api/goals
func (h *GoalsHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	goals := h.store.Goals()
	if goals == nil {
		goals = []domain.Goal{}
	}
	middleware.WriteJSON(w, http.StatusOK, goals)
}

// CreateGoal handles POST /api/goals
func (h *GoalsHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var in domain.GoalInput
	if !decode(w, r, &in) {
		return
	}

	goal, err := h.store.AddGoal(r.Context(), in)
	if err != nil {
		writeErr(w, h.log, "create goal", err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, goal)
}

// UpdateGoal handles PUT /api/goals/{id}
func (h *GoalsHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	var patch domain.GoalPatch
	if !decode(w, r, &patch) {
		return
	}

	goal, err := h.store.UpdateGoal(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeErr(w, h.log, "update goal", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, goal)
}

// DeleteGoal handles DELETE /api/goals/{id}
func (h *GoalsHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteGoal(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, h.log, "delete goal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPlan handles GET /api/goals/{id}/plan with a plan computed from the
// cached snapshot.
func (h *GoalsHandler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	snap := h.store.Snapshot()

	for _, g := range snap.Goals {
		if g.ID != id {
			continue
		}
		now := h.now()
		middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"plan":     insights.BuildGoalPlan(g, insights.AnalyzeExpenses(snap.Transactions, now), now),
			"progress": insights.GoalProgress(g, now),
		})
		return
	}
	middleware.WriteErrorKind(w, http.StatusNotFound, "not_found", "Goal not found")
}

// GeneratePlan handles POST /api/goals/{id}/plan by asking the backend.
func (h *GoalsHandler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	if h.planner == nil {
		middleware.WriteErrorKind(w, http.StatusNotImplemented, "unavailable", "Plan generation is not configured")
		return
	}

	plan, err := h.planner.GeneratePlan(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeErr(w, h.log, "generate plan", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, plan)
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	store DataStore
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(store DataStore, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{
		store: store,
		log:   log,
	}
}

// ListTransactions handles GET /api/transactions. The optional type and
// category query parameters filter the cached list; start_date and end_date
// bound it by day.
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	var start, end time.Time
	var err error
	if s := query.Get("start_date"); s != "" {
		if start, err = time.Parse(domain.DateLayout, s); err != nil {
			middleware.WriteErrorKind(w, http.StatusBadRequest, "validation", "Invalid start_date format")
			return
		}
	}
	if s := query.Get("end_date"); s != "" {
		if end, err = time.Parse(domain.DateLayout, s); err != nil {
			middleware.WriteErrorKind(w, http.StatusBadRequest, "validation", "Invalid end_date format")
			return
		}
	}

	typ := domain.TransactionType(query.Get("type"))
	category := query.Get("category")

	// Return array directly for frontend compatibility
	out := []domain.Transaction{}
	for _, tx := range h.store.Transactions() {
		if typ != "" && tx.Type != typ {
			continue
		}
		if category != "" && tx.CategoryOrDefault() != category {
			continue
		}
		if !start.IsZero() || !end.IsZero() {
			at, ok := tx.Time()
			if !ok || (!start.IsZero() && at.Before(start)) || (!end.IsZero() && at.After(end)) {
				continue
			}
		}
		out = append(out, tx)
	}
	middleware.WriteJSON(w, http.StatusOK, out)
}

// CreateTransaction handles POST /api/transactions
func (h *TransactionsHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in domain.TransactionInput
	if !decode(w, r, &in) {
		return
	}

	tx, err := h.store.AddTransaction(r.Context(), in)
	if err != nil {
		writeErr(w, h.log, "create transaction", err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, tx)
}

// UpdateTransaction handles PUT /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var in domain.TransactionInput
	if !decode(w, r, &in) {
		return
	}

	tx, err := h.store.UpdateTransaction(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeErr(w, h.log, "update transaction", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, tx)
}

// DeleteTransaction handles DELETE /api/transactions/{id}
func (h *TransactionsHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTransaction(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeErr(w, h.log, "delete transaction", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON body into v, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorKind(w, http.StatusBadRequest, "validation", "Invalid request body")
		return false
	}
	return true
}
