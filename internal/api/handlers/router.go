package handlers

import (
	"net/http"

	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/history"
	"github.com/dvloznov/finance-dashboard/internal/jobs"
	"github.com/dvloznov/finance-dashboard/internal/receipt"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// Deps are the services behind the dashboard API. Store, Stocks, Commands
// and Scanner are required; the rest switch their routes off when nil.
type Deps struct {
	Store     DataStore
	Planner   PlanGenerator
	Stocks    StockAnalyzer
	Commands  CommandExecutor
	Scanner   *receipt.Scanner
	Images    receipt.ImageStore
	Publisher jobs.Publisher
	Jobs      jobs.JobStore
	History   history.Reader
	Events    *EventsHandler
	Metrics   http.Handler
	APIKey    string
}

// NewRouter registers every dashboard route. /health and /metrics are served
// without the API key.
func NewRouter(d Deps, log zerolog.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.Recovery(log), middleware.RequestID, middleware.Logger(log), middleware.CORS)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.APIKey(d.APIKey))
	// Lets CORS answer preflight requests for any API path.
	api.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	snapshots := NewSnapshotHandler(d.Store, log)
	api.HandleFunc("/snapshot", snapshots.GetSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/metrics", snapshots.GetMetrics).Methods(http.MethodGet)
	api.HandleFunc("/insights", snapshots.GetInsights).Methods(http.MethodGet)
	api.HandleFunc("/refresh", snapshots.Refresh).Methods(http.MethodPost)

	goals := NewGoalsHandler(d.Store, d.Planner, log)
	api.HandleFunc("/goals", goals.ListGoals).Methods(http.MethodGet)
	api.HandleFunc("/goals", goals.CreateGoal).Methods(http.MethodPost)
	api.HandleFunc("/goals/{id}", goals.UpdateGoal).Methods(http.MethodPut)
	api.HandleFunc("/goals/{id}", goals.DeleteGoal).Methods(http.MethodDelete)
	api.HandleFunc("/goals/{id}/plan", goals.GetPlan).Methods(http.MethodGet)
	api.HandleFunc("/goals/{id}/plan", goals.GeneratePlan).Methods(http.MethodPost)

	txs := NewTransactionsHandler(d.Store, log)
	api.HandleFunc("/transactions", txs.ListTransactions).Methods(http.MethodGet)
	api.HandleFunc("/transactions", txs.CreateTransaction).Methods(http.MethodPost)
	api.HandleFunc("/transactions/{id}", txs.UpdateTransaction).Methods(http.MethodPut)
	api.HandleFunc("/transactions/{id}", txs.DeleteTransaction).Methods(http.MethodDelete)

	api.HandleFunc("/stocks/{symbol}", NewStocksHandler(d.Stocks, log).Analyze).Methods(http.MethodGet)
	api.HandleFunc("/commands", NewCommandsHandler(d.Commands, log).Execute).Methods(http.MethodPost)

	receipts := NewReceiptsHandler(d.Scanner, d.Images, d.Publisher, log)
	api.HandleFunc("/receipts/parse", receipts.ParseText).Methods(http.MethodPost)
	api.HandleFunc("/receipts/scan", receipts.Scan).Methods(http.MethodPost)

	if d.Jobs != nil {
		jobsHandler := NewJobsHandler(d.Jobs, log)
		api.HandleFunc("/jobs", jobsHandler.ListJobs).Methods(http.MethodGet)
		api.HandleFunc("/jobs/{id}", jobsHandler.GetJob).Methods(http.MethodGet)
	}
	if d.History != nil {
		api.HandleFunc("/history", NewHistoryHandler(d.History, log).ListHistory).Methods(http.MethodGet)
	}
	if d.Events != nil {
		api.HandleFunc("/events", d.Events.Stream).Methods(http.MethodGet)
	}

	return r
}
