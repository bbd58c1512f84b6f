package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/finance-dashboard/internal/advisor"
	"github.com/dvloznov/finance-dashboard/internal/api/middleware"
	"github.com/dvloznov/finance-dashboard/internal/history"
	"github.com/dvloznov/finance-dashboard/internal/intent"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// DefaultHistoryLimit is used when GET /api/history has no limit.
const DefaultHistoryLimit = 30

// StockAnalyzer classifies a symbol's recent prices.
type StockAnalyzer interface {
	Analyze(ctx context.Context, symbol string) (advisor.Analysis, error)
}

// CommandExecutor runs a typed or spoken command.
type CommandExecutor interface {
	Execute(ctx context.Context, text string) (intent.Outcome, error)
}

// StocksHandler handles GET /api/stocks/{symbol}.
type StocksHandler struct {
	analyzer StockAnalyzer
	log      zerolog.Logger
}

// NewStocksHandler creates a new stocks handler.
func NewStocksHandler(analyzer StockAnalyzer, log zerolog.Logger) *StocksHandler {
	return &StocksHandler{analyzer: analyzer, log: log}
}

// Analyze handles GET /api/stocks/{symbol}
func (h *StocksHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.analyzer.Analyze(r.Context(), mux.Vars(r)["symbol"])
	if err != nil {
		writeErr(w, h.log, "analyze stock", err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, analysis)
}

// CommandsHandler handles POST /api/commands.
type CommandsHandler struct {
	executor CommandExecutor
	log      zerolog.Logger
}

// NewCommandsHandler creates a new commands handler.
func NewCommandsHandler(executor CommandExecutor, log zerolog.Logger) *CommandsHandler {
	return &CommandsHandler{executor: executor, log: log}
}

// Execute handles POST /api/commands
func (h *CommandsHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		middleware.WriteErrorKind(w, http.StatusBadRequest, KindValidation, "text is required")
		return
	}

	outcome, err := h.executor.Execute(r.Context(), req.Text)
	if err != nil {
		writeErr(w, h.log, "execute command", err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, outcome)
}

// HistoryHandler handles GET /api/history.
type HistoryHandler struct {
	reader history.Reader
	log    zerolog.Logger
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(reader history.Reader, log zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{reader: reader, log: log}
}

// ListHistory handles GET /api/history
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			middleware.WriteErrorKind(w, http.StatusBadRequest, KindValidation, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.reader.ListRecent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list history")
		middleware.WriteErrorKind(w, http.StatusInternalServerError, KindInternal, "Failed to list history")
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
