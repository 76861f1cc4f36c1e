package handlers

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/services"
)

// TransactionHandler handles personal transaction requests.
type TransactionHandler struct {
	finance services.FinanceService
	now     func() time.Time
	logger  *zap.Logger
}

// NewTransactionHandler creates a new transaction handler.
func NewTransactionHandler(finance services.FinanceService, logger *zap.Logger) *TransactionHandler {
	return &TransactionHandler{finance: finance, now: time.Now, logger: logger}
}

// RegisterRoutes registers the transaction handler's routes on the given mux.
func (h *TransactionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/transactions", h.List)
	mux.HandleFunc("POST /api/transactions", h.Create)
	mux.HandleFunc("GET /api/transactions/summary", h.Summary)
	mux.HandleFunc("PATCH /api/transactions/{id}", h.Update)
	mux.HandleFunc("DELETE /api/transactions/{id}", h.Delete)
}

// List handles GET /api/transactions?type=&start=&end=&limit=
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit", 0, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := models.TransactionFilter{
		StartDate: q.Get("start"),
		EndDate:   q.Get("end"),
		Limit:     limit,
	}
	if t := strings.TrimSpace(q.Get("type")); t != "" {
		typ := models.TransactionType(strings.ToLower(t))
		filter.Type = &typ
	}

	txs, err := h.finance.ListTransactions(r.Context(), filter)
	if err != nil {
		writeServiceError(w, err, "list_transactions_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, txs, h.logger)
}

// Create handles POST /api/transactions
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.TransactionInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	tx, err := h.finance.AddTransaction(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "create_transaction_failed", h.logger)
		return
	}
	writeData(w, http.StatusCreated, tx, h.logger)
}

// Update handles PATCH /api/transactions/{id}
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.TransactionUpdate
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	tx, err := h.finance.UpdateTransaction(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, "update_transaction_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, tx, h.logger)
}

// Delete handles DELETE /api/transactions/{id}
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.finance.DeleteTransaction(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete_transaction_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, nil, h.logger)
}

// Summary handles GET /api/transactions/summary?year=&month=, defaulting to
// the current month.
func (h *TransactionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	year, ok := queryInt(w, r, "year", now.Year(), h.logger)
	if !ok {
		return
	}
	month, ok := queryInt(w, r, "month", int(now.Month()), h.logger)
	if !ok {
		return
	}

	summary, err := h.finance.MonthlySummary(r.Context(), year, month)
	if err != nil {
		writeServiceError(w, err, "summary_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, summary, h.logger)
}
