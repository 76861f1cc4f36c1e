package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/services"
)

// DepositRequest for POST /api/savings/{id}/deposit. A negative amount withdraws.
type DepositRequest struct {
	Amount float64 `json:"amount"`
}

// SavingsHandler handles savings goal requests.
type SavingsHandler struct {
	savings services.SavingsService
	logger  *zap.Logger
}

// NewSavingsHandler creates a new savings handler.
func NewSavingsHandler(savings services.SavingsService, logger *zap.Logger) *SavingsHandler {
	return &SavingsHandler{savings: savings, logger: logger}
}

// RegisterRoutes registers the savings handler's routes on the given mux.
func (h *SavingsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/savings", h.List)
	mux.HandleFunc("POST /api/savings", h.Create)
	mux.HandleFunc("PATCH /api/savings/{id}", h.Update)
	mux.HandleFunc("DELETE /api/savings/{id}", h.Delete)
	mux.HandleFunc("POST /api/savings/{id}/deposit", h.Deposit)
}

// List handles GET /api/savings?include_completed=
func (h *SavingsHandler) List(w http.ResponseWriter, r *http.Request) {
	vaults, err := h.savings.ListSavingsVaults(r.Context(), queryBool(r, "include_completed"))
	if err != nil {
		writeServiceError(w, err, "list_savings_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, vaults, h.logger)
}

// Create handles POST /api/savings
func (h *SavingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.SavingsVaultInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	vault, err := h.savings.AddSavingsVault(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "create_savings_failed", h.logger)
		return
	}
	writeData(w, http.StatusCreated, vault, h.logger)
}

// Update handles PATCH /api/savings/{id}
func (h *SavingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.SavingsVaultUpdate
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	vault, err := h.savings.UpdateSavingsVault(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, "update_savings_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, vault, h.logger)
}

// Delete handles DELETE /api/savings/{id}
func (h *SavingsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.savings.DeleteSavingsVault(r.Context(), id); err != nil {
		writeServiceError(w, err, "delete_savings_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, nil, h.logger)
}

// Deposit handles POST /api/savings/{id}/deposit
func (h *SavingsHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req DepositRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	vault, err := h.savings.AddToSavingsVault(r.Context(), id, req.Amount)
	if err != nil {
		writeServiceError(w, err, "deposit_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, vault, h.logger)
}
