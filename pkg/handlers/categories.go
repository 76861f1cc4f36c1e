package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/services"
)

// CategoryHandler handles finance category requests.
type CategoryHandler struct {
	categories services.CategoryService
	logger     *zap.Logger
}

// NewCategoryHandler creates a new category handler.
func NewCategoryHandler(categories services.CategoryService, logger *zap.Logger) *CategoryHandler {
	return &CategoryHandler{categories: categories, logger: logger}
}

// RegisterRoutes registers the category handler's routes on the given mux.
func (h *CategoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/categories", h.List)
	mux.HandleFunc("POST /api/categories", h.Create)
	mux.HandleFunc("PATCH /api/categories/{id}", h.Update)
	mux.HandleFunc("DELETE /api/categories/{id}", h.Delete)
}

// List handles GET /api/categories?type=
func (h *CategoryHandler) List(w http.ResponseWriter, r *http.Request) {
	var catType *models.CategoryType
	if t := strings.TrimSpace(r.URL.Query().Get("type")); t != "" {
		ct := models.CategoryType(strings.ToLower(t))
		catType = &ct
	}

	cats, err := h.categories.ListCategories(r.Context(), catType)
	if err != nil {
		writeServiceError(w, err, "list_categories_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, cats, h.logger)
}

// Create handles POST /api/categories
func (h *CategoryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CategoryInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	cat, err := h.categories.AddCategory(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "create_category_failed", h.logger)
		return
	}
	writeData(w, http.StatusCreated, cat, h.logger)
}

// Update handles PATCH /api/categories/{id}
func (h *CategoryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	var req models.CategoryUpdate
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	cat, err := h.categories.UpdateCategory(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, err, "update_category_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, cat, h.logger)
}

// Delete handles DELETE /api/categories/{id}?force=. A category still used by
// transactions is refused with 409 unless force is set.
func (h *CategoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseID(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.categories.DeleteCategory(r.Context(), id, queryBool(r, "force"))
	if err != nil {
		writeServiceError(w, err, "delete_category_failed", h.logger)
		return
	}

	if !result.Success {
		if err := WriteJSON(w, http.StatusConflict, ApiResponse{
			Success: false,
			Data:    result,
			Error:   "category_in_use",
			Message: result.Message,
		}); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
		return
	}
	writeData(w, http.StatusOK, result, h.logger)
}
