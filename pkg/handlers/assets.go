package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/services"
)

// TradeRequest for POST /api/assets/{symbol}/buy and /sell
type TradeRequest struct {
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
}

// UpdateQuantityRequest for PATCH /api/assets/{symbol}
type UpdateQuantityRequest struct {
	Quantity float64  `json:"quantity"`
	AvgPrice *float64 `json:"avg_price,omitempty"`
}

// AssetHandler handles crypto portfolio requests.
type AssetHandler struct {
	crypto services.CryptoService
	logger *zap.Logger
}

// NewAssetHandler creates a new asset handler.
func NewAssetHandler(crypto services.CryptoService, logger *zap.Logger) *AssetHandler {
	return &AssetHandler{crypto: crypto, logger: logger}
}

// RegisterRoutes registers the asset handler's routes on the given mux.
func (h *AssetHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/assets", h.List)
	mux.HandleFunc("POST /api/assets", h.Create)
	mux.HandleFunc("GET /api/assets/{symbol}", h.Get)
	mux.HandleFunc("PATCH /api/assets/{symbol}", h.UpdateQuantity)
	mux.HandleFunc("DELETE /api/assets/{symbol}", h.Delete)
	mux.HandleFunc("POST /api/assets/{symbol}/buy", h.Buy)
	mux.HandleFunc("POST /api/assets/{symbol}/sell", h.Sell)
}

// List handles GET /api/assets
func (h *AssetHandler) List(w http.ResponseWriter, r *http.Request) {
	assets, err := h.crypto.ListAssets(r.Context())
	if err != nil {
		writeServiceError(w, err, "list_assets_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, assets, h.logger)
}

// Create handles POST /api/assets
func (h *AssetHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.AssetInput
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	asset, err := h.crypto.AddAsset(r.Context(), &req)
	if err != nil {
		writeServiceError(w, err, "create_asset_failed", h.logger)
		return
	}
	writeData(w, http.StatusCreated, asset, h.logger)
}

// Get handles GET /api/assets/{symbol}
func (h *AssetHandler) Get(w http.ResponseWriter, r *http.Request) {
	asset, err := h.crypto.GetAsset(r.Context(), r.PathValue("symbol"))
	if err != nil {
		writeServiceError(w, err, "get_asset_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, asset, h.logger)
}

// UpdateQuantity handles PATCH /api/assets/{symbol}
func (h *AssetHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	asset, err := h.crypto.UpdateQuantity(r.Context(), r.PathValue("symbol"), req.Quantity, req.AvgPrice)
	if err != nil {
		writeServiceError(w, err, "update_asset_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, asset, h.logger)
}

// Delete handles DELETE /api/assets/{symbol}
func (h *AssetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.crypto.RemoveAsset(r.Context(), r.PathValue("symbol")); err != nil {
		writeServiceError(w, err, "delete_asset_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, nil, h.logger)
}

// Buy handles POST /api/assets/{symbol}/buy
func (h *AssetHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	asset, err := h.crypto.BuyCrypto(r.Context(), r.PathValue("symbol"), req.Quantity, req.Price)
	if err != nil {
		writeServiceError(w, err, "buy_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, asset, h.logger)
}

// Sell handles POST /api/assets/{symbol}/sell
func (h *AssetHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if !decodeBody(w, r, &req, h.logger) {
		return
	}

	result, err := h.crypto.SellCrypto(r.Context(), r.PathValue("symbol"), req.Quantity)
	if err != nil {
		writeServiceError(w, err, "sell_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, result, h.logger)
}
