package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

func TestAssetHandler_Create(t *testing.T) {
	var got *models.AssetInput
	crypto := &mockCryptoService{
		addFn: func(_ context.Context, input *models.AssetInput) (*models.Asset, error) {
			got = input
			return &models.Asset{ID: uuid.New(), Symbol: "BTC", Quantity: input.Quantity, BuyPrice: input.BuyPrice}, nil
		},
	}
	h := NewAssetHandler(crypto, zap.NewNop())

	rec := serve(t, h, http.MethodPost, "/api/assets", `{"symbol":"btc","quantity":0.5,"buy_price":42000}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var asset models.Asset
	resp := decodeResponse(t, rec, &asset)
	assert.True(t, resp.Success)
	assert.Equal(t, "BTC", asset.Symbol)
	assert.Equal(t, "btc", got.Symbol)
	assert.Equal(t, 42000.0, got.BuyPrice)
}

func TestAssetHandler_Create_ValidationError(t *testing.T) {
	crypto := &mockCryptoService{
		addFn: func(context.Context, *models.AssetInput) (*models.Asset, error) {
			return nil, fmt.Errorf("%w: quantity must be positive", apperrors.ErrInvalidInput)
		},
	}
	h := NewAssetHandler(crypto, zap.NewNop())

	rec := serve(t, h, http.MethodPost, "/api/assets", `{"symbol":"BTC","quantity":-1,"buy_price":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec, nil)
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid_input", resp.Error)
}

func TestAssetHandler_BuyAndSell(t *testing.T) {
	var boughtSymbol string
	var boughtQty, boughtPrice float64
	crypto := &mockCryptoService{
		buyFn: func(_ context.Context, symbol string, quantity, price float64) (*models.Asset, error) {
			boughtSymbol, boughtQty, boughtPrice = symbol, quantity, price
			return &models.Asset{Symbol: symbol, Quantity: 2, BuyPrice: 150}, nil
		},
		sellFn: func(_ context.Context, symbol string, quantity float64) (*models.SellResult, error) {
			return &models.SellResult{Success: true, RemainingQuantity: 0, Removed: true}, nil
		},
	}
	h := NewAssetHandler(crypto, zap.NewNop())

	rec := serve(t, h, http.MethodPost, "/api/assets/ETH/buy", `{"quantity":1,"price":200}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ETH", boughtSymbol)
	assert.Equal(t, 1.0, boughtQty)
	assert.Equal(t, 200.0, boughtPrice)

	rec = serve(t, h, http.MethodPost, "/api/assets/ETH/sell", `{"quantity":2}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var result models.SellResult
	decodeResponse(t, rec, &result)
	assert.True(t, result.Removed)
}

func TestAssetHandler_UpdateQuantity(t *testing.T) {
	var gotPrice *float64
	crypto := &mockCryptoService{
		updateFn: func(_ context.Context, symbol string, quantity float64, avgPrice *float64) (*models.Asset, error) {
			gotPrice = avgPrice
			return &models.Asset{Symbol: symbol, Quantity: quantity}, nil
		},
	}
	h := NewAssetHandler(crypto, zap.NewNop())

	rec := serve(t, h, http.MethodPatch, "/api/assets/SOL", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, gotPrice)

	rec = serve(t, h, http.MethodPatch, "/api/assets/SOL", `{"quantity":3,"avg_price":20.5}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotPrice)
	assert.Equal(t, 20.5, *gotPrice)
}

func TestAssetHandler_Delete_NotFound(t *testing.T) {
	crypto := &mockCryptoService{
		removeFn: func(context.Context, string) error {
			return fmt.Errorf("remove asset: %w", apperrors.ErrNotFound)
		},
	}
	h := NewAssetHandler(crypto, zap.NewNop())

	rec := serve(t, h, http.MethodDelete, "/api/assets/DOGE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAssetHandler_List_InternalError(t *testing.T) {
	crypto := &mockCryptoService{
		listFn: func(context.Context) ([]*models.Asset, error) {
			return nil, fmt.Errorf("failed to query assets: connection reset")
		},
	}
	h := NewAssetHandler(crypto, zap.NewNop())

	rec := serve(t, h, http.MethodGet, "/api/assets", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeResponse(t, rec, nil)
	assert.Equal(t, "list_assets_failed", resp.Error)
}

func TestAssetHandler_RejectsMalformedBody(t *testing.T) {
	h := NewAssetHandler(&mockCryptoService{}, zap.NewNop())

	rec := serve(t, h, http.MethodPost, "/api/assets/BTC/buy", `{"quantity":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
