package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/money"
	"github.com/hodlisma/hodlisma-engine/pkg/repositories"
)

// assetScale matches the NUMERIC scale of assets.quantity and assets.buy_price,
// so audited values equal what the database stores.
const assetScale = 10

// CryptoService manages the crypto portfolio. Every mutation is audited under
// the CRYPTO module.
type CryptoService interface {
	AddAsset(ctx context.Context, input *models.AssetInput) (*models.Asset, error)

	// BuyCrypto adds to a position at a new price, averaging the buy price by
	// quantity. A missing position is created.
	BuyCrypto(ctx context.Context, symbol string, quantity, price float64) (*models.Asset, error)

	// SellCrypto reduces a position. Selling everything removes the asset.
	SellCrypto(ctx context.Context, symbol string, quantity float64) (*models.SellResult, error)

	// UpdateQuantity overwrites the quantity and, when avgPrice is set, the buy price.
	UpdateQuantity(ctx context.Context, symbol string, quantity float64, avgPrice *float64) (*models.Asset, error)

	RemoveAsset(ctx context.Context, symbol string) error
	ListAssets(ctx context.Context) ([]*models.Asset, error)
	GetAsset(ctx context.Context, symbol string) (*models.Asset, error)
}

type cryptoService struct {
	repo   repositories.AssetRepository
	audit  AuditService
	tx     database.TxRunner
	money  money.Formatter
	logger *zap.Logger
}

// NewCryptoService creates a new CryptoService.
func NewCryptoService(
	repo repositories.AssetRepository,
	audit AuditService,
	tx database.TxRunner,
	formatter money.Formatter,
	logger *zap.Logger,
) CryptoService {
	if tx == nil {
		tx = database.NoTx{}
	}
	return &cryptoService{
		repo:   repo,
		audit:  audit,
		tx:     tx,
		money:  formatter,
		logger: logger.Named("crypto-service"),
	}
}

var _ CryptoService = (*cryptoService)(nil)

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func formatQuantity(q float64) string {
	return decimal.NewFromFloat(q).String()
}

func roundAsset(d decimal.Decimal) float64 {
	return d.Round(assetScale).InexactFloat64()
}

func (s *cryptoService) AddAsset(ctx context.Context, input *models.AssetInput) (*models.Asset, error) {
	symbol := normalizeSymbol(input.Symbol)
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", apperrors.ErrInvalidInput)
	}
	if input.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", apperrors.ErrInvalidInput)
	}
	if input.BuyPrice < 0 {
		return nil, fmt.Errorf("%w: buy price cannot be negative", apperrors.ErrInvalidInput)
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = symbol
	}

	asset := &models.Asset{
		Symbol:   symbol,
		Name:     &name,
		Quantity: roundAsset(decimal.NewFromFloat(input.Quantity)),
		BuyPrice: roundAsset(decimal.NewFromFloat(input.BuyPrice)),
	}

	description := fmt.Sprintf("Added %s %s @ %s",
		formatQuantity(asset.Quantity), asset.Symbol, s.money.Format(asset.BuyPrice))

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, asset); err != nil {
			return err
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleCrypto,
			Action:      models.AuditActionAddAsset,
			EntityType:  models.AuditEntityAsset,
			EntityID:    &asset.ID,
			NewData:     asset.Snapshot(),
			Description: &description,
		})
	})
	if err != nil {
		s.logger.Error("Failed to add asset", zap.String("symbol", symbol), zap.Error(err))
		return nil, fmt.Errorf("add asset: %w", err)
	}

	return asset, nil
}

func (s *cryptoService) BuyCrypto(ctx context.Context, symbol string, quantity, price float64) (*models.Asset, error) {
	symbol = normalizeSymbol(symbol)
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", apperrors.ErrInvalidInput)
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", apperrors.ErrInvalidInput)
	}

	existing, err := s.repo.GetBySymbol(ctx, symbol)
	if errors.Is(err, apperrors.ErrNotFound) {
		return s.AddAsset(ctx, &models.AssetInput{Symbol: symbol, Quantity: quantity, BuyPrice: price})
	}
	if err != nil {
		return nil, fmt.Errorf("buy crypto: %w", err)
	}

	oldQty := decimal.NewFromFloat(existing.Quantity)
	addQty := decimal.NewFromFloat(quantity)
	newQty := oldQty.Add(addQty)
	total := oldQty.Mul(decimal.NewFromFloat(existing.BuyPrice)).Add(addQty.Mul(decimal.NewFromFloat(price)))
	avgPrice := roundAsset(total.Div(newQty))

	var updated *models.Asset
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.UpdatePosition(ctx, existing.ID, roundAsset(newQty), &avgPrice)
		if err != nil {
			return err
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleCrypto,
			Action:      models.AuditActionBuyMore,
			EntityType:  models.AuditEntityAsset,
			EntityID:    &updated.ID,
			OldData:     models.Snapshot{"quantity": existing.Quantity, "buy_price": existing.BuyPrice},
			NewData:     models.Snapshot{"quantity": updated.Quantity, "buy_price": updated.BuyPrice},
			Description: models.StringPtr(fmt.Sprintf("Bought %s more %s @ %s", formatQuantity(quantity), symbol, s.money.Format(price))),
		})
	})
	if err != nil {
		s.logger.Error("Failed to buy crypto", zap.String("symbol", symbol), zap.Error(err))
		return nil, fmt.Errorf("buy crypto: %w", err)
	}

	return updated, nil
}

func (s *cryptoService) SellCrypto(ctx context.Context, symbol string, quantity float64) (*models.SellResult, error) {
	symbol = normalizeSymbol(symbol)
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", apperrors.ErrInvalidInput)
	}

	existing, err := s.repo.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("sell crypto: %w", err)
	}

	remaining := decimal.NewFromFloat(existing.Quantity).Sub(decimal.NewFromFloat(quantity))

	if !remaining.IsPositive() {
		err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
			if err := s.repo.Delete(ctx, existing.ID); err != nil {
				return err
			}
			return recordMutation(ctx, s.audit, &models.AuditLogInput{
				Module:      models.AuditModuleCrypto,
				Action:      models.AuditActionRemoveAsset,
				EntityType:  models.AuditEntityAsset,
				EntityID:    &existing.ID,
				OldData:     existing.Snapshot(),
				Description: models.StringPtr(fmt.Sprintf("Sold all %s %s", formatQuantity(existing.Quantity), symbol)),
			})
		})
		if err != nil {
			s.logger.Error("Failed to remove sold asset", zap.String("symbol", symbol), zap.Error(err))
			return nil, fmt.Errorf("sell crypto: %w", err)
		}
		return &models.SellResult{Success: true, RemainingQuantity: 0, Removed: true}, nil
	}

	left := roundAsset(remaining)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.UpdatePosition(ctx, existing.ID, left, nil); err != nil {
			return err
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleCrypto,
			Action:      models.AuditActionSellCrypto,
			EntityType:  models.AuditEntityAsset,
			EntityID:    &existing.ID,
			OldData:     models.Snapshot{"quantity": existing.Quantity},
			NewData:     models.Snapshot{"quantity": left},
			Description: models.StringPtr(fmt.Sprintf("Sold %s %s", formatQuantity(quantity), symbol)),
		})
	})
	if err != nil {
		s.logger.Error("Failed to sell crypto", zap.String("symbol", symbol), zap.Error(err))
		return nil, fmt.Errorf("sell crypto: %w", err)
	}

	return &models.SellResult{Success: true, RemainingQuantity: left}, nil
}

func (s *cryptoService) UpdateQuantity(ctx context.Context, symbol string, quantity float64, avgPrice *float64) (*models.Asset, error) {
	symbol = normalizeSymbol(symbol)
	if quantity < 0 {
		return nil, fmt.Errorf("%w: quantity cannot be negative", apperrors.ErrInvalidInput)
	}

	existing, err := s.repo.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("update quantity: %w", err)
	}

	qty := roundAsset(decimal.NewFromFloat(quantity))
	oldData := models.Snapshot{"quantity": existing.Quantity}
	var price *float64
	if avgPrice != nil {
		p := roundAsset(decimal.NewFromFloat(*avgPrice))
		price = &p
		oldData["buy_price"] = existing.BuyPrice
	}

	var updated *models.Asset
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.UpdatePosition(ctx, existing.ID, qty, price)
		if err != nil {
			return err
		}
		newData := models.Snapshot{"quantity": updated.Quantity}
		if price != nil {
			newData["buy_price"] = updated.BuyPrice
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleCrypto,
			Action:      models.AuditActionUpdateQuantity,
			EntityType:  models.AuditEntityAsset,
			EntityID:    &updated.ID,
			OldData:     oldData,
			NewData:     newData,
			Description: models.StringPtr(fmt.Sprintf("Set %s quantity to %s", symbol, formatQuantity(qty))),
		})
	})
	if err != nil {
		s.logger.Error("Failed to update asset quantity", zap.String("symbol", symbol), zap.Error(err))
		return nil, fmt.Errorf("update quantity: %w", err)
	}

	return updated, nil
}

func (s *cryptoService) RemoveAsset(ctx context.Context, symbol string) error {
	symbol = normalizeSymbol(symbol)

	existing, err := s.repo.GetBySymbol(ctx, symbol)
	if err != nil {
		return fmt.Errorf("remove asset: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, existing.ID); err != nil {
			return err
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleCrypto,
			Action:      models.AuditActionRemoveAsset,
			EntityType:  models.AuditEntityAsset,
			EntityID:    &existing.ID,
			OldData:     existing.Snapshot(),
			Description: models.StringPtr("Removed " + symbol + " from portfolio"),
		})
	})
	if err != nil {
		s.logger.Error("Failed to remove asset", zap.String("symbol", symbol), zap.Error(err))
		return fmt.Errorf("remove asset: %w", err)
	}
	return nil
}

func (s *cryptoService) ListAssets(ctx context.Context) ([]*models.Asset, error) {
	return s.repo.List(ctx)
}

func (s *cryptoService) GetAsset(ctx context.Context, symbol string) (*models.Asset, error) {
	return s.repo.GetBySymbol(ctx, normalizeSymbol(symbol))
}
