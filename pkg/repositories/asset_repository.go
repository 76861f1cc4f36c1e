package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

// AssetRepository provides data access for crypto holdings.
type AssetRepository interface {
	Create(ctx context.Context, asset *models.Asset) error
	GetBySymbol(ctx context.Context, symbol string) (*models.Asset, error)
	List(ctx context.Context) ([]*models.Asset, error)
	UpdatePosition(ctx context.Context, id uuid.UUID, quantity float64, buyPrice *float64) (*models.Asset, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type assetRepository struct {
	db *database.DB
}

// NewAssetRepository creates a new AssetRepository.
func NewAssetRepository(db *database.DB) AssetRepository {
	return &assetRepository{db: db}
}

var _ AssetRepository = (*assetRepository)(nil)

const assetColumns = `id, symbol, name, quantity::float8, buy_price::float8, created_at`

func (r *assetRepository) Create(ctx context.Context, asset *models.Asset) error {
	query := `
		INSERT INTO assets (symbol, name, quantity, buy_price)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + assetColumns

	created, err := scanAsset(r.db.Conn(ctx).QueryRow(ctx, query,
		asset.Symbol, asset.Name, asset.Quantity, asset.BuyPrice))
	if err != nil {
		return fmt.Errorf("failed to create asset: %w", err)
	}
	*asset = *created
	return nil
}

func (r *assetRepository) GetBySymbol(ctx context.Context, symbol string) (*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets WHERE symbol = $1`

	asset, err := scanAsset(r.db.Conn(ctx).QueryRow(ctx, query, symbol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return asset, nil
}

func (r *assetRepository) List(ctx context.Context) ([]*models.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM assets ORDER BY created_at DESC`

	rows, err := r.db.Conn(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assets: %w", err)
	}
	defer rows.Close()

	assets := make([]*models.Asset, 0)
	for rows.Next() {
		asset, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset: %w", err)
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assets: %w", err)
	}
	return assets, nil
}

// UpdatePosition sets the quantity and, when buyPrice is non-nil, the average buy price.
func (r *assetRepository) UpdatePosition(ctx context.Context, id uuid.UUID, quantity float64, buyPrice *float64) (*models.Asset, error) {
	query := `
		UPDATE assets
		SET quantity = $2, buy_price = COALESCE($3, buy_price)
		WHERE id = $1
		RETURNING ` + assetColumns

	asset, err := scanAsset(r.db.Conn(ctx).QueryRow(ctx, query, id, quantity, buyPrice))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update asset: %w", err)
	}
	return asset, nil
}

func (r *assetRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM assets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanAsset(row pgx.Row) (*models.Asset, error) {
	var a models.Asset
	if err := row.Scan(&a.ID, &a.Symbol, &a.Name, &a.Quantity, &a.BuyPrice, &a.CreatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}
