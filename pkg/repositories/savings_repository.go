package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

// SavingsRepository provides data access for savings vaults.
type SavingsRepository interface {
	Create(ctx context.Context, input *models.SavingsVaultInput) (*models.SavingsVault, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.SavingsVault, error)
	List(ctx context.Context, includeCompleted bool) ([]*models.SavingsVault, error)
	Update(ctx context.Context, id uuid.UUID, update *models.SavingsVaultUpdate) (*models.SavingsVault, error)
	SetBalance(ctx context.Context, id uuid.UUID, currentAmount float64, completed bool) (*models.SavingsVault, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type savingsRepository struct {
	db *database.DB
}

// NewSavingsRepository creates a new SavingsRepository.
func NewSavingsRepository(db *database.DB) SavingsRepository {
	return &savingsRepository{db: db}
}

var _ SavingsRepository = (*savingsRepository)(nil)

const savingsColumns = `id, name, target_amount::float8, current_amount::float8, is_completed, created_at`

func (r *savingsRepository) Create(ctx context.Context, input *models.SavingsVaultInput) (*models.SavingsVault, error) {
	query := `
		INSERT INTO savings_vault (name, target_amount, current_amount, is_completed)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + savingsColumns

	completed := input.TargetAmount > 0 && input.CurrentAmount >= input.TargetAmount
	vault, err := scanSavingsVault(r.db.Conn(ctx).QueryRow(ctx, query,
		input.Name, input.TargetAmount, input.CurrentAmount, completed))
	if err != nil {
		return nil, fmt.Errorf("failed to create savings vault: %w", err)
	}
	return vault, nil
}

func (r *savingsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SavingsVault, error) {
	query := `SELECT ` + savingsColumns + ` FROM savings_vault WHERE id = $1`

	vault, err := scanSavingsVault(r.db.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get savings vault: %w", err)
	}
	return vault, nil
}

func (r *savingsRepository) List(ctx context.Context, includeCompleted bool) ([]*models.SavingsVault, error) {
	query := `
		SELECT ` + savingsColumns + `
		FROM savings_vault
		WHERE ($1 OR NOT is_completed)
		ORDER BY created_at DESC`

	rows, err := r.db.Conn(ctx).Query(ctx, query, includeCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to query savings vaults: %w", err)
	}
	defer rows.Close()

	vaults := make([]*models.SavingsVault, 0)
	for rows.Next() {
		vault, err := scanSavingsVault(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan savings vault: %w", err)
		}
		vaults = append(vaults, vault)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating savings vaults: %w", err)
	}
	return vaults, nil
}

func (r *savingsRepository) Update(ctx context.Context, id uuid.UUID, update *models.SavingsVaultUpdate) (*models.SavingsVault, error) {
	var sets []string
	args := []any{id}

	if update.Name != nil {
		args = append(args, *update.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if update.TargetAmount != nil {
		args = append(args, *update.TargetAmount)
		sets = append(sets, fmt.Sprintf("target_amount = $%d", len(args)))
	}
	if update.CurrentAmount != nil {
		args = append(args, *update.CurrentAmount)
		sets = append(sets, fmt.Sprintf("current_amount = $%d", len(args)))
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	query := fmt.Sprintf(`UPDATE savings_vault SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), savingsColumns)

	vault, err := scanSavingsVault(r.db.Conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update savings vault: %w", err)
	}
	return vault, nil
}

// SetBalance writes the current amount and completion flag in one statement.
func (r *savingsRepository) SetBalance(ctx context.Context, id uuid.UUID, currentAmount float64, completed bool) (*models.SavingsVault, error) {
	query := `
		UPDATE savings_vault
		SET current_amount = $2, is_completed = $3
		WHERE id = $1
		RETURNING ` + savingsColumns

	vault, err := scanSavingsVault(r.db.Conn(ctx).QueryRow(ctx, query, id, currentAmount, completed))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update savings balance: %w", err)
	}
	return vault, nil
}

func (r *savingsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM savings_vault WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete savings vault: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func scanSavingsVault(row pgx.Row) (*models.SavingsVault, error) {
	var v models.SavingsVault
	if err := row.Scan(&v.ID, &v.Name, &v.TargetAmount, &v.CurrentAmount, &v.IsCompleted, &v.CreatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}
