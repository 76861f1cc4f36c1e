package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
)

// TransactionRepository provides data access for personal transactions.
// Reads join the owning category so callers can describe the transaction.
type TransactionRepository interface {
	Create(ctx context.Context, input *models.TransactionInput) (*models.PersonalTransaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.PersonalTransaction, error)
	List(ctx context.Context, filter models.TransactionFilter) ([]*models.PersonalTransaction, error)
	Update(ctx context.Context, id uuid.UUID, update *models.TransactionUpdate) (*models.PersonalTransaction, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListIDsByCategory(ctx context.Context, categoryID uuid.UUID) ([]uuid.UUID, error)
	UnlinkCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
	ListInRange(ctx context.Context, startDate, endDate string) ([]*models.PersonalTransaction, error)
}

type transactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db *database.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

var _ TransactionRepository = (*transactionRepository)(nil)

const transactionSelect = `
	SELECT t.id, t.category_id, t.amount::float8, t.date::text, t.note, t.type, t.created_at,
	       c.id, c.name, c.type, c.icon, c.color, c.created_at
	FROM personal_transactions t
	LEFT JOIN finance_categories c ON c.id = t.category_id`

func (r *transactionRepository) Create(ctx context.Context, input *models.TransactionInput) (*models.PersonalTransaction, error) {
	var id uuid.UUID
	err := r.db.Conn(ctx).QueryRow(ctx, `
		INSERT INTO personal_transactions (category_id, amount, date, note, type)
		VALUES ($1, $2, $3::date, $4, $5)
		RETURNING id`,
		input.CategoryID, input.Amount, input.Date, input.Note, string(input.Type),
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	return r.GetByID(ctx, id)
}

func (r *transactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.PersonalTransaction, error) {
	tx, err := scanTransaction(r.db.Conn(ctx).QueryRow(ctx, transactionSelect+` WHERE t.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return tx, nil
}

func (r *transactionRepository) List(ctx context.Context, filter models.TransactionFilter) ([]*models.PersonalTransaction, error) {
	var conds []string
	var args []any

	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		conds = append(conds, fmt.Sprintf("t.type = $%d", len(args)))
	}
	if filter.StartDate != "" {
		args = append(args, filter.StartDate)
		conds = append(conds, fmt.Sprintf("t.date >= $%d::date", len(args)))
	}
	if filter.EndDate != "" {
		args = append(args, filter.EndDate)
		conds = append(conds, fmt.Sprintf("t.date <= $%d::date", len(args)))
	}

	query := transactionSelect
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY t.date DESC, t.created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	return collectTransactions(rows)
}

func (r *transactionRepository) ListInRange(ctx context.Context, startDate, endDate string) ([]*models.PersonalTransaction, error) {
	return r.List(ctx, models.TransactionFilter{StartDate: startDate, EndDate: endDate})
}

func (r *transactionRepository) Update(ctx context.Context, id uuid.UUID, update *models.TransactionUpdate) (*models.PersonalTransaction, error) {
	var sets []string
	args := []any{id}

	if update.CategoryID != nil {
		args = append(args, *update.CategoryID)
		sets = append(sets, fmt.Sprintf("category_id = $%d", len(args)))
	}
	if update.Amount != nil {
		args = append(args, *update.Amount)
		sets = append(sets, fmt.Sprintf("amount = $%d", len(args)))
	}
	if update.Date != nil {
		args = append(args, *update.Date)
		sets = append(sets, fmt.Sprintf("date = $%d::date", len(args)))
	}
	if update.Note != nil {
		args = append(args, *update.Note)
		sets = append(sets, fmt.Sprintf("note = $%d", len(args)))
	}
	if update.Type != nil {
		args = append(args, string(*update.Type))
		sets = append(sets, fmt.Sprintf("type = $%d", len(args)))
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	query := fmt.Sprintf(`UPDATE personal_transactions SET %s WHERE id = $1`, strings.Join(sets, ", "))
	tag, err := r.db.Conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, apperrors.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *transactionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM personal_transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *transactionRepository) ListIDsByCategory(ctx context.Context, categoryID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.db.Conn(ctx).Query(ctx,
		`SELECT id FROM personal_transactions WHERE category_id = $1 ORDER BY created_at`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions by category: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to collect transaction ids: %w", err)
	}
	return ids, nil
}

func (r *transactionRepository) UnlinkCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	tag, err := r.db.Conn(ctx).Exec(ctx,
		`UPDATE personal_transactions SET category_id = NULL WHERE category_id = $1`, categoryID)
	if err != nil {
		return 0, fmt.Errorf("failed to unlink category: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectTransactions(rows pgx.Rows) ([]*models.PersonalTransaction, error) {
	defer rows.Close()

	txs := make([]*models.PersonalTransaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

func scanTransaction(row pgx.Row) (*models.PersonalTransaction, error) {
	var t models.PersonalTransaction
	var txType string
	var catID *uuid.UUID
	var catName, catType, catIcon, catColor *string
	var catCreated *time.Time

	err := row.Scan(
		&t.ID, &t.CategoryID, &t.Amount, &t.Date, &t.Note, &txType, &t.CreatedAt,
		&catID, &catName, &catType, &catIcon, &catColor, &catCreated,
	)
	if err != nil {
		return nil, err
	}
	t.Type = models.TransactionType(txType)

	if catID != nil {
		t.Category = &models.FinanceCategory{
			ID:    *catID,
			Name:  deref(catName),
			Type:  models.CategoryType(deref(catType)),
			Icon:  deref(catIcon),
			Color: deref(catColor),
		}
		if catCreated != nil {
			t.Category.CreatedAt = *catCreated
		}
	}
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
