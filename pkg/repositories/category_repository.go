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

// CategoryRepository provides data access for finance categories.
type CategoryRepository interface {
	Create(ctx context.Context, input *models.CategoryInput) (*models.FinanceCategory, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.FinanceCategory, error)
	List(ctx context.Context, categoryType *models.CategoryType) ([]*models.FinanceCategory, error)
	FindByName(ctx context.Context, name string, categoryType *models.CategoryType) (*models.FinanceCategory, error)
	Update(ctx context.Context, id uuid.UUID, update *models.CategoryUpdate) (*models.FinanceCategory, error)
	Delete(ctx context.Context, id uuid.UUID) error
	CountTransactions(ctx context.Context, id uuid.UUID) (int, error)
}

type categoryRepository struct {
	db *database.DB
}

// NewCategoryRepository creates a new CategoryRepository.
func NewCategoryRepository(db *database.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

var _ CategoryRepository = (*categoryRepository)(nil)

const categoryColumns = `id, name, type, icon, color, created_at`

func (r *categoryRepository) Create(ctx context.Context, input *models.CategoryInput) (*models.FinanceCategory, error) {
	query := `
		INSERT INTO finance_categories (name, type, icon, color)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + categoryColumns

	cat, err := scanCategory(r.db.Conn(ctx).QueryRow(ctx, query,
		input.Name, string(input.Type), input.Icon, input.Color))
	if err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}
	return cat, nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FinanceCategory, error) {
	query := `SELECT ` + categoryColumns + ` FROM finance_categories WHERE id = $1`

	cat, err := scanCategory(r.db.Conn(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return cat, nil
}

func (r *categoryRepository) List(ctx context.Context, categoryType *models.CategoryType) ([]*models.FinanceCategory, error) {
	var typ *string
	if categoryType != nil {
		t := string(*categoryType)
		typ = &t
	}

	query := `
		SELECT ` + categoryColumns + `
		FROM finance_categories
		WHERE ($1::text IS NULL OR type = $1)
		ORDER BY name`

	rows, err := r.db.Conn(ctx).Query(ctx, query, typ)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	cats := make([]*models.FinanceCategory, 0)
	for rows.Next() {
		cat, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return cats, nil
}

// FindByName returns the closest category whose name contains name,
// case-insensitively, optionally restricted to one type.
func (r *categoryRepository) FindByName(ctx context.Context, name string, categoryType *models.CategoryType) (*models.FinanceCategory, error) {
	var typ *string
	if categoryType != nil {
		t := string(*categoryType)
		typ = &t
	}

	query := `
		SELECT ` + categoryColumns + `
		FROM finance_categories
		WHERE name ILIKE '%' || $1 || '%'
		  AND ($2::text IS NULL OR type = $2)
		ORDER BY length(name), name
		LIMIT 1`

	cat, err := scanCategory(r.db.Conn(ctx).QueryRow(ctx, query, escapeLike(name), typ))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return cat, nil
}

func (r *categoryRepository) Update(ctx context.Context, id uuid.UUID, update *models.CategoryUpdate) (*models.FinanceCategory, error) {
	var sets []string
	args := []any{id}

	if update.Name != nil {
		args = append(args, *update.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if update.Type != nil {
		args = append(args, string(*update.Type))
		sets = append(sets, fmt.Sprintf("type = $%d", len(args)))
	}
	if update.Icon != nil {
		args = append(args, *update.Icon)
		sets = append(sets, fmt.Sprintf("icon = $%d", len(args)))
	}
	if update.Color != nil {
		args = append(args, *update.Color)
		sets = append(sets, fmt.Sprintf("color = $%d", len(args)))
	}

	if len(sets) == 0 {
		return r.GetByID(ctx, id)
	}

	query := fmt.Sprintf(`UPDATE finance_categories SET %s WHERE id = $1 RETURNING %s`,
		strings.Join(sets, ", "), categoryColumns)

	cat, err := scanCategory(r.db.Conn(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update category: %w", err)
	}
	return cat, nil
}

func (r *categoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Conn(ctx).Exec(ctx, `DELETE FROM finance_categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *categoryRepository) CountTransactions(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.db.Conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM personal_transactions WHERE category_id = $1`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count category transactions: %w", err)
	}
	return count, nil
}

func scanCategory(row pgx.Row) (*models.FinanceCategory, error) {
	var c models.FinanceCategory
	var typ string
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.Icon, &c.Color, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.Type = models.CategoryType(typ)
	return &c, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
