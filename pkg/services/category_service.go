package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/repositories"
)

// CategoryService manages finance categories.
type CategoryService interface {
	ListCategories(ctx context.Context, categoryType *models.CategoryType) ([]*models.FinanceCategory, error)
	GetCategory(ctx context.Context, id uuid.UUID) (*models.FinanceCategory, error)
	AddCategory(ctx context.Context, input *models.CategoryInput) (*models.FinanceCategory, error)
	UpdateCategory(ctx context.Context, id uuid.UUID, update *models.CategoryUpdate) (*models.FinanceCategory, error)

	// FindCategoryByName does a case-insensitive substring match.
	FindCategoryByName(ctx context.Context, name string, categoryType *models.CategoryType) (*models.FinanceCategory, error)
	CategoryTransactionCount(ctx context.Context, id uuid.UUID) (int, error)

	// DeleteCategory refuses to delete a category that transactions still
	// reference unless force is set. A forced delete unlinks those transactions
	// first, auditing each one.
	DeleteCategory(ctx context.Context, id uuid.UUID, force bool) (*models.DeleteCategoryResult, error)
}

type categoryService struct {
	repo   repositories.CategoryRepository
	txRepo repositories.TransactionRepository
	audit  AuditService
	tx     database.TxRunner
	logger *zap.Logger
}

// NewCategoryService creates a new CategoryService.
func NewCategoryService(
	repo repositories.CategoryRepository,
	txRepo repositories.TransactionRepository,
	audit AuditService,
	tx database.TxRunner,
	logger *zap.Logger,
) CategoryService {
	if tx == nil {
		tx = database.NoTx{}
	}
	return &categoryService{
		repo:   repo,
		txRepo: txRepo,
		audit:  audit,
		tx:     tx,
		logger: logger.Named("category-service"),
	}
}

var _ CategoryService = (*categoryService)(nil)

func (s *categoryService) ListCategories(ctx context.Context, categoryType *models.CategoryType) ([]*models.FinanceCategory, error) {
	if categoryType != nil && !categoryType.IsValid() {
		return nil, fmt.Errorf("%w: unknown category type %q", apperrors.ErrInvalidInput, *categoryType)
	}
	return s.repo.List(ctx, categoryType)
}

func (s *categoryService) GetCategory(ctx context.Context, id uuid.UUID) (*models.FinanceCategory, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *categoryService) AddCategory(ctx context.Context, input *models.CategoryInput) (*models.FinanceCategory, error) {
	in := *input
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: category name is required", apperrors.ErrInvalidInput)
	}
	if !in.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown category type %q", apperrors.ErrInvalidInput, in.Type)
	}
	if in.Icon == "" {
		in.Icon = models.DefaultCategoryIcon
	}
	if in.Color == "" {
		in.Color = models.DefaultCategoryColor
	}

	var created *models.FinanceCategory
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.repo.Create(ctx, &in)
		if err != nil {
			return err
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleFinance,
			Action:      models.AuditActionAddCategory,
			EntityType:  models.AuditEntityCategory,
			EntityID:    &created.ID,
			NewData:     created.Snapshot(),
			Description: models.StringPtr(fmt.Sprintf("Added %s category %s", created.Type, created.Name)),
		})
	})
	if err != nil {
		s.logger.Error("Failed to add category", zap.String("name", in.Name), zap.Error(err))
		return nil, fmt.Errorf("add category: %w", err)
	}
	return created, nil
}

func (s *categoryService) UpdateCategory(ctx context.Context, id uuid.UUID, update *models.CategoryUpdate) (*models.FinanceCategory, error) {
	if update.Type != nil && !update.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown category type %q", apperrors.ErrInvalidInput, *update.Type)
	}
	if update.Name != nil && strings.TrimSpace(*update.Name) == "" {
		return nil, fmt.Errorf("%w: category name cannot be empty", apperrors.ErrInvalidInput)
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	var updated *models.FinanceCategory
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.Update(ctx, id, update)
		if err != nil {
			return err
		}
		oldData, newData := diffSnapshots(existing.Snapshot(), updated.Snapshot())
		if len(newData) == 0 {
			return nil
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleFinance,
			Action:      models.AuditActionUpdateCategory,
			EntityType:  models.AuditEntityCategory,
			EntityID:    &id,
			OldData:     oldData,
			NewData:     newData,
			Description: models.StringPtr("Updated category " + updated.Name),
		})
	})
	if err != nil {
		s.logger.Error("Failed to update category", zap.String("category_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("update category: %w", err)
	}
	return updated, nil
}

func (s *categoryService) FindCategoryByName(ctx context.Context, name string, categoryType *models.CategoryType) (*models.FinanceCategory, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperrors.ErrInvalidInput)
	}
	return s.repo.FindByName(ctx, name, categoryType)
}

func (s *categoryService) CategoryTransactionCount(ctx context.Context, id uuid.UUID) (int, error) {
	return s.repo.CountTransactions(ctx, id)
}

func (s *categoryService) DeleteCategory(ctx context.Context, id uuid.UUID, force bool) (*models.DeleteCategoryResult, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete category: %w", err)
	}

	linked, err := s.repo.CountTransactions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("delete category: %w", err)
	}

	if linked > 0 && !force {
		return &models.DeleteCategoryResult{
			LinkedCount: linked,
			Message:     fmt.Sprintf("Category %s has %d linked transactions", existing.Name, linked),
		}, nil
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if linked > 0 {
			if err := s.unlinkTransactions(ctx, existing); err != nil {
				return err
			}
		}
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleFinance,
			Action:      models.AuditActionDeleteCategory,
			EntityType:  models.AuditEntityCategory,
			EntityID:    &id,
			OldData:     existing.Snapshot(),
			Description: models.StringPtr("Deleted category " + existing.Name),
		})
	})
	if err != nil {
		s.logger.Error("Failed to delete category", zap.String("category_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("delete category: %w", err)
	}

	return &models.DeleteCategoryResult{
		Success: true,
		Message: "Category " + existing.Name + " deleted",
	}, nil
}

// unlinkTransactions clears category_id on every transaction of cat and
// records one UNLINK_CATEGORY entry per transaction.
func (s *categoryService) unlinkTransactions(ctx context.Context, cat *models.FinanceCategory) error {
	ids, err := s.txRepo.ListIDsByCategory(ctx, cat.ID)
	if err != nil {
		return err
	}
	if _, err := s.txRepo.UnlinkCategory(ctx, cat.ID); err != nil {
		return err
	}

	for _, txID := range ids {
		txID := txID
		err := recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleFinance,
			Action:      models.AuditActionUnlinkCategory,
			EntityType:  models.AuditEntityTransaction,
			EntityID:    &txID,
			OldData:     models.Snapshot{"category_id": cat.ID.String()},
			NewData:     models.Snapshot{"category_id": nil},
			Description: models.StringPtr("Unlinked from category " + cat.Name),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
