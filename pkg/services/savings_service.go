package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/money"
	"github.com/hodlisma/hodlisma-engine/pkg/repositories"
)

// SavingsService manages savings goals. A vault is completed once its current
// amount reaches its target.
type SavingsService interface {
	ListSavingsVaults(ctx context.Context, includeCompleted bool) ([]*models.SavingsVault, error)
	GetSavingsVault(ctx context.Context, id uuid.UUID) (*models.SavingsVault, error)
	AddSavingsVault(ctx context.Context, input *models.SavingsVaultInput) (*models.SavingsVault, error)
	UpdateSavingsVault(ctx context.Context, id uuid.UUID, update *models.SavingsVaultUpdate) (*models.SavingsVault, error)
	DeleteSavingsVault(ctx context.Context, id uuid.UUID) error

	// AddToSavingsVault deposits amount. A negative amount withdraws.
	AddToSavingsVault(ctx context.Context, id uuid.UUID, amount float64) (*models.SavingsVault, error)
}

type savingsService struct {
	repo   repositories.SavingsRepository
	audit  AuditService
	tx     database.TxRunner
	money  money.Formatter
	logger *zap.Logger
}

// NewSavingsService creates a new SavingsService.
func NewSavingsService(
	repo repositories.SavingsRepository,
	audit AuditService,
	tx database.TxRunner,
	formatter money.Formatter,
	logger *zap.Logger,
) SavingsService {
	if tx == nil {
		tx = database.NoTx{}
	}
	return &savingsService{
		repo:   repo,
		audit:  audit,
		tx:     tx,
		money:  formatter,
		logger: logger.Named("savings-service"),
	}
}

var _ SavingsService = (*savingsService)(nil)

func isCompleted(current, target float64) bool {
	return target > 0 && current >= target
}

func (s *savingsService) ListSavingsVaults(ctx context.Context, includeCompleted bool) ([]*models.SavingsVault, error) {
	return s.repo.List(ctx, includeCompleted)
}

func (s *savingsService) GetSavingsVault(ctx context.Context, id uuid.UUID) (*models.SavingsVault, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *savingsService) AddSavingsVault(ctx context.Context, input *models.SavingsVaultInput) (*models.SavingsVault, error) {
	in := *input
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: vault name is required", apperrors.ErrInvalidInput)
	}
	if in.TargetAmount <= 0 {
		return nil, fmt.Errorf("%w: target amount must be positive", apperrors.ErrInvalidInput)
	}
	if in.CurrentAmount < 0 {
		return nil, fmt.Errorf("%w: current amount cannot be negative", apperrors.ErrInvalidInput)
	}
	in.TargetAmount = roundAmount(in.TargetAmount)
	in.CurrentAmount = roundAmount(in.CurrentAmount)

	var created *models.SavingsVault
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.repo.Create(ctx, &in)
		if err != nil {
			return err
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleFinance,
			Action:      models.AuditActionAddSavings,
			EntityType:  models.AuditEntitySavings,
			EntityID:    &created.ID,
			NewData:     created.Snapshot(),
			Description: models.StringPtr(fmt.Sprintf("Created savings goal %s (%s)", created.Name, s.money.Format(created.TargetAmount))),
		})
	})
	if err != nil {
		s.logger.Error("Failed to add savings vault", zap.String("name", in.Name), zap.Error(err))
		return nil, fmt.Errorf("add savings vault: %w", err)
	}
	return created, nil
}

func (s *savingsService) UpdateSavingsVault(ctx context.Context, id uuid.UUID, update *models.SavingsVaultUpdate) (*models.SavingsVault, error) {
	upd := *update
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, fmt.Errorf("%w: vault name cannot be empty", apperrors.ErrInvalidInput)
	}
	if upd.TargetAmount != nil {
		if *upd.TargetAmount <= 0 {
			return nil, fmt.Errorf("%w: target amount must be positive", apperrors.ErrInvalidInput)
		}
		v := roundAmount(*upd.TargetAmount)
		upd.TargetAmount = &v
	}
	if upd.CurrentAmount != nil {
		if *upd.CurrentAmount < 0 {
			return nil, fmt.Errorf("%w: current amount cannot be negative", apperrors.ErrInvalidInput)
		}
		v := roundAmount(*upd.CurrentAmount)
		upd.CurrentAmount = &v
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update savings vault: %w", err)
	}

	var updated *models.SavingsVault
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.Update(ctx, id, &upd)
		if err != nil {
			return err
		}
		if done := isCompleted(updated.CurrentAmount, updated.TargetAmount); done != updated.IsCompleted {
			updated, err = s.repo.SetBalance(ctx, id, updated.CurrentAmount, done)
			if err != nil {
				return err
			}
		}
		oldData, newData := diffSnapshots(existing.Snapshot(), updated.Snapshot())
		if len(newData) == 0 {
			return nil
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleFinance,
			Action:      models.AuditActionUpdateSavings,
			EntityType:  models.AuditEntitySavings,
			EntityID:    &id,
			OldData:     oldData,
			NewData:     newData,
			Description: models.StringPtr("Updated savings goal " + updated.Name),
		})
	})
	if err != nil {
		s.logger.Error("Failed to update savings vault", zap.String("vault_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("update savings vault: %w", err)
	}
	return updated, nil
}

func (s *savingsService) DeleteSavingsVault(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete savings vault: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleFinance,
			Action:      models.AuditActionDeleteSavings,
			EntityType:  models.AuditEntitySavings,
			EntityID:    &id,
			OldData:     existing.Snapshot(),
			Description: models.StringPtr("Deleted savings goal " + existing.Name),
		})
	})
	if err != nil {
		s.logger.Error("Failed to delete savings vault", zap.String("vault_id", id.String()), zap.Error(err))
		return fmt.Errorf("delete savings vault: %w", err)
	}
	return nil
}

func (s *savingsService) AddToSavingsVault(ctx context.Context, id uuid.UUID, amount float64) (*models.SavingsVault, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount cannot be zero", apperrors.ErrInvalidInput)
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("add to savings vault: %w", err)
	}

	balance := decimal.NewFromFloat(existing.CurrentAmount).Add(decimal.NewFromFloat(amount)).Round(2)
	if balance.IsNegative() {
		return nil, fmt.Errorf("%w: withdrawal exceeds vault balance", apperrors.ErrInvalidInput)
	}
	current := balance.InexactFloat64()
	done := isCompleted(current, existing.TargetAmount)

	var updated *models.SavingsVault
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.SetBalance(ctx, id, current, done)
		if err != nil {
			return err
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleFinance,
			Action:      models.AuditActionDepositSavings,
			EntityType:  models.AuditEntitySavings,
			EntityID:    &id,
			OldData:     models.Snapshot{"current_amount": existing.CurrentAmount, "is_completed": existing.IsCompleted},
			NewData:     models.Snapshot{"current_amount": updated.CurrentAmount, "is_completed": updated.IsCompleted},
			Description: models.StringPtr(fmt.Sprintf("Deposited %s into %s", s.money.Format(amount), existing.Name)),
		})
	})
	if err != nil {
		s.logger.Error("Failed to deposit into savings vault", zap.String("vault_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("add to savings vault: %w", err)
	}
	return updated, nil
}
