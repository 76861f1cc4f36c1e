package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/money"
	"github.com/hodlisma/hodlisma-engine/pkg/repositories"
)

// FinanceService manages personal income, expense and investment transactions.
// Mutations are audited under the FINANCE module.
type FinanceService interface {
	AddTransaction(ctx context.Context, input *models.TransactionInput) (*models.PersonalTransaction, error)
	UpdateTransaction(ctx context.Context, id uuid.UUID, update *models.TransactionUpdate) (*models.PersonalTransaction, error)
	DeleteTransaction(ctx context.Context, id uuid.UUID) error
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.PersonalTransaction, error)

	// MonthlySummary totals one calendar month. Net balance is income minus
	// expenses minus investments.
	MonthlySummary(ctx context.Context, year, month int) (*models.MonthlySummary, error)
}

type financeService struct {
	repo   repositories.TransactionRepository
	audit  AuditService
	tx     database.TxRunner
	money  money.Formatter
	logger *zap.Logger
	now    func() time.Time
}

// NewFinanceService creates a new FinanceService.
func NewFinanceService(
	repo repositories.TransactionRepository,
	audit AuditService,
	tx database.TxRunner,
	formatter money.Formatter,
	logger *zap.Logger,
) FinanceService {
	if tx == nil {
		tx = database.NoTx{}
	}
	return &financeService{
		repo:   repo,
		audit:  audit,
		tx:     tx,
		money:  formatter,
		logger: logger.Named("finance-service"),
		now:    time.Now,
	}
}

var _ FinanceService = (*financeService)(nil)

func validateDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", apperrors.ErrInvalidInput)
	}
	return nil
}

func roundAmount(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

func (s *financeService) describe(tx *models.PersonalTransaction) string {
	desc := fmt.Sprintf("%s %s", tx.Type, s.money.Format(tx.Amount))
	if tx.Category != nil {
		desc += " (" + tx.Category.Name + ")"
	}
	return desc
}

func (s *financeService) AddTransaction(ctx context.Context, input *models.TransactionInput) (*models.PersonalTransaction, error) {
	if input.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidInput)
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrInvalidInput, input.Type)
	}
	in := *input
	in.Amount = roundAmount(in.Amount)
	if in.Date == "" {
		in.Date = s.now().Format(models.DateLayout)
	}
	if err := validateDate(in.Date); err != nil {
		return nil, err
	}

	var created *models.PersonalTransaction
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.repo.Create(ctx, &in)
		if err != nil {
			return err
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleFinance,
			Action:      models.AuditActionAddTransaction,
			EntityType:  models.AuditEntityTransaction,
			EntityID:    &created.ID,
			NewData:     created.Snapshot(),
			Description: models.StringPtr("Added " + s.describe(created)),
		})
	})
	if err != nil {
		s.logger.Error("Failed to add transaction", zap.Error(err))
		return nil, fmt.Errorf("add transaction: %w", err)
	}

	return created, nil
}

func (s *financeService) UpdateTransaction(ctx context.Context, id uuid.UUID, update *models.TransactionUpdate) (*models.PersonalTransaction, error) {
	upd := *update
	if upd.Amount != nil {
		if *upd.Amount <= 0 {
			return nil, fmt.Errorf("%w: amount must be positive", apperrors.ErrInvalidInput)
		}
		a := roundAmount(*upd.Amount)
		upd.Amount = &a
	}
	if upd.Type != nil && !upd.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrInvalidInput, *upd.Type)
	}
	if upd.Date != nil {
		if err := validateDate(*upd.Date); err != nil {
			return nil, err
		}
	}

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	var updated *models.PersonalTransaction
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updated, err = s.repo.Update(ctx, id, &upd)
		if err != nil {
			return err
		}
		oldData, newData := diffSnapshots(existing.Snapshot(), updated.Snapshot())
		if len(newData) == 0 {
			return nil
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleFinance,
			Action:      models.AuditActionUpdateTransaction,
			EntityType:  models.AuditEntityTransaction,
			EntityID:    &id,
			OldData:     oldData,
			NewData:     newData,
			Description: models.StringPtr("Updated " + s.describe(updated)),
		})
	})
	if err != nil {
		s.logger.Error("Failed to update transaction", zap.String("transaction_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	return updated, nil
}

func (s *financeService) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Delete(ctx, id); err != nil {
			return err
		}
		return recordMutation(ctx, s.audit, &models.AuditLogInput{
			Module:      models.AuditModuleFinance,
			Action:      models.AuditActionDeleteTransaction,
			EntityType:  models.AuditEntityTransaction,
			EntityID:    &id,
			OldData:     existing.Snapshot(),
			Description: models.StringPtr("Deleted " + s.describe(existing)),
		})
	})
	if err != nil {
		s.logger.Error("Failed to delete transaction", zap.String("transaction_id", id.String()), zap.Error(err))
		return fmt.Errorf("delete transaction: %w", err)
	}
	return nil
}

func (s *financeService) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.PersonalTransaction, error) {
	if filter.Type != nil && !filter.Type.IsValid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", apperrors.ErrInvalidInput, *filter.Type)
	}
	for _, d := range []string{filter.StartDate, filter.EndDate} {
		if d == "" {
			continue
		}
		if err := validateDate(d); err != nil {
			return nil, err
		}
	}
	return s.repo.List(ctx, filter)
}

func (s *financeService) MonthlySummary(ctx context.Context, year, month int) (*models.MonthlySummary, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month must be between 1 and 12", apperrors.ErrInvalidInput)
	}

	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)

	txs, err := s.repo.ListInRange(ctx, start.Format(models.DateLayout), end.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("monthly summary: %w", err)
	}

	income, expense, investment := decimal.Zero, decimal.Zero, decimal.Zero
	for _, tx := range txs {
		amount := decimal.NewFromFloat(tx.Amount)
		switch tx.Type {
		case models.TransactionIncome:
			income = income.Add(amount)
		case models.TransactionExpense:
			expense = expense.Add(amount)
		case models.TransactionInvestment:
			investment = investment.Add(amount)
		}
	}

	return &models.MonthlySummary{
		TotalIncome:      income.InexactFloat64(),
		TotalExpense:     expense.InexactFloat64(),
		TotalInvestment:  investment.InexactFloat64(),
		NetBalance:       income.Sub(expense).Sub(investment).InexactFloat64(),
		TransactionCount: len(txs),
	}, nil
}
