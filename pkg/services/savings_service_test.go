package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/database"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/money"
)

// mockSavingsRepository is an in-memory SavingsRepository.
type mockSavingsRepository struct {
	vaults map[uuid.UUID]*models.SavingsVault
}

func (m *mockSavingsRepository) Create(ctx context.Context, input *models.SavingsVaultInput) (*models.SavingsVault, error) {
	v := &models.SavingsVault{
		ID:            uuid.New(),
		Name:          input.Name,
		TargetAmount:  input.TargetAmount,
		CurrentAmount: input.CurrentAmount,
		IsCompleted:   isCompleted(input.CurrentAmount, input.TargetAmount),
		CreatedAt:     time.Now(),
	}
	m.vaults[v.ID] = v
	out := *v
	return &out, nil
}

func (m *mockSavingsRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SavingsVault, error) {
	v, ok := m.vaults[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := *v
	return &out, nil
}

func (m *mockSavingsRepository) List(ctx context.Context, includeCompleted bool) ([]*models.SavingsVault, error) {
	var out []*models.SavingsVault
	for _, v := range m.vaults {
		if includeCompleted || !v.IsCompleted {
			c := *v
			out = append(out, &c)
		}
	}
	return out, nil
}

func (m *mockSavingsRepository) Update(ctx context.Context, id uuid.UUID, update *models.SavingsVaultUpdate) (*models.SavingsVault, error) {
	v, ok := m.vaults[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if update.Name != nil {
		v.Name = *update.Name
	}
	if update.TargetAmount != nil {
		v.TargetAmount = *update.TargetAmount
	}
	if update.CurrentAmount != nil {
		v.CurrentAmount = *update.CurrentAmount
	}
	out := *v
	return &out, nil
}

func (m *mockSavingsRepository) SetBalance(ctx context.Context, id uuid.UUID, currentAmount float64, completed bool) (*models.SavingsVault, error) {
	v, ok := m.vaults[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	v.CurrentAmount = currentAmount
	v.IsCompleted = completed
	out := *v
	return &out, nil
}

func (m *mockSavingsRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.vaults[id]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.vaults, id)
	return nil
}

func newTestSavingsService() (SavingsService, *mockSavingsRepository, *mockAuditRepository) {
	repo := &mockSavingsRepository{vaults: make(map[uuid.UUID]*models.SavingsVault)}
	auditRepo := &mockAuditRepository{}
	svc := NewSavingsService(repo, NewAuditService(auditRepo, zap.NewNop()), database.NoTx{},
		money.NewFormatter("USD"), zap.NewNop())
	return svc, repo, auditRepo
}

func TestSavingsService_AddSavingsVault(t *testing.T) {
	svc, _, auditRepo := newTestSavingsService()

	vault, err := svc.AddSavingsVault(context.Background(), &models.SavingsVaultInput{Name: "Trip", TargetAmount: 1500})
	require.NoError(t, err)
	assert.False(t, vault.IsCompleted)

	entry := auditRepo.last()
	assert.Equal(t, models.AuditActionAddSavings, entry.Action)
	assert.Equal(t, models.AuditEntitySavings, entry.EntityType)
	assert.Equal(t, vault.Snapshot(), entry.NewData)
	assert.Equal(t, "Created savings goal Trip ($1,500.00)", *entry.Description)
}

func TestSavingsService_AddSavingsVault_Validation(t *testing.T) {
	svc, _, auditRepo := newTestSavingsService()
	ctx := context.Background()

	_, err := svc.AddSavingsVault(ctx, &models.SavingsVaultInput{Name: "Trip", TargetAmount: 0})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.AddSavingsVault(ctx, &models.SavingsVaultInput{Name: "Trip", TargetAmount: 10, CurrentAmount: -1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	assert.Empty(t, auditRepo.entries)
}

func TestSavingsService_AddToSavingsVault_CompletesGoal(t *testing.T) {
	svc, _, auditRepo := newTestSavingsService()
	ctx := context.Background()

	vault, err := svc.AddSavingsVault(ctx, &models.SavingsVaultInput{Name: "Laptop", TargetAmount: 100, CurrentAmount: 60})
	require.NoError(t, err)

	vault, err = svc.AddToSavingsVault(ctx, vault.ID, 40)
	require.NoError(t, err)
	assert.Equal(t, 100.0, vault.CurrentAmount)
	assert.True(t, vault.IsCompleted)

	entry := auditRepo.last()
	assert.Equal(t, models.AuditActionDepositSavings, entry.Action)
	assert.Equal(t, models.Snapshot{"current_amount": 60.0, "is_completed": false}, entry.OldData)
	assert.Equal(t, models.Snapshot{"current_amount": 100.0, "is_completed": true}, entry.NewData)
}

func TestSavingsService_AddToSavingsVault_Withdrawal(t *testing.T) {
	svc, _, _ := newTestSavingsService()
	ctx := context.Background()

	vault, err := svc.AddSavingsVault(ctx, &models.SavingsVaultInput{Name: "Buffer", TargetAmount: 100, CurrentAmount: 30})
	require.NoError(t, err)

	vault, err = svc.AddToSavingsVault(ctx, vault.ID, -10.5)
	require.NoError(t, err)
	assert.Equal(t, 19.5, vault.CurrentAmount)

	_, err = svc.AddToSavingsVault(ctx, vault.ID, -20)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.AddToSavingsVault(ctx, vault.ID, 0)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestSavingsService_UpdateSavingsVault_RecomputesCompletion(t *testing.T) {
	svc, repo, auditRepo := newTestSavingsService()
	ctx := context.Background()

	vault, err := svc.AddSavingsVault(ctx, &models.SavingsVaultInput{Name: "Car", TargetAmount: 100, CurrentAmount: 80})
	require.NoError(t, err)

	target := 80.0
	updated, err := svc.UpdateSavingsVault(ctx, vault.ID, &models.SavingsVaultUpdate{TargetAmount: &target})
	require.NoError(t, err)
	assert.True(t, updated.IsCompleted)
	assert.True(t, repo.vaults[vault.ID].IsCompleted)

	entry := auditRepo.last()
	assert.Equal(t, models.AuditActionUpdateSavings, entry.Action)
	assert.Equal(t, models.Snapshot{"target_amount": 100.0, "is_completed": false}, entry.OldData)
	assert.Equal(t, models.Snapshot{"target_amount": 80.0, "is_completed": true}, entry.NewData)
}

func TestSavingsService_DeleteSavingsVault(t *testing.T) {
	svc, repo, auditRepo := newTestSavingsService()
	ctx := context.Background()

	vault, err := svc.AddSavingsVault(ctx, &models.SavingsVaultInput{Name: "Trip", TargetAmount: 10})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteSavingsVault(ctx, vault.ID))
	assert.Empty(t, repo.vaults)

	entry := auditRepo.last()
	assert.Equal(t, models.AuditActionDeleteSavings, entry.Action)
	assert.Equal(t, vault.Snapshot(), entry.OldData)

	assert.ErrorIs(t, svc.DeleteSavingsVault(ctx, vault.ID), apperrors.ErrNotFound)
}

func TestSavingsService_DepositThenRollback(t *testing.T) {
	svc, _, auditRepo := newTestSavingsService()
	ctx := context.Background()

	vault, err := svc.AddSavingsVault(ctx, &models.SavingsVaultInput{Name: "Trip", TargetAmount: 100, CurrentAmount: 50})
	require.NoError(t, err)
	_, err = svc.AddToSavingsVault(ctx, vault.ID, 50)
	require.NoError(t, err)
	deposit := auditRepo.last()

	store := newMockCollectionStore()
	store.put(models.CollectionSavings, vault.ID, models.Snapshot{
		"name": "Trip", "target_amount": 100.0, "current_amount": 100.0, "is_completed": true,
	})
	rollback := NewRollbackService(NewAuditService(auditRepo, zap.NewNop()), store, nil,
		RollbackConfig{RequireUnchanged: true}, zap.NewNop())

	result := rollback.Rollback(ctx, deposit.ID)
	require.True(t, result.Success, result.Message)

	row := store.get(models.CollectionSavings, vault.ID)
	assert.Equal(t, 50.0, row["current_amount"])
	assert.Equal(t, false, row["is_completed"])
}
