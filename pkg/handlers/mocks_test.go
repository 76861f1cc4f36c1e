package handlers

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hodlisma/hodlisma-engine/pkg/llm"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/services"
)

// mockCryptoService implements services.CryptoService with overridable funcs.
type mockCryptoService struct {
	addFn    func(ctx context.Context, input *models.AssetInput) (*models.Asset, error)
	buyFn    func(ctx context.Context, symbol string, quantity, price float64) (*models.Asset, error)
	sellFn   func(ctx context.Context, symbol string, quantity float64) (*models.SellResult, error)
	updateFn func(ctx context.Context, symbol string, quantity float64, avgPrice *float64) (*models.Asset, error)
	removeFn func(ctx context.Context, symbol string) error
	listFn   func(ctx context.Context) ([]*models.Asset, error)
	getFn    func(ctx context.Context, symbol string) (*models.Asset, error)
}

var _ services.CryptoService = (*mockCryptoService)(nil)

func (m *mockCryptoService) AddAsset(ctx context.Context, input *models.AssetInput) (*models.Asset, error) {
	return m.addFn(ctx, input)
}

func (m *mockCryptoService) BuyCrypto(ctx context.Context, symbol string, quantity, price float64) (*models.Asset, error) {
	return m.buyFn(ctx, symbol, quantity, price)
}

func (m *mockCryptoService) SellCrypto(ctx context.Context, symbol string, quantity float64) (*models.SellResult, error) {
	return m.sellFn(ctx, symbol, quantity)
}

func (m *mockCryptoService) UpdateQuantity(ctx context.Context, symbol string, quantity float64, avgPrice *float64) (*models.Asset, error) {
	return m.updateFn(ctx, symbol, quantity, avgPrice)
}

func (m *mockCryptoService) RemoveAsset(ctx context.Context, symbol string) error {
	return m.removeFn(ctx, symbol)
}

func (m *mockCryptoService) ListAssets(ctx context.Context) ([]*models.Asset, error) {
	return m.listFn(ctx)
}

func (m *mockCryptoService) GetAsset(ctx context.Context, symbol string) (*models.Asset, error) {
	return m.getFn(ctx, symbol)
}

// mockFinanceService implements services.FinanceService.
type mockFinanceService struct {
	addFn     func(ctx context.Context, input *models.TransactionInput) (*models.PersonalTransaction, error)
	updateFn  func(ctx context.Context, id uuid.UUID, update *models.TransactionUpdate) (*models.PersonalTransaction, error)
	deleteFn  func(ctx context.Context, id uuid.UUID) error
	listFn    func(ctx context.Context, filter models.TransactionFilter) ([]*models.PersonalTransaction, error)
	summaryFn func(ctx context.Context, year, month int) (*models.MonthlySummary, error)
}

var _ services.FinanceService = (*mockFinanceService)(nil)

func (m *mockFinanceService) AddTransaction(ctx context.Context, input *models.TransactionInput) (*models.PersonalTransaction, error) {
	return m.addFn(ctx, input)
}

func (m *mockFinanceService) UpdateTransaction(ctx context.Context, id uuid.UUID, update *models.TransactionUpdate) (*models.PersonalTransaction, error) {
	return m.updateFn(ctx, id, update)
}

func (m *mockFinanceService) DeleteTransaction(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func (m *mockFinanceService) ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]*models.PersonalTransaction, error) {
	return m.listFn(ctx, filter)
}

func (m *mockFinanceService) MonthlySummary(ctx context.Context, year, month int) (*models.MonthlySummary, error) {
	return m.summaryFn(ctx, year, month)
}

// mockCategoryService implements services.CategoryService.
type mockCategoryService struct {
	listFn   func(ctx context.Context, categoryType *models.CategoryType) ([]*models.FinanceCategory, error)
	addFn    func(ctx context.Context, input *models.CategoryInput) (*models.FinanceCategory, error)
	updateFn func(ctx context.Context, id uuid.UUID, update *models.CategoryUpdate) (*models.FinanceCategory, error)
	deleteFn func(ctx context.Context, id uuid.UUID, force bool) (*models.DeleteCategoryResult, error)
}

var _ services.CategoryService = (*mockCategoryService)(nil)

func (m *mockCategoryService) ListCategories(ctx context.Context, categoryType *models.CategoryType) ([]*models.FinanceCategory, error) {
	return m.listFn(ctx, categoryType)
}

func (m *mockCategoryService) GetCategory(context.Context, uuid.UUID) (*models.FinanceCategory, error) {
	return nil, nil
}

func (m *mockCategoryService) AddCategory(ctx context.Context, input *models.CategoryInput) (*models.FinanceCategory, error) {
	return m.addFn(ctx, input)
}

func (m *mockCategoryService) UpdateCategory(ctx context.Context, id uuid.UUID, update *models.CategoryUpdate) (*models.FinanceCategory, error) {
	return m.updateFn(ctx, id, update)
}

func (m *mockCategoryService) FindCategoryByName(context.Context, string, *models.CategoryType) (*models.FinanceCategory, error) {
	return nil, nil
}

func (m *mockCategoryService) CategoryTransactionCount(context.Context, uuid.UUID) (int, error) {
	return 0, nil
}

func (m *mockCategoryService) DeleteCategory(ctx context.Context, id uuid.UUID, force bool) (*models.DeleteCategoryResult, error) {
	return m.deleteFn(ctx, id, force)
}

// mockSavingsService implements services.SavingsService.
type mockSavingsService struct {
	listFn    func(ctx context.Context, includeCompleted bool) ([]*models.SavingsVault, error)
	addFn     func(ctx context.Context, input *models.SavingsVaultInput) (*models.SavingsVault, error)
	updateFn  func(ctx context.Context, id uuid.UUID, update *models.SavingsVaultUpdate) (*models.SavingsVault, error)
	deleteFn  func(ctx context.Context, id uuid.UUID) error
	depositFn func(ctx context.Context, id uuid.UUID, amount float64) (*models.SavingsVault, error)
}

var _ services.SavingsService = (*mockSavingsService)(nil)

func (m *mockSavingsService) ListSavingsVaults(ctx context.Context, includeCompleted bool) ([]*models.SavingsVault, error) {
	return m.listFn(ctx, includeCompleted)
}

func (m *mockSavingsService) GetSavingsVault(context.Context, uuid.UUID) (*models.SavingsVault, error) {
	return nil, nil
}

func (m *mockSavingsService) AddSavingsVault(ctx context.Context, input *models.SavingsVaultInput) (*models.SavingsVault, error) {
	return m.addFn(ctx, input)
}

func (m *mockSavingsService) UpdateSavingsVault(ctx context.Context, id uuid.UUID, update *models.SavingsVaultUpdate) (*models.SavingsVault, error) {
	return m.updateFn(ctx, id, update)
}

func (m *mockSavingsService) DeleteSavingsVault(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func (m *mockSavingsService) AddToSavingsVault(ctx context.Context, id uuid.UUID, amount float64) (*models.SavingsVault, error) {
	return m.depositFn(ctx, id, amount)
}

// mockAuditService implements services.AuditService.
type mockAuditService struct {
	listFn    func(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLogEntry, error)
	historyFn func(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error)
}

var _ services.AuditService = (*mockAuditService)(nil)

func (m *mockAuditService) Record(context.Context, *models.AuditLogInput) (uuid.UUID, bool) {
	return uuid.New(), true
}

func (m *mockAuditService) ListRecent(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLogEntry, error) {
	return m.listFn(ctx, filter)
}

func (m *mockAuditService) History(ctx context.Context, entityType string, entityID uuid.UUID) ([]*models.AuditLogEntry, error) {
	return m.historyFn(ctx, entityType, entityID)
}

func (m *mockAuditService) GetByID(context.Context, uuid.UUID) (*models.AuditLogEntry, error) {
	return nil, nil
}

// mockRollbackService implements services.RollbackService.
type mockRollbackService struct {
	result services.RollbackResult
	gotID  uuid.UUID
}

var _ services.RollbackService = (*mockRollbackService)(nil)

func (m *mockRollbackService) Rollback(_ context.Context, id uuid.UUID) services.RollbackResult {
	m.gotID = id
	return m.result
}

// mockChatService implements llm.ChatService.
type mockChatService struct {
	result   *llm.ChatResult
	err      error
	messages []llm.Message
}

var _ llm.ChatService = (*mockChatService)(nil)

func (m *mockChatService) Chat(_ context.Context, messages []llm.Message) (*llm.ChatResult, error) {
	m.messages = messages
	return m.result, m.err
}

// stubSubscriber implements AuditSubscriber with a caller-controlled channel.
type stubSubscriber struct {
	ch        chan *models.AuditLogEntry
	cancelled atomic.Bool
}

func (s *stubSubscriber) Subscribe() (<-chan *models.AuditLogEntry, func()) {
	return s.ch, func() { s.cancelled.Store(true) }
}
