package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/jsonutil"
	"github.com/hodlisma/hodlisma-engine/pkg/models"
	"github.com/hodlisma/hodlisma-engine/pkg/services"
)

const defaultToolListLimit = 20

// FinanceToolExecutor implements ToolExecutor over the portfolio services.
// Every mutation it performs is attributed to the AI agent in the audit log.
type FinanceToolExecutor struct {
	crypto     services.CryptoService
	finance    services.FinanceService
	categories services.CategoryService
	savings    services.SavingsService
	audit      services.AuditService
	now        func() time.Time
	logger     *zap.Logger
}

// FinanceToolExecutorConfig holds dependencies for creating a FinanceToolExecutor.
type FinanceToolExecutorConfig struct {
	Crypto     services.CryptoService
	Finance    services.FinanceService
	Categories services.CategoryService
	Savings    services.SavingsService
	Audit      services.AuditService
	Logger     *zap.Logger
}

// NewFinanceToolExecutor creates a new tool executor for portfolio operations.
func NewFinanceToolExecutor(cfg *FinanceToolExecutorConfig) *FinanceToolExecutor {
	return &FinanceToolExecutor{
		crypto:     cfg.Crypto,
		finance:    cfg.Finance,
		categories: cfg.Categories,
		savings:    cfg.Savings,
		audit:      cfg.Audit,
		now:        time.Now,
		logger:     cfg.Logger.Named("tool-executor"),
	}
}

var _ ToolExecutor = (*FinanceToolExecutor)(nil)

// ExecuteTool dispatches to the appropriate tool handler based on name.
func (e *FinanceToolExecutor) ExecuteTool(ctx context.Context, name string, arguments string) (string, error) {
	e.logger.Debug("Executing tool",
		zap.String("tool", name),
		zap.String("arguments", arguments))

	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}
	ctx = models.WithAgentTrigger(ctx)

	var (
		result any
		err    error
	)
	switch name {
	case ToolListAssets:
		result, err = e.crypto.ListAssets(ctx)
	case ToolAddAsset:
		result, err = e.addAsset(ctx, arguments)
	case ToolBuyCrypto:
		result, err = e.buyCrypto(ctx, arguments)
	case ToolSellCrypto:
		result, err = e.sellCrypto(ctx, arguments)
	case ToolUpdateQuantity:
		result, err = e.updateQuantity(ctx, arguments)
	case ToolRemoveAsset:
		result, err = e.removeAsset(ctx, arguments)
	case ToolListTransactions:
		result, err = e.listTransactions(ctx, arguments)
	case ToolAddTransaction:
		result, err = e.addTransaction(ctx, arguments)
	case ToolUpdateTransaction:
		result, err = e.updateTransaction(ctx, arguments)
	case ToolDeleteTransaction:
		result, err = e.deleteTransaction(ctx, arguments)
	case ToolMonthlySummary:
		result, err = e.monthlySummary(ctx, arguments)
	case ToolListCategories:
		result, err = e.listCategories(ctx, arguments)
	case ToolAddCategory:
		result, err = e.addCategory(ctx, arguments)
	case ToolDeleteCategory:
		result, err = e.deleteCategory(ctx, arguments)
	case ToolListSavings:
		result, err = e.listSavings(ctx, arguments)
	case ToolAddSavings:
		result, err = e.addSavings(ctx, arguments)
	case ToolDepositSavings:
		result, err = e.depositSavings(ctx, arguments)
	case ToolListRecentAudit:
		result, err = e.listRecentAudit(ctx, arguments)
	case ToolEntityAuditHistory:
		result, err = e.entityHistory(ctx, arguments)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if err != nil {
		return "", err
	}

	responseJSON, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}
	return string(responseJSON), nil
}

func decodeArgs(arguments string, dst any) error {
	if err := json.Unmarshal([]byte(arguments), dst); err != nil {
		return fmt.Errorf("%w: invalid arguments: %v", apperrors.ErrInvalidInput, err)
	}
	return nil
}

func parseID(field, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a UUID", apperrors.ErrInvalidInput, field)
	}
	return id, nil
}

// ============================================================================
// Crypto tools
// ============================================================================

type addAssetArgs struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name"`
	Quantity jsonutil.Float `json:"quantity"`
	BuyPrice jsonutil.Float `json:"buy_price"`
}

func (e *FinanceToolExecutor) addAsset(ctx context.Context, arguments string) (any, error) {
	var args addAssetArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	return e.crypto.AddAsset(ctx, &models.AssetInput{
		Symbol:   args.Symbol,
		Name:     args.Name,
		Quantity: args.Quantity.Float64(),
		BuyPrice: args.BuyPrice.Float64(),
	})
}

type tradeArgs struct {
	Symbol   string         `json:"symbol"`
	Quantity jsonutil.Float `json:"quantity"`
	Price    jsonutil.Float `json:"price"`
}

func (e *FinanceToolExecutor) buyCrypto(ctx context.Context, arguments string) (any, error) {
	var args tradeArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	return e.crypto.BuyCrypto(ctx, args.Symbol, args.Quantity.Float64(), args.Price.Float64())
}

func (e *FinanceToolExecutor) sellCrypto(ctx context.Context, arguments string) (any, error) {
	var args tradeArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	return e.crypto.SellCrypto(ctx, args.Symbol, args.Quantity.Float64())
}

type updateQuantityArgs struct {
	Symbol   string          `json:"symbol"`
	Quantity jsonutil.Float  `json:"quantity"`
	AvgPrice *jsonutil.Float `json:"avg_price"`
}

func (e *FinanceToolExecutor) updateQuantity(ctx context.Context, arguments string) (any, error) {
	var args updateQuantityArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	return e.crypto.UpdateQuantity(ctx, args.Symbol, args.Quantity.Float64(), jsonutil.FloatPtr(args.AvgPrice))
}

type symbolArgs struct {
	Symbol string `json:"symbol"`
}

func (e *FinanceToolExecutor) removeAsset(ctx context.Context, arguments string) (any, error) {
	var args symbolArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	if err := e.crypto.RemoveAsset(ctx, args.Symbol); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "symbol": strings.ToUpper(args.Symbol)}, nil
}

// ============================================================================
// Transaction tools
// ============================================================================

type listTransactionsArgs struct {
	Type      string       `json:"type"`
	StartDate string       `json:"start_date"`
	EndDate   string       `json:"end_date"`
	Limit     jsonutil.Int `json:"limit"`
}

func (e *FinanceToolExecutor) listTransactions(ctx context.Context, arguments string) (any, error) {
	var args listTransactionsArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	filter := models.TransactionFilter{
		StartDate: args.StartDate,
		EndDate:   args.EndDate,
		Limit:     int(args.Limit),
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultToolListLimit
	}
	if args.Type != "" {
		typ := models.TransactionType(args.Type)
		filter.Type = &typ
	}
	return e.finance.ListTransactions(ctx, filter)
}

type addTransactionArgs struct {
	Amount   jsonutil.Float `json:"amount"`
	Type     string         `json:"type"`
	Date     string         `json:"date"`
	Category string         `json:"category"`
	Note     string         `json:"note"`
}

func (e *FinanceToolExecutor) addTransaction(ctx context.Context, arguments string) (any, error) {
	var args addTransactionArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}

	input := &models.TransactionInput{
		Amount: args.Amount.Float64(),
		Date:   args.Date,
		Type:   models.TransactionType(args.Type),
	}
	if args.Note != "" {
		input.Note = models.StringPtr(args.Note)
	}

	if args.Category != "" {
		var catType *models.CategoryType
		if ct := models.CategoryType(args.Type); ct.IsValid() {
			catType = &ct
		}
		cat, err := e.categories.FindCategoryByName(ctx, args.Category, catType)
		switch {
		case err == nil:
			input.CategoryID = &cat.ID
		case errors.Is(err, apperrors.ErrNotFound):
			e.logger.Debug("No category matched, recording uncategorized",
				zap.String("category", args.Category))
		default:
			return nil, err
		}
	}

	return e.finance.AddTransaction(ctx, input)
}

type updateTransactionArgs struct {
	ID     string          `json:"id"`
	Amount *jsonutil.Float `json:"amount"`
	Type   *string         `json:"type"`
	Date   *string         `json:"date"`
	Note   *string         `json:"note"`
}

func (e *FinanceToolExecutor) updateTransaction(ctx context.Context, arguments string) (any, error) {
	var args updateTransactionArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	id, err := parseID("id", args.ID)
	if err != nil {
		return nil, err
	}

	update := &models.TransactionUpdate{Amount: jsonutil.FloatPtr(args.Amount), Date: args.Date, Note: args.Note}
	if args.Type != nil {
		typ := models.TransactionType(*args.Type)
		update.Type = &typ
	}
	return e.finance.UpdateTransaction(ctx, id, update)
}

type idArgs struct {
	ID string `json:"id"`
}

func (e *FinanceToolExecutor) deleteTransaction(ctx context.Context, arguments string) (any, error) {
	var args idArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	id, err := parseID("id", args.ID)
	if err != nil {
		return nil, err
	}
	if err := e.finance.DeleteTransaction(ctx, id); err != nil {
		return nil, err
	}
	return map[string]any{"success": true, "id": id}, nil
}

type monthlySummaryArgs struct {
	Year  jsonutil.Int `json:"year"`
	Month jsonutil.Int `json:"month"`
}

func (e *FinanceToolExecutor) monthlySummary(ctx context.Context, arguments string) (any, error) {
	var args monthlySummaryArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	now := e.now()
	year, month := int(args.Year), int(args.Month)
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	return e.finance.MonthlySummary(ctx, year, month)
}

// ============================================================================
// Category tools
// ============================================================================

type listCategoriesArgs struct {
	Type string `json:"type"`
}

func (e *FinanceToolExecutor) listCategories(ctx context.Context, arguments string) (any, error) {
	var args listCategoriesArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	var catType *models.CategoryType
	if args.Type != "" {
		ct := models.CategoryType(args.Type)
		catType = &ct
	}
	return e.categories.ListCategories(ctx, catType)
}

type addCategoryArgs struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

func (e *FinanceToolExecutor) addCategory(ctx context.Context, arguments string) (any, error) {
	var args addCategoryArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	return e.categories.AddCategory(ctx, &models.CategoryInput{
		Name:  args.Name,
		Type:  models.CategoryType(args.Type),
		Icon:  args.Icon,
		Color: args.Color,
	})
}

type deleteCategoryArgs struct {
	ID    string        `json:"id"`
	Force jsonutil.Bool `json:"force"`
}

func (e *FinanceToolExecutor) deleteCategory(ctx context.Context, arguments string) (any, error) {
	var args deleteCategoryArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	id, err := parseID("id", args.ID)
	if err != nil {
		return nil, err
	}
	return e.categories.DeleteCategory(ctx, id, bool(args.Force))
}

// ============================================================================
// Savings tools
// ============================================================================

type listSavingsArgs struct {
	IncludeCompleted jsonutil.Bool `json:"include_completed"`
}

func (e *FinanceToolExecutor) listSavings(ctx context.Context, arguments string) (any, error) {
	var args listSavingsArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	return e.savings.ListSavingsVaults(ctx, bool(args.IncludeCompleted))
}

type addSavingsArgs struct {
	Name          string         `json:"name"`
	TargetAmount  jsonutil.Float `json:"target_amount"`
	CurrentAmount jsonutil.Float `json:"current_amount"`
}

func (e *FinanceToolExecutor) addSavings(ctx context.Context, arguments string) (any, error) {
	var args addSavingsArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	return e.savings.AddSavingsVault(ctx, &models.SavingsVaultInput{
		Name:          args.Name,
		TargetAmount:  args.TargetAmount.Float64(),
		CurrentAmount: args.CurrentAmount.Float64(),
	})
}

type depositSavingsArgs struct {
	ID     string         `json:"id"`
	Amount jsonutil.Float `json:"amount"`
}

func (e *FinanceToolExecutor) depositSavings(ctx context.Context, arguments string) (any, error) {
	var args depositSavingsArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	id, err := parseID("id", args.ID)
	if err != nil {
		return nil, err
	}
	return e.savings.AddToSavingsVault(ctx, id, args.Amount.Float64())
}

// ============================================================================
// Audit tools (read-only)
// ============================================================================

type listRecentAuditArgs struct {
	Module string       `json:"module"`
	Limit  jsonutil.Int `json:"limit"`
}

func (e *FinanceToolExecutor) listRecentAudit(ctx context.Context, arguments string) (any, error) {
	var args listRecentAuditArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	filter := models.AuditLogFilter{Limit: int(args.Limit)}
	if filter.Limit <= 0 {
		filter.Limit = defaultToolListLimit
	}
	if args.Module != "" {
		module := models.AuditModule(strings.ToUpper(args.Module))
		filter.Module = &module
	}
	return e.audit.ListRecent(ctx, filter)
}

type entityHistoryArgs struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

func (e *FinanceToolExecutor) entityHistory(ctx context.Context, arguments string) (any, error) {
	var args entityHistoryArgs
	if err := decodeArgs(arguments, &args); err != nil {
		return nil, err
	}
	id, err := parseID("entity_id", args.EntityID)
	if err != nil {
		return nil, err
	}
	return e.audit.History(ctx, args.EntityType, id)
}
