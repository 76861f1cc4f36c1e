package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/pkg/apperrors"
	"github.com/hodlisma/hodlisma-engine/pkg/money"
	"github.com/hodlisma/hodlisma-engine/pkg/prompts"
	"github.com/hodlisma/hodlisma-engine/pkg/services"
)

// Generator produces a chat completion, calling tools as needed.
type Generator interface {
	GenerateWithTools(ctx context.Context, req *ChatRequest, executor ToolExecutor) (*ChatResult, error)
}

var _ Generator = (*Client)(nil)

// ChatService answers portfolio questions.
type ChatService interface {
	Chat(ctx context.Context, messages []Message) (*ChatResult, error)
}

type chatService struct {
	generator Generator
	executor  ToolExecutor
	crypto    services.CryptoService
	finance   services.FinanceService
	money     money.Formatter
	now       func() time.Time
	logger    *zap.Logger
}

// NewChatService creates a chat service. A nil generator yields a service
// whose Chat always returns ErrNotConfigured.
func NewChatService(
	generator Generator,
	executor ToolExecutor,
	crypto services.CryptoService,
	finance services.FinanceService,
	formatter money.Formatter,
	logger *zap.Logger,
) ChatService {
	return &chatService{
		generator: generator,
		executor:  executor,
		crypto:    crypto,
		finance:   finance,
		money:     formatter,
		now:       time.Now,
		logger:    logger.Named("chat-service"),
	}
}

var _ ChatService = (*chatService)(nil)

func (s *chatService) Chat(ctx context.Context, messages []Message) (*ChatResult, error) {
	if s.generator == nil {
		return nil, ErrNotConfigured
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: at least one message is required", apperrors.ErrInvalidInput)
	}

	portfolio, err := s.portfolioContext(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.generator.GenerateWithTools(ctx, &ChatRequest{
		SystemPrompt: prompts.BuildChatSystemPrompt(portfolio, s.money),
		Messages:     messages,
		Tools:        FinanceTools(),
	}, s.executor)
	if err != nil {
		s.logger.Error("Chat completion failed", zap.Error(err))
		return nil, fmt.Errorf("chat: %w", err)
	}

	if len(result.ToolCalls) > 0 {
		s.logger.Info("Chat used tools", zap.Strings("tools", result.ToolCalls))
	}
	return result, nil
}

// portfolioContext collects holdings and the current month's totals.
func (s *chatService) portfolioContext(ctx context.Context) (prompts.PortfolioContext, error) {
	assets, err := s.crypto.ListAssets(ctx)
	if err != nil {
		return prompts.PortfolioContext{}, fmt.Errorf("load portfolio: %w", err)
	}

	now := s.now()
	summary, err := s.finance.MonthlySummary(ctx, now.Year(), int(now.Month()))
	if err != nil {
		return prompts.PortfolioContext{}, fmt.Errorf("load monthly summary: %w", err)
	}

	pc := prompts.PortfolioContext{
		Month:    now.Format("2006-01"),
		Holdings: make([]prompts.Holding, 0, len(assets)),
		Totals: prompts.MonthTotals{
			Income:           summary.TotalIncome,
			Expense:          summary.TotalExpense,
			Investment:       summary.TotalInvestment,
			Net:              summary.NetBalance,
			TransactionCount: summary.TransactionCount,
		},
	}
	for _, a := range assets {
		h := prompts.Holding{Symbol: a.Symbol, Quantity: a.Quantity, AvgPrice: a.BuyPrice}
		if a.Name != nil {
			h.Name = *a.Name
		}
		pc.Holdings = append(pc.Holdings, h)
	}
	return pc, nil
}
