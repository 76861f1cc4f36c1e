// Package prompts builds the system prompts sent to the chat model.
package prompts

import (
	"fmt"
	"strings"

	"github.com/hodlisma/hodlisma-engine/pkg/money"
)

// Holding is one crypto position as shown to the model.
type Holding struct {
	Symbol   string
	Name     string
	Quantity float64
	AvgPrice float64
}

// MonthTotals is the current month's cash flow.
type MonthTotals struct {
	Income           float64
	Expense          float64
	Investment       float64
	Net              float64
	TransactionCount int
}

// PortfolioContext is everything the assistant knows before its first tool call.
type PortfolioContext struct {
	Month    string // YYYY-MM
	Holdings []Holding
	Totals   MonthTotals
}

// BuildChatSystemPrompt creates the system prompt for the portfolio assistant.
// Amounts are rendered with f so the model answers in the configured currency.
func BuildChatSystemPrompt(pc PortfolioContext, f money.Formatter) string {
	var prompt strings.Builder

	prompt.WriteString("You are HODLISMA AI, a specialist in crypto portfolio and personal finance analysis.\n\n")

	prompt.WriteString("## Crypto Holdings\n\n")
	if len(pc.Holdings) == 0 {
		prompt.WriteString("No crypto positions.\n\n")
	} else {
		prompt.WriteString("| Symbol | Name | Quantity | Avg buy price | Cost basis |\n")
		prompt.WriteString("|--------|------|----------|---------------|------------|\n")
		var total float64
		for _, h := range pc.Holdings {
			cost := h.Quantity * h.AvgPrice
			total += cost
			prompt.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				h.Symbol, h.Name, formatQuantity(h.Quantity), f.Format(h.AvgPrice), f.Format(cost)))
		}
		prompt.WriteString(fmt.Sprintf("\nTotal cost basis: %s\n\n", f.Format(total)))
	}

	prompt.WriteString(fmt.Sprintf("## Cash Flow for %s\n\n", pc.Month))
	prompt.WriteString(fmt.Sprintf("- Income: %s\n", f.Format(pc.Totals.Income)))
	prompt.WriteString(fmt.Sprintf("- Expenses: %s\n", f.Format(pc.Totals.Expense)))
	prompt.WriteString(fmt.Sprintf("- Investments: %s\n", f.Format(pc.Totals.Investment)))
	prompt.WriteString(fmt.Sprintf("- Net balance: %s\n", f.Format(pc.Totals.Net)))
	prompt.WriteString(fmt.Sprintf("- Transactions: %d\n\n", pc.Totals.TransactionCount))

	prompt.WriteString("## Instructions\n\n")
	prompt.WriteString("- Give sharp, data-driven advice grounded in the figures above.\n")
	prompt.WriteString("- Call tools to look up or change records. Never invent ids; list records first.\n")
	prompt.WriteString("- Every change you make is recorded in the audit log as made by the AI agent.\n")
	prompt.WriteString("- Dates are YYYY-MM-DD. Amounts are in " + f.Currency() + ".\n")
	prompt.WriteString("- Style: professional and concise.\n")

	return prompt.String()
}

// formatQuantity trims trailing zeros so 0.50000000 reads as 0.5.
func formatQuantity(q float64) string {
	s := strings.TrimRight(fmt.Sprintf("%.8f", q), "0")
	return strings.TrimSuffix(s, ".")
}
