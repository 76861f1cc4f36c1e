package llm

// ToolDefinition defines a tool that can be called by the LLM.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ParameterProperty defines a parameter property in JSON Schema format.
type ParameterProperty struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Tool names exposed to the chat model and to MCP clients.
const (
	ToolListAssets         = "list_assets"
	ToolAddAsset           = "add_asset"
	ToolBuyCrypto          = "buy_crypto"
	ToolSellCrypto         = "sell_crypto"
	ToolUpdateQuantity     = "update_asset_quantity"
	ToolRemoveAsset        = "remove_asset"
	ToolListTransactions   = "list_transactions"
	ToolAddTransaction     = "add_transaction"
	ToolUpdateTransaction  = "update_transaction"
	ToolDeleteTransaction  = "delete_transaction"
	ToolMonthlySummary     = "monthly_summary"
	ToolListCategories     = "list_categories"
	ToolAddCategory        = "add_category"
	ToolDeleteCategory     = "delete_category"
	ToolListSavings        = "list_savings_goals"
	ToolAddSavings         = "add_savings_goal"
	ToolDepositSavings     = "deposit_savings"
	ToolListRecentAudit    = "list_recent_audit"
	ToolEntityAuditHistory = "entity_audit_history"
)

// NewToolDefinition creates a new tool definition with standard JSON Schema parameters.
func NewToolDefinition(name, description string, properties map[string]ParameterProperty, required []string) ToolDefinition {
	props := make(map[string]any)
	for k, v := range properties {
		props[k] = map[string]any{
			"type":        v.Type,
			"description": v.Description,
		}
		if len(v.Enum) > 0 {
			props[k].(map[string]any)["enum"] = v.Enum
		}
	}

	return ToolDefinition{
		Name:        name,
		Description: description,
		Parameters: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

// FinanceTools returns the tools available to agents. Rollback is not one of them.
func FinanceTools() []ToolDefinition {
	return []ToolDefinition{
		NewToolDefinition(ToolListAssets,
			"List every crypto asset in the portfolio with quantity and average buy price",
			map[string]ParameterProperty{}, []string{}),
		NewToolDefinition(ToolAddAsset,
			"Add a new crypto asset to the portfolio",
			map[string]ParameterProperty{
				"symbol":    {Type: "string", Description: "Ticker symbol, e.g. BTC"},
				"name":      {Type: "string", Description: "Optional display name"},
				"quantity":  {Type: "number", Description: "Quantity held"},
				"buy_price": {Type: "number", Description: "Average buy price in USD"},
			},
			[]string{"symbol", "quantity", "buy_price"}),
		NewToolDefinition(ToolBuyCrypto,
			"Buy more of an asset; the average buy price is recomputed. Creates the asset if it is not held yet",
			map[string]ParameterProperty{
				"symbol":   {Type: "string", Description: "Ticker symbol"},
				"quantity": {Type: "number", Description: "Quantity bought"},
				"price":    {Type: "number", Description: "Price per unit in USD"},
			},
			[]string{"symbol", "quantity", "price"}),
		NewToolDefinition(ToolSellCrypto,
			"Sell part or all of a position; selling everything removes the asset",
			map[string]ParameterProperty{
				"symbol":   {Type: "string", Description: "Ticker symbol"},
				"quantity": {Type: "number", Description: "Quantity sold"},
			},
			[]string{"symbol", "quantity"}),
		NewToolDefinition(ToolUpdateQuantity,
			"Correct the held quantity and optionally the average buy price of an asset",
			map[string]ParameterProperty{
				"symbol":    {Type: "string", Description: "Ticker symbol"},
				"quantity":  {Type: "number", Description: "New quantity"},
				"avg_price": {Type: "number", Description: "Optional new average buy price"},
			},
			[]string{"symbol", "quantity"}),
		NewToolDefinition(ToolRemoveAsset,
			"Remove an asset from the portfolio",
			map[string]ParameterProperty{
				"symbol": {Type: "string", Description: "Ticker symbol"},
			},
			[]string{"symbol"}),
		NewToolDefinition(ToolListTransactions,
			"List personal transactions, newest first",
			map[string]ParameterProperty{
				"type":       {Type: "string", Description: "Optional transaction type", Enum: transactionTypes()},
				"start_date": {Type: "string", Description: "Optional inclusive start date (YYYY-MM-DD)"},
				"end_date":   {Type: "string", Description: "Optional inclusive end date (YYYY-MM-DD)"},
				"limit":      {Type: "integer", Description: "Maximum number of rows (default 20)"},
			},
			[]string{}),
		NewToolDefinition(ToolAddTransaction,
			"Record an income, expense or investment. The category is matched by name when given",
			map[string]ParameterProperty{
				"amount":   {Type: "number", Description: "Positive amount"},
				"type":     {Type: "string", Description: "Transaction type", Enum: transactionTypes()},
				"date":     {Type: "string", Description: "Date (YYYY-MM-DD); defaults to today"},
				"category": {Type: "string", Description: "Optional category name"},
				"note":     {Type: "string", Description: "Optional note"},
			},
			[]string{"amount", "type"}),
		NewToolDefinition(ToolUpdateTransaction,
			"Change fields of an existing transaction",
			map[string]ParameterProperty{
				"id":     {Type: "string", Description: "Transaction ID"},
				"amount": {Type: "number", Description: "New amount"},
				"type":   {Type: "string", Description: "New type", Enum: transactionTypes()},
				"date":   {Type: "string", Description: "New date (YYYY-MM-DD)"},
				"note":   {Type: "string", Description: "New note"},
			},
			[]string{"id"}),
		NewToolDefinition(ToolDeleteTransaction,
			"Delete a transaction",
			map[string]ParameterProperty{
				"id": {Type: "string", Description: "Transaction ID"},
			},
			[]string{"id"}),
		NewToolDefinition(ToolMonthlySummary,
			"Income, expense, investment and net totals for one month",
			map[string]ParameterProperty{
				"year":  {Type: "integer", Description: "Year; defaults to the current year"},
				"month": {Type: "integer", Description: "Month 1-12; defaults to the current month"},
			},
			[]string{}),
		NewToolDefinition(ToolListCategories,
			"List finance categories",
			map[string]ParameterProperty{
				"type": {Type: "string", Description: "Optional category type", Enum: categoryTypes()},
			},
			[]string{}),
		NewToolDefinition(ToolAddCategory,
			"Create a finance category",
			map[string]ParameterProperty{
				"name":  {Type: "string", Description: "Category name"},
				"type":  {Type: "string", Description: "Category type", Enum: categoryTypes()},
				"icon":  {Type: "string", Description: "Optional icon name"},
				"color": {Type: "string", Description: "Optional hex color"},
			},
			[]string{"name", "type"}),
		NewToolDefinition(ToolDeleteCategory,
			"Delete a category. Refused while transactions use it unless force is true, which unlinks them first",
			map[string]ParameterProperty{
				"id":    {Type: "string", Description: "Category ID"},
				"force": {Type: "boolean", Description: "Unlink transactions and delete anyway"},
			},
			[]string{"id"}),
		NewToolDefinition(ToolListSavings,
			"List savings goals",
			map[string]ParameterProperty{
				"include_completed": {Type: "boolean", Description: "Include completed goals"},
			},
			[]string{}),
		NewToolDefinition(ToolAddSavings,
			"Create a savings goal",
			map[string]ParameterProperty{
				"name":           {Type: "string", Description: "Goal name"},
				"target_amount":  {Type: "number", Description: "Target amount"},
				"current_amount": {Type: "number", Description: "Optional starting balance"},
			},
			[]string{"name", "target_amount"}),
		NewToolDefinition(ToolDepositSavings,
			"Deposit into a savings goal; a negative amount withdraws",
			map[string]ParameterProperty{
				"id":     {Type: "string", Description: "Savings goal ID"},
				"amount": {Type: "number", Description: "Amount to deposit"},
			},
			[]string{"id", "amount"}),
		NewToolDefinition(ToolListRecentAudit,
			"List the most recent changes recorded in the audit log",
			map[string]ParameterProperty{
				"module": {Type: "string", Description: "Optional module filter", Enum: []string{"CRYPTO", "FINANCE"}},
				"limit":  {Type: "integer", Description: "Maximum number of entries (default 20)"},
			},
			[]string{}),
		NewToolDefinition(ToolEntityAuditHistory,
			"Show every recorded change to one entity, newest first",
			map[string]ParameterProperty{
				"entity_type": {Type: "string", Description: "Entity type", Enum: []string{"asset", "transaction", "category", "savings"}},
				"entity_id":   {Type: "string", Description: "Entity ID"},
			},
			[]string{"entity_type", "entity_id"}),
	}
}

func transactionTypes() []string {
	return []string{"income", "expense", "investment"}
}

func categoryTypes() []string {
	return []string{"income", "expense"}
}
