package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType classifies a personal transaction.
type TransactionType string

const (
	TransactionIncome     TransactionType = "income"
	TransactionExpense    TransactionType = "expense"
	TransactionInvestment TransactionType = "investment"
)

// IsValid returns true for the known transaction types.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionIncome, TransactionExpense, TransactionInvestment:
		return true
	default:
		return false
	}
}

// CategoryType classifies a finance category. Categories only cover income and expense.
type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

// IsValid returns true for the known category types.
func (t CategoryType) IsValid() bool {
	return t == CategoryIncome || t == CategoryExpense
}

// DateLayout is the storage layout of transaction dates.
const DateLayout = "2006-01-02"

// FinanceCategory groups transactions.
type FinanceCategory struct {
	ID        uuid.UUID    `json:"id"`
	Name      string       `json:"name"`
	Type      CategoryType `json:"type"`
	Icon      string       `json:"icon"`
	Color     string       `json:"color"`
	CreatedAt time.Time    `json:"created_at"`
}

// Snapshot captures the full category row.
func (c *FinanceCategory) Snapshot() Snapshot {
	return Snapshot{
		"name":  c.Name,
		"type":  string(c.Type),
		"icon":  c.Icon,
		"color": c.Color,
	}
}

// CategoryInput creates a category. Empty icon and color fall back to defaults.
type CategoryInput struct {
	Name  string       `json:"name"`
	Type  CategoryType `json:"type"`
	Icon  string       `json:"icon,omitempty"`
	Color string       `json:"color,omitempty"`
}

// CategoryUpdate is a partial category update; nil fields are left untouched.
type CategoryUpdate struct {
	Name  *string       `json:"name,omitempty"`
	Type  *CategoryType `json:"type,omitempty"`
	Icon  *string       `json:"icon,omitempty"`
	Color *string       `json:"color,omitempty"`
}

// Default category presentation values.
const (
	DefaultCategoryIcon  = "circle"
	DefaultCategoryColor = "#6366f1"
)

// DeleteCategoryResult reports the outcome of a category deletion.
// LinkedCount is set when the deletion was refused because transactions reference the category.
type DeleteCategoryResult struct {
	Success     bool   `json:"success"`
	LinkedCount int    `json:"linked_count,omitempty"`
	Message     string `json:"message"`
}

// PersonalTransaction is one income, expense or investment record.
type PersonalTransaction struct {
	ID         uuid.UUID        `json:"id"`
	CategoryID *uuid.UUID       `json:"category_id"`
	Amount     float64          `json:"amount"`
	Date       string           `json:"date"`
	Note       *string          `json:"note"`
	Type       TransactionType  `json:"type"`
	CreatedAt  time.Time        `json:"created_at"`
	Category   *FinanceCategory `json:"category,omitempty"`
}

// Snapshot captures the full transaction row.
func (t *PersonalTransaction) Snapshot() Snapshot {
	s := Snapshot{
		"amount":      t.Amount,
		"date":        t.Date,
		"type":        string(t.Type),
		"category_id": nil,
		"note":        nil,
	}
	if t.CategoryID != nil {
		s["category_id"] = t.CategoryID.String()
	}
	if t.Note != nil {
		s["note"] = *t.Note
	}
	return s
}

// TransactionInput creates a transaction.
type TransactionInput struct {
	CategoryID *uuid.UUID      `json:"category_id,omitempty"`
	Amount     float64         `json:"amount"`
	Date       string          `json:"date"`
	Note       *string         `json:"note,omitempty"`
	Type       TransactionType `json:"type"`
}

// TransactionUpdate is a partial transaction update; nil fields are left untouched.
type TransactionUpdate struct {
	CategoryID *uuid.UUID       `json:"category_id,omitempty"`
	Amount     *float64         `json:"amount,omitempty"`
	Date       *string          `json:"date,omitempty"`
	Note       *string          `json:"note,omitempty"`
	Type       *TransactionType `json:"type,omitempty"`
}

// TransactionFilter narrows a transaction listing.
type TransactionFilter struct {
	Type      *TransactionType
	StartDate string
	EndDate   string
	Limit     int
}

// MonthlySummary aggregates one calendar month of transactions.
type MonthlySummary struct {
	TotalIncome      float64 `json:"total_income"`
	TotalExpense     float64 `json:"total_expense"`
	TotalInvestment  float64 `json:"total_investment"`
	NetBalance       float64 `json:"net_balance"`
	TransactionCount int     `json:"transaction_count"`
}

// SavingsVault is a savings goal.
type SavingsVault struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	TargetAmount  float64   `json:"target_amount"`
	CurrentAmount float64   `json:"current_amount"`
	IsCompleted   bool      `json:"is_completed"`
	CreatedAt     time.Time `json:"created_at"`
}

// Snapshot captures the full vault row.
func (v *SavingsVault) Snapshot() Snapshot {
	return Snapshot{
		"name":           v.Name,
		"target_amount":  v.TargetAmount,
		"current_amount": v.CurrentAmount,
		"is_completed":   v.IsCompleted,
	}
}

// SavingsVaultInput creates a savings vault.
type SavingsVaultInput struct {
	Name          string  `json:"name"`
	TargetAmount  float64 `json:"target_amount"`
	CurrentAmount float64 `json:"current_amount,omitempty"`
}

// SavingsVaultUpdate is a partial vault update; nil fields are left untouched.
type SavingsVaultUpdate struct {
	Name          *string  `json:"name,omitempty"`
	TargetAmount  *float64 `json:"target_amount,omitempty"`
	CurrentAmount *float64 `json:"current_amount,omitempty"`
}
