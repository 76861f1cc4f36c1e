// Package money formats amounts for audit descriptions and chat replies.
package money

import (
	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when no currency is configured.
const DefaultCurrency = "USD"

// Formatter renders float amounts in one ISO 4217 currency.
type Formatter struct {
	currency *gomoney.Currency
}

// NewFormatter returns a formatter for code. Unknown codes fall back to USD.
func NewFormatter(code string) Formatter {
	cur := gomoney.GetCurrency(code)
	if cur == nil {
		cur = gomoney.GetCurrency(DefaultCurrency)
	}
	return Formatter{currency: cur}
}

// Currency returns the ISO code the formatter renders.
func (f Formatter) Currency() string {
	return f.currency.Code
}

// Format renders amount with the currency's symbol, grouping and fraction digits.
func (f Formatter) Format(amount float64) string {
	return f.FormatDecimal(decimal.NewFromFloat(amount))
}

// FormatDecimal renders an exact decimal amount.
func (f Formatter) FormatDecimal(amount decimal.Decimal) string {
	minor := amount.Shift(int32(f.currency.Fraction)).Round(0)
	return f.currency.Formatter().Format(minor.IntPart())
}
