package models

import (
	"time"

	"github.com/google/uuid"
)

// Asset is a crypto holding in the portfolio.
type Asset struct {
	ID        uuid.UUID `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      *string   `json:"name"`
	Quantity  float64   `json:"quantity"`
	BuyPrice  float64   `json:"buy_price"`
	CreatedAt time.Time `json:"created_at"`
}

// Snapshot captures the full row for delete-type audit entries.
func (a *Asset) Snapshot() Snapshot {
	s := Snapshot{
		"symbol":    a.Symbol,
		"quantity":  a.Quantity,
		"buy_price": a.BuyPrice,
	}
	if a.Name != nil {
		s["name"] = *a.Name
	}
	return s
}

// AssetInput is the form input for creating an asset.
type AssetInput struct {
	Symbol   string  `json:"symbol"`
	Name     string  `json:"name,omitempty"`
	Quantity float64 `json:"quantity"`
	BuyPrice float64 `json:"buy_price"`
}

// SellResult reports the outcome of selling part of a position.
type SellResult struct {
	Success           bool    `json:"success"`
	RemainingQuantity float64 `json:"remaining_quantity"`
	Removed           bool    `json:"removed"`
}
