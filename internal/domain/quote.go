package domain

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Quote is the price and display name of a symbol at a point in time,
// supplied by an external provider. The engine never derives prices itself.
type Quote struct {
	Symbol string
	Name   string
	Price  decimal.Decimal
}

// Validate checks that the quote is usable for a trade.
func (q Quote) Validate() error {
	if q.Symbol == "" {
		return errors.New("quote symbol is required")
	}
	if !q.Price.IsPositive() {
		return errors.Errorf("quote price must be positive, got %s", q.Price)
	}

	return nil
}

// NormalizeSymbol canonicalizes a ticker symbol for storage and lookup.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
