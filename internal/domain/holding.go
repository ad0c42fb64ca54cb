package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Holding is an account's owned quantity of one symbol.
// A zero-quantity holding is never stored: absence means zero.
type Holding struct {
	AccountID string
	Symbol    string
	Quantity  int64
}

// NewHolding constructs a holding row. Quantity must be positive.
func NewHolding(accountID, symbol string, quantity int64) (Holding, error) {
	if accountID == "" {
		return Holding{}, errors.New("holding account id is required")
	}
	if symbol == "" {
		return Holding{}, errors.New("holding symbol is required")
	}
	if quantity <= 0 {
		return Holding{}, errors.Errorf("holding quantity must be positive, got %d", quantity)
	}

	return Holding{AccountID: accountID, Symbol: NormalizeSymbol(symbol), Quantity: quantity}, nil
}

// Value returns the holding's worth at the given unit price.
func (h Holding) Value(price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(h.Quantity))
}
