package engine

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity rejects non-positive share quantities.
	ErrInvalidQuantity = errors.New("quantity must be a positive whole number of shares")
	// ErrSymbolNotFound rejects trades whose symbol could not be quoted.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrNoSuchHolding rejects sells of a symbol the account does not own.
	ErrNoSuchHolding = errors.New("no shares of this symbol are owned")
	// ErrConcurrencyConflict is returned when the commit lost to a
	// competing operation on the same account twice in a row.
	ErrConcurrencyConflict = errors.New("trade conflicted with a concurrent operation, retry")
)

// InsufficientFundsError reports a buy whose cost exceeds available cash.
type InsufficientFundsError struct {
	Cost      decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: cost %s exceeds available cash %s", e.Cost, e.Available)
}

// InsufficientSharesError reports a sell larger than the owned quantity.
type InsufficientSharesError struct {
	Symbol    string
	Requested int64
	Owned     int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("insufficient shares: requested %d of %s, own %d", e.Requested, e.Symbol, e.Owned)
}
