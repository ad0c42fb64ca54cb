package domain

import (
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Transaction is one executed trade. Records are immutable once written
// to the log; timestamps are UTC at second precision.
type Transaction struct {
	ID         string
	AccountID  string
	Symbol     string
	Quantity   int64
	Price      decimal.Decimal
	Side       Side
	ExecutedAt time.Time
}

// NewTransaction validates and constructs a log record for an executed trade.
func NewTransaction(id, accountID, symbol string, quantity int64, price decimal.Decimal, side Side, executedAt time.Time) (Transaction, error) {
	if id == "" {
		return Transaction{}, errors.New("transaction id is required")
	}
	if accountID == "" {
		return Transaction{}, errors.New("transaction account id is required")
	}
	if symbol == "" {
		return Transaction{}, errors.New("transaction symbol is required")
	}
	if quantity <= 0 {
		return Transaction{}, errors.Errorf("transaction quantity must be positive, got %d", quantity)
	}
	if !price.IsPositive() {
		return Transaction{}, errors.Errorf("transaction price must be positive, got %s", price)
	}
	if !side.Valid() {
		return Transaction{}, errors.Errorf("transaction side must be BUY or SELL, got %s", side)
	}

	return Transaction{
		ID:         id,
		AccountID:  accountID,
		Symbol:     NormalizeSymbol(symbol),
		Quantity:   quantity,
		Price:      price,
		Side:       side,
		ExecutedAt: executedAt.UTC().Truncate(time.Second),
	}, nil
}

// Total returns quantity * unit price.
func (t Transaction) Total() decimal.Decimal {
	return t.Price.Mul(decimal.NewFromInt(t.Quantity))
}
