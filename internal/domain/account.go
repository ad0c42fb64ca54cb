package domain

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Account is a trading participant identified by an opaque id.
// Cash is the only mutable part of an account and never goes negative.
type Account struct {
	ID   string
	Cash decimal.Decimal
}

// NewAccount constructs an account with its opening cash balance.
func NewAccount(id string, cash decimal.Decimal) (Account, error) {
	if id == "" {
		return Account{}, errors.New("account id is required")
	}
	if cash.IsNegative() {
		return Account{}, errors.New("account cash must not be negative")
	}

	return Account{ID: id, Cash: cash}, nil
}
