// Package storage defines the persistence contract shared by the engine
// and its store implementations. The three records (account cash,
// holdings, transaction log) always change together through Apply.
package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/papertrade/brokerd/internal/domain"
)

var (
	// ErrAccountNotFound is returned when the requested account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountExists is returned when creating an account whose id is taken.
	ErrAccountExists = errors.New("account already exists")
	// ErrHoldingNotFound is returned when the account holds none of the symbol.
	ErrHoldingNotFound = errors.New("holding not found")
	// ErrConflict is returned by Apply when the guarded cash balance changed
	// between read and commit. The caller re-reads and retries.
	ErrConflict = errors.New("state changed by a concurrent commit")
)

// Mutation is one atomic ledger+holding+log transition. PrevCash is the
// optimistic guard: stores must refuse the commit with ErrConflict when
// the account's cash no longer equals it. NewQuantity == 0 deletes the
// holding row, per the no-zero-rows invariant.
type Mutation struct {
	AccountID   string
	PrevCash    decimal.Decimal
	NewCash     decimal.Decimal
	Symbol      string
	NewQuantity int64
	Tx          domain.Transaction
}

// Store persists accounts, holdings and the append-only trade log.
type Store interface {
	CreateAccount(ctx context.Context, account domain.Account) error
	Account(ctx context.Context, id string) (domain.Account, error)
	Holding(ctx context.Context, accountID, symbol string) (domain.Holding, error)
	Holdings(ctx context.Context, accountID string) ([]domain.Holding, error)
	// Transactions returns the account's log in insertion order.
	Transactions(ctx context.Context, accountID string) ([]domain.Transaction, error)
	// Apply commits the mutation as one unit: either cash, holding and log
	// all change, or none of them do.
	Apply(ctx context.Context, m Mutation) error
}
