// Package engine implements the portfolio transaction engine: it
// validates buy/sell requests against solvency and ownership invariants
// and applies each accepted trade as one atomic ledger+holding+log
// transition.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/papertrade/brokerd/internal/domain"
	"github.com/papertrade/brokerd/internal/events"
	"github.com/papertrade/brokerd/internal/storage"
)

// Engine serializes operations per account and commits them through the
// store's atomic Apply.
type Engine struct {
	store     storage.Store
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time

	locks  map[string]*sync.Mutex
	locksM sync.Mutex
}

// New creates an engine over the given store. Publisher and logger may
// be nil.
func New(store storage.Store, publisher events.Publisher, logger *zap.Logger) *Engine {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		store:     store,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		locks:     make(map[string]*sync.Mutex),
	}
}

// accountLock returns the mutex serializing operations on one account.
func (e *Engine) accountLock(accountID string) *sync.Mutex {
	e.locksM.Lock()
	defer e.locksM.Unlock()

	lock, ok := e.locks[accountID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[accountID] = lock
	}
	return lock
}

// Execute validates and applies one trade at the supplied quote price.
// Preconditions are checked in order: quantity, quote, then solvency or
// ownership. On success all three records change together; on any
// failure state is untouched.
func (e *Engine) Execute(ctx context.Context, accountID, symbol string, quantity int64, side domain.Side, quote *domain.Quote) (domain.Receipt, error) {
	if quantity <= 0 {
		return domain.Receipt{}, ErrInvalidQuantity
	}
	if quote == nil || quote.Validate() != nil {
		return domain.Receipt{}, errors.Wrap(ErrSymbolNotFound, domain.NormalizeSymbol(symbol))
	}
	if !side.Valid() {
		return domain.Receipt{}, errors.Errorf("trade side must be BUY or SELL, got %s", side)
	}

	symbol = domain.NormalizeSymbol(symbol)

	lock := e.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	receipt, err := e.tryExecute(ctx, accountID, symbol, quantity, side, *quote)
	if errors.Is(err, storage.ErrConflict) {
		// An out-of-process commit won the race. Re-read, re-check the
		// preconditions against fresh state and retry once.
		receipt, err = e.tryExecute(ctx, accountID, symbol, quantity, side, *quote)
		if errors.Is(err, storage.ErrConflict) {
			return domain.Receipt{}, ErrConcurrencyConflict
		}
	}
	if err != nil {
		return domain.Receipt{}, err
	}

	e.logger.Info("trade executed",
		zap.String("account", accountID),
		zap.String("symbol", symbol),
		zap.String("side", side.String()),
		zap.Int64("quantity", quantity),
		zap.String("price", quote.Price.String()),
		zap.String("cash_after", receipt.CashAfter.String()))

	if err := e.publisher.Publish(ctx, tradeEvent(receipt)); err != nil {
		e.logger.Warn("failed to publish trade event",
			zap.String("transaction", receipt.Transaction.ID), zap.Error(err))
	}

	return receipt, nil
}

func (e *Engine) tryExecute(ctx context.Context, accountID, symbol string, quantity int64, side domain.Side, quote domain.Quote) (domain.Receipt, error) {
	account, err := e.store.Account(ctx, accountID)
	if err != nil {
		return domain.Receipt{}, err
	}

	total := quote.Price.Mul(decimal.NewFromInt(quantity))

	var (
		newCash     decimal.Decimal
		newQuantity int64
	)

	switch side {
	case domain.SideBuy:
		if total.GreaterThan(account.Cash) {
			return domain.Receipt{}, &InsufficientFundsError{Cost: total, Available: account.Cash}
		}

		newCash = account.Cash.Sub(total)
		newQuantity = quantity

		holding, err := e.store.Holding(ctx, accountID, symbol)
		switch {
		case err == nil:
			newQuantity = holding.Quantity + quantity
		case !errors.Is(err, storage.ErrHoldingNotFound):
			return domain.Receipt{}, err
		}
	case domain.SideSell:
		holding, err := e.store.Holding(ctx, accountID, symbol)
		if errors.Is(err, storage.ErrHoldingNotFound) {
			return domain.Receipt{}, errors.Wrap(ErrNoSuchHolding, symbol)
		}
		if err != nil {
			return domain.Receipt{}, err
		}
		if holding.Quantity < quantity {
			return domain.Receipt{}, &InsufficientSharesError{Symbol: symbol, Requested: quantity, Owned: holding.Quantity}
		}

		newCash = account.Cash.Add(total)
		newQuantity = holding.Quantity - quantity
	default:
		return domain.Receipt{}, errors.Errorf("trade side must be BUY or SELL, got %s", side)
	}

	tx, err := domain.NewTransaction(uuid.New().String(), accountID, symbol, quantity, quote.Price, side, e.now())
	if err != nil {
		return domain.Receipt{}, errors.Wrap(err, "build transaction")
	}

	if err := e.store.Apply(ctx, storage.Mutation{
		AccountID:   accountID,
		PrevCash:    account.Cash,
		NewCash:     newCash,
		Symbol:      symbol,
		NewQuantity: newQuantity,
		Tx:          tx,
	}); err != nil {
		return domain.Receipt{}, err
	}

	return domain.Receipt{
		Transaction: tx,
		Name:        quote.Name,
		Total:       total,
		CashAfter:   newCash,
	}, nil
}

func tradeEvent(receipt domain.Receipt) events.TradeExecuted {
	tx := receipt.Transaction
	return events.TradeExecuted{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Symbol:        tx.Symbol,
		Side:          tx.Side.String(),
		Quantity:      tx.Quantity,
		Price:         tx.Price.String(),
		Total:         receipt.Total.String(),
		CashAfter:     receipt.CashAfter.String(),
		ExecutedAt:    tx.ExecutedAt,
	}
}
