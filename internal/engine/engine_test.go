package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/papertrade/brokerd/internal/domain"
	"github.com/papertrade/brokerd/internal/storage"
	"github.com/papertrade/brokerd/internal/storage/memory"
)

func newTestEngine(t *testing.T, cash string) (*Engine, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	account, err := domain.NewAccount("acc-1", decimal.RequireFromString(cash))
	require.NoError(t, err)
	require.NoError(t, store.CreateAccount(context.Background(), account))

	return New(store, nil, zap.NewNop()), store
}

func quoteFor(symbol, price string) *domain.Quote {
	return &domain.Quote{
		Symbol: symbol,
		Name:   symbol + " Inc.",
		Price:  decimal.RequireFromString(price),
	}
}

func TestExecuteBuy(t *testing.T) {
	eng, store := newTestEngine(t, "1000.00")
	ctx := context.Background()

	receipt, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideBuy, quoteFor("NFLX", "150.00"))
	require.NoError(t, err)

	assert.True(t, receipt.Total.Equal(decimal.RequireFromString("750.00")))
	assert.True(t, receipt.CashAfter.Equal(decimal.RequireFromString("250.00")))
	assert.Equal(t, domain.SideBuy, receipt.Transaction.Side)

	account, err := store.Account(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, account.Cash.Equal(decimal.RequireFromString("250.00")))

	holding, err := store.Holding(ctx, "acc-1", "NFLX")
	require.NoError(t, err)
	assert.Equal(t, int64(5), holding.Quantity)

	txs, err := store.Transactions(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.True(t, txs[0].Price.Equal(decimal.RequireFromString("150.00")))
}

func TestExecuteBuyInsufficientFundsLeavesStateUnchanged(t *testing.T) {
	eng, store := newTestEngine(t, "1000.00")
	ctx := context.Background()

	_, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideBuy, quoteFor("NFLX", "150.00"))
	require.NoError(t, err)

	// cost 1500.00 > cash 250.00
	_, err = eng.Execute(ctx, "acc-1", "NFLX", 10, domain.SideBuy, quoteFor("NFLX", "150.00"))

	var fundsErr *InsufficientFundsError
	require.ErrorAs(t, err, &fundsErr)
	assert.True(t, fundsErr.Cost.Equal(decimal.RequireFromString("1500.00")))
	assert.True(t, fundsErr.Available.Equal(decimal.RequireFromString("250.00")))

	account, err := store.Account(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, account.Cash.Equal(decimal.RequireFromString("250.00")))

	holding, err := store.Holding(ctx, "acc-1", "NFLX")
	require.NoError(t, err)
	assert.Equal(t, int64(5), holding.Quantity)

	txs, err := store.Transactions(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, txs, 1, "no log entry for a rejected trade")
}

func TestExecuteBuyExactCashAllowed(t *testing.T) {
	eng, store := newTestEngine(t, "750.00")
	ctx := context.Background()

	_, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideBuy, quoteFor("NFLX", "150.00"))
	require.NoError(t, err)

	account, err := store.Account(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, account.Cash.IsZero())
}

func TestExecuteSellAllDeletesHolding(t *testing.T) {
	eng, store := newTestEngine(t, "1000.00")
	ctx := context.Background()

	_, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideBuy, quoteFor("NFLX", "150.00"))
	require.NoError(t, err)

	receipt, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideSell, quoteFor("NFLX", "160.00"))
	require.NoError(t, err)
	assert.True(t, receipt.CashAfter.Equal(decimal.RequireFromString("1050.00")))

	_, err = store.Holding(ctx, "acc-1", "NFLX")
	assert.ErrorIs(t, err, storage.ErrHoldingNotFound, "sold-out holding row must be deleted")

	txs, err := store.Transactions(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestExecuteSellPartial(t *testing.T) {
	eng, store := newTestEngine(t, "1000.00")
	ctx := context.Background()

	_, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideBuy, quoteFor("NFLX", "150.00"))
	require.NoError(t, err)

	_, err = eng.Execute(ctx, "acc-1", "NFLX", 2, domain.SideSell, quoteFor("NFLX", "160.00"))
	require.NoError(t, err)

	holding, err := store.Holding(ctx, "acc-1", "NFLX")
	require.NoError(t, err)
	assert.Equal(t, int64(3), holding.Quantity)
}

func TestExecuteSellFailures(t *testing.T) {
	eng, _ := newTestEngine(t, "1000.00")
	ctx := context.Background()

	_, err := eng.Execute(ctx, "acc-1", "NFLX", 3, domain.SideBuy, quoteFor("NFLX", "150.00"))
	require.NoError(t, err)

	t.Run("never owned symbol", func(t *testing.T) {
		_, err := eng.Execute(ctx, "acc-1", "AAPL", 1, domain.SideSell, quoteFor("AAPL", "190.00"))
		assert.ErrorIs(t, err, ErrNoSuchHolding)
	})

	t.Run("more than owned", func(t *testing.T) {
		_, err := eng.Execute(ctx, "acc-1", "NFLX", 4, domain.SideSell, quoteFor("NFLX", "160.00"))

		var sharesErr *InsufficientSharesError
		require.ErrorAs(t, err, &sharesErr)
		assert.Equal(t, int64(4), sharesErr.Requested)
		assert.Equal(t, int64(3), sharesErr.Owned)
	})
}

func TestExecutePreconditionOrder(t *testing.T) {
	eng, _ := newTestEngine(t, "1000.00")
	ctx := context.Background()

	// invalid quantity wins even when the quote is missing too
	_, err := eng.Execute(ctx, "acc-1", "NFLX", 0, domain.SideBuy, nil)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = eng.Execute(ctx, "acc-1", "NFLX", -2, domain.SideSell, quoteFor("NFLX", "150.00"))
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = eng.Execute(ctx, "acc-1", "NOPE", 1, domain.SideBuy, nil)
	assert.ErrorIs(t, err, ErrSymbolNotFound)

	_, err = eng.Execute(ctx, "acc-1", "NOPE", 1, domain.SideBuy, &domain.Quote{Symbol: "NOPE"})
	assert.ErrorIs(t, err, ErrSymbolNotFound, "zero-price quote is not resolvable")
}

func TestExecuteUnknownAccount(t *testing.T) {
	eng, _ := newTestEngine(t, "1000.00")

	_, err := eng.Execute(context.Background(), "ghost", "NFLX", 1, domain.SideBuy, quoteFor("NFLX", "150.00"))
	assert.ErrorIs(t, err, storage.ErrAccountNotFound)
}

// conflictStore forces every Apply into the optimistic-conflict path.
type conflictStore struct {
	storage.Store
}

func (c conflictStore) Apply(ctx context.Context, m storage.Mutation) error {
	return storage.ErrConflict
}

func TestExecuteSurfacesConcurrencyConflict(t *testing.T) {
	store := memory.NewStore()
	account, err := domain.NewAccount("acc-1", decimal.NewFromInt(1000))
	require.NoError(t, err)
	require.NoError(t, store.CreateAccount(context.Background(), account))

	eng := New(conflictStore{store}, nil, zap.NewNop())

	_, err = eng.Execute(context.Background(), "acc-1", "NFLX", 1, domain.SideBuy, quoteFor("NFLX", "150.00"))
	assert.ErrorIs(t, err, ErrConcurrencyConflict)
}

func TestConcurrentSellsOfEntireHolding(t *testing.T) {
	eng, store := newTestEngine(t, "1000.00")
	ctx := context.Background()

	_, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideBuy, quoteFor("NFLX", "150.00"))
	require.NoError(t, err)

	const workers = 8

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		ownership int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideSell, quoteFor("NFLX", "160.00"))

			mu.Lock()
			defer mu.Unlock()

			var sharesErr *InsufficientSharesError
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrNoSuchHolding) || errors.As(err, &sharesErr):
				ownership++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes, "exactly one sell of the full holding may win")
	assert.Equal(t, workers-1, ownership)

	account, err := store.Account(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, account.Cash.Equal(decimal.RequireFromString("1050.00")))

	txs, err := store.Transactions(ctx, "acc-1")
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}
