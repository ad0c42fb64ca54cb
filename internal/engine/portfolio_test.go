package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertrade/brokerd/internal/domain"
	"github.com/papertrade/brokerd/internal/services/quote"
)

func TestValuePortfolio(t *testing.T) {
	eng, _ := newTestEngine(t, "10000.00")
	ctx := context.Background()

	_, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideBuy, quoteFor("NFLX", "150.00"))
	require.NoError(t, err)
	_, err = eng.Execute(ctx, "acc-1", "AAPL", 2, domain.SideBuy, quoteFor("AAPL", "190.00"))
	require.NoError(t, err)

	// cash left: 10000 - 750 - 380 = 8870; value at current prices below
	provider := quote.NewStaticProvider(
		domain.Quote{Symbol: "NFLX", Name: "Netflix Inc.", Price: decimal.RequireFromString("160.00")},
		domain.Quote{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.RequireFromString("200.00")},
	)

	view, err := eng.ValuePortfolio(ctx, "acc-1", provider)
	require.NoError(t, err)

	require.Len(t, view.Positions, 2)
	assert.Equal(t, "AAPL", view.Positions[0].Symbol)
	assert.True(t, view.Positions[0].Value.Equal(decimal.RequireFromString("400.00")))
	assert.Equal(t, "NFLX", view.Positions[1].Symbol)
	assert.True(t, view.Positions[1].Value.Equal(decimal.RequireFromString("800.00")))

	assert.True(t, view.Cash.Equal(decimal.RequireFromString("8870.00")))
	assert.True(t, view.StocksValue.Equal(decimal.RequireFromString("1200.00")))
	assert.True(t, view.Total.Equal(decimal.RequireFromString("10070.00")))
}

func TestValuePortfolioFailsWholeOnMissingQuote(t *testing.T) {
	eng, _ := newTestEngine(t, "10000.00")
	ctx := context.Background()

	_, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideBuy, quoteFor("NFLX", "150.00"))
	require.NoError(t, err)
	_, err = eng.Execute(ctx, "acc-1", "AAPL", 2, domain.SideBuy, quoteFor("AAPL", "190.00"))
	require.NoError(t, err)

	// only one of the two held symbols resolves
	provider := quote.NewStaticProvider(
		domain.Quote{Symbol: "NFLX", Name: "Netflix Inc.", Price: decimal.RequireFromString("160.00")},
	)

	_, err = eng.ValuePortfolio(ctx, "acc-1", provider)
	assert.ErrorIs(t, err, quote.ErrNotFound, "no partial portfolio view")
}

func TestReadPathsDoNotMutate(t *testing.T) {
	eng, store := newTestEngine(t, "1000.00")
	ctx := context.Background()

	_, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideBuy, quoteFor("NFLX", "150.00"))
	require.NoError(t, err)

	provider := quote.NewStaticProvider(
		domain.Quote{Symbol: "NFLX", Name: "Netflix Inc.", Price: decimal.RequireFromString("160.00")},
	)

	first, err := eng.ValuePortfolio(ctx, "acc-1", provider)
	require.NoError(t, err)
	second, err := eng.ValuePortfolio(ctx, "acc-1", provider)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	hist1, err := eng.History(ctx, "acc-1")
	require.NoError(t, err)
	hist2, err := eng.History(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, hist1, hist2)

	account, err := store.Account(ctx, "acc-1")
	require.NoError(t, err)
	assert.True(t, account.Cash.Equal(decimal.RequireFromString("250.00")))
}

func TestHistoryOrdering(t *testing.T) {
	eng, _ := newTestEngine(t, "10000.00")
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := base
	eng.now = func() time.Time { return clock }

	_, err := eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideBuy, quoteFor("NFLX", "150.00"))
	require.NoError(t, err)

	clock = base.Add(time.Minute)
	_, err = eng.Execute(ctx, "acc-1", "NFLX", 5, domain.SideSell, quoteFor("NFLX", "160.00"))
	require.NoError(t, err)

	// same second as the sell: tie keeps insertion order
	_, err = eng.Execute(ctx, "acc-1", "AAPL", 1, domain.SideBuy, quoteFor("AAPL", "190.00"))
	require.NoError(t, err)

	history, err := eng.History(ctx, "acc-1")
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, domain.SideSell, history[0].Side)
	assert.Equal(t, "NFLX", history[0].Symbol)
	assert.Equal(t, "AAPL", history[1].Symbol)
	assert.Equal(t, domain.SideBuy, history[2].Side)
	assert.Equal(t, base, history[2].ExecutedAt)
}

func TestHistoryEmptyForNewAccount(t *testing.T) {
	eng, _ := newTestEngine(t, "1000.00")

	history, err := eng.History(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}
