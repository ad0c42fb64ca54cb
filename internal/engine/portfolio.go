package engine

import (
	"context"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/papertrade/brokerd/internal/domain"
	"github.com/papertrade/brokerd/internal/services/quote"
)

// ValuePortfolio values every holding of the account at current prices
// and sums with cash. A failed lookup for any held symbol fails the
// whole valuation: a partial view would silently mislead the total.
func (e *Engine) ValuePortfolio(ctx context.Context, accountID string, provider quote.Provider) (domain.PortfolioView, error) {
	account, err := e.store.Account(ctx, accountID)
	if err != nil {
		return domain.PortfolioView{}, err
	}

	holdings, err := e.store.Holdings(ctx, accountID)
	if err != nil {
		return domain.PortfolioView{}, err
	}

	view := domain.PortfolioView{
		AccountID: accountID,
		Positions: make([]domain.PortfolioPosition, 0, len(holdings)),
		Cash:      account.Cash,
	}

	stocks := decimal.Zero
	for _, holding := range holdings {
		q, err := provider.Lookup(ctx, holding.Symbol)
		if err != nil {
			return domain.PortfolioView{}, errors.Wrapf(err, "value holding %s", holding.Symbol)
		}

		value := holding.Value(q.Price)
		view.Positions = append(view.Positions, domain.PortfolioPosition{
			Symbol:   holding.Symbol,
			Name:     q.Name,
			Quantity: holding.Quantity,
			Price:    q.Price,
			Value:    value,
		})
		stocks = stocks.Add(value)
	}

	view.StocksValue = stocks
	view.Total = account.Cash.Add(stocks)
	return view, nil
}
