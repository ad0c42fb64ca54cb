package engine

import (
	"context"
	"sort"

	"github.com/papertrade/brokerd/internal/domain"
)

// History returns the account's executed trades, most recent first.
// Trades with equal timestamps keep their insertion order. An account
// that never traded gets an empty, non-nil slice.
func (e *Engine) History(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	if _, err := e.store.Account(ctx, accountID); err != nil {
		return nil, err
	}

	txs, err := e.store.Transactions(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}

	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].ExecutedAt.After(txs[j].ExecutedAt)
	})

	return txs, nil
}
