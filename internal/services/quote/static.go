package quote

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/papertrade/brokerd/internal/domain"
)

// StaticProvider serves quotes from a fixed in-memory table. Used for
// simulation runs without an external quote service and in tests.
type StaticProvider struct {
	mu     sync.RWMutex
	quotes map[string]domain.Quote
}

// NewStaticProvider creates a provider preloaded with the given quotes.
func NewStaticProvider(quotes ...domain.Quote) *StaticProvider {
	p := &StaticProvider{quotes: make(map[string]domain.Quote, len(quotes))}
	for _, q := range quotes {
		p.Set(q)
	}
	return p
}

// Set adds or replaces the quote for its symbol.
func (p *StaticProvider) Set(q domain.Quote) {
	symbol := domain.NormalizeSymbol(q.Symbol)
	q.Symbol = symbol

	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[symbol] = q
}

// Lookup returns the stored quote for the symbol.
func (p *StaticProvider) Lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	q, ok := p.quotes[domain.NormalizeSymbol(symbol)]
	if !ok {
		return domain.Quote{}, errors.Wrap(ErrNotFound, symbol)
	}

	return q, nil
}

var _ Provider = (*StaticProvider)(nil)
