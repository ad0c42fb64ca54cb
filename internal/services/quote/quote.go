// Package quote defines the price-lookup port of the engine and its
// implementations.
package quote

import (
	"context"

	"github.com/pkg/errors"

	"github.com/papertrade/brokerd/internal/domain"
)

// ErrNotFound is returned when the provider cannot resolve the symbol.
var ErrNotFound = errors.New("symbol not found")

// Provider resolves the current price and display name for one symbol.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (domain.Quote, error)
}
