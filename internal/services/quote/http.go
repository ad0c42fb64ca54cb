package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/papertrade/brokerd/internal/domain"
)

const defaultTimeout = 5 * time.Second

// HTTPProvider fetches quotes from an external HTTP quote service.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPProvider creates a provider against the given base URL.
// The api key, when set, is sent as the token query parameter.
func NewHTTPProvider(baseURL, apiKey string, timeout time.Duration) *HTTPProvider {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &HTTPProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type quoteResponse struct {
	Symbol string      `json:"symbol"`
	Name   string      `json:"name"`
	Price  json.Number `json:"price"`
}

// Lookup resolves the symbol via GET {base}/v1/quote.
func (p *HTTPProvider) Lookup(ctx context.Context, symbol string) (domain.Quote, error) {
	symbol = domain.NormalizeSymbol(symbol)
	if symbol == "" {
		return domain.Quote{}, errors.Wrap(ErrNotFound, "empty symbol")
	}

	params := url.Values{"symbol": {symbol}}
	if p.apiKey != "" {
		params.Set("token", p.apiKey)
	}
	endpoint := fmt.Sprintf("%s/v1/quote?%s", p.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.Quote{}, errors.Wrap(err, "build quote request")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.Quote{}, errors.Wrapf(err, "fetch quote for %s", symbol)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.Quote{}, errors.Wrap(ErrNotFound, symbol)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.Quote{}, errors.Errorf("quote service returned status %d for %s", resp.StatusCode, symbol)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.Quote{}, errors.Wrap(err, "decode quote response")
	}

	price, err := decimal.NewFromString(body.Price.String())
	if err != nil {
		return domain.Quote{}, errors.Wrapf(err, "decode quote price %q", body.Price)
	}

	quote := domain.Quote{
		Symbol: domain.NormalizeSymbol(body.Symbol),
		Name:   body.Name,
		Price:  price,
	}
	if quote.Symbol == "" {
		quote.Symbol = symbol
	}
	if err := quote.Validate(); err != nil {
		return domain.Quote{}, errors.Wrap(err, "invalid quote from service")
	}

	return quote, nil
}

var _ Provider = (*HTTPProvider)(nil)
