// Package web exposes the engine over a JSON HTTP API. All domain
// decisions live in the engine; this layer only translates requests and
// typed failures.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/papertrade/brokerd/internal/domain"
	"github.com/papertrade/brokerd/internal/engine"
	"github.com/papertrade/brokerd/internal/services/quote"
	"github.com/papertrade/brokerd/internal/storage"
)

// Server serves the brokerage API.
type Server struct {
	addr         string
	engine       *engine.Engine
	store        storage.Store
	quotes       quote.Provider
	startingCash decimal.Decimal
	logger       *zap.Logger
}

// NewServer creates a server. Logger may be nil.
func NewServer(addr string, eng *engine.Engine, store storage.Store, quotes quote.Provider, startingCash decimal.Decimal, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Server{
		addr:         addr,
		engine:       eng,
		store:        store,
		quotes:       quotes,
		startingCash: startingCash,
		logger:       logger,
	}
}

// Handler returns the route table. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/accounts", s.handleCreateAccount)
	mux.HandleFunc("/quote", s.handleQuote)
	mux.HandleFunc("/trade", s.handleTrade)
	mux.HandleFunc("/portfolio", s.handlePortfolio)
	mux.HandleFunc("/history", s.handleHistory)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is
// cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createAccountRequest struct {
	ID string `json:"id"`
}

type accountResponse struct {
	AccountID string          `json:"account_id"`
	Cash      decimal.Decimal `json:"cash"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := domain.NewAccount(req.ID, s.startingCash)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.store.CreateAccount(r.Context(), account); err != nil {
		if errors.Is(err, storage.ErrAccountExists) {
			s.writeError(w, http.StatusConflict, "account already exists")
			return
		}
		s.logger.Error("create account failed", zap.String("account", req.ID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	s.writeJSON(w, http.StatusCreated, accountResponse{AccountID: account.ID, Cash: account.Cash})
}

type quoteResponse struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		s.writeError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	q, err := s.quotes.Lookup(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, quote.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "symbol not found")
			return
		}
		s.logger.Error("quote lookup failed", zap.String("symbol", symbol), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "quote service unavailable")
		return
	}

	s.writeJSON(w, http.StatusOK, quoteResponse{Symbol: q.Symbol, Name: q.Name, Price: q.Price})
}

type tradeRequest struct {
	AccountID string `json:"account_id"`
	Symbol    string `json:"symbol"`
	Quantity  int64  `json:"quantity"`
	Side      string `json:"side"`
}

type receiptResponse struct {
	TransactionID string          `json:"transaction_id"`
	AccountID     string          `json:"account_id"`
	Symbol        string          `json:"symbol"`
	Name          string          `json:"name,omitempty"`
	Side          domain.Side     `json:"side"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Total         decimal.Decimal `json:"total"`
	CashAfter     decimal.Decimal `json:"cash_after"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" || req.Symbol == "" {
		s.writeError(w, http.StatusBadRequest, "account_id and symbol are required")
		return
	}

	side, err := domain.ParseSide(req.Side)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Resolve the quote here; the engine trusts it as a fresh input.
	var quotePtr *domain.Quote
	q, err := s.quotes.Lookup(r.Context(), req.Symbol)
	switch {
	case err == nil:
		quotePtr = &q
	case errors.Is(err, quote.ErrNotFound):
		// leave nil, the engine reports SymbolNotFound in precondition order
	default:
		s.logger.Error("quote lookup failed", zap.String("symbol", req.Symbol), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "quote service unavailable")
		return
	}

	receipt, err := s.engine.Execute(r.Context(), req.AccountID, req.Symbol, req.Quantity, side, quotePtr)
	if err != nil {
		s.writeTradeError(w, req, err)
		return
	}

	tx := receipt.Transaction
	s.writeJSON(w, http.StatusCreated, receiptResponse{
		TransactionID: tx.ID,
		AccountID:     tx.AccountID,
		Symbol:        tx.Symbol,
		Name:          receipt.Name,
		Side:          tx.Side,
		Quantity:      tx.Quantity,
		Price:         tx.Price,
		Total:         receipt.Total,
		CashAfter:     receipt.CashAfter,
		ExecutedAt:    tx.ExecutedAt,
	})
}

func (s *Server) writeTradeError(w http.ResponseWriter, req tradeRequest, err error) {
	var (
		fundsErr  *engine.InsufficientFundsError
		sharesErr *engine.InsufficientSharesError
	)

	switch {
	case errors.Is(err, engine.ErrInvalidQuantity):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrSymbolNotFound):
		s.writeError(w, http.StatusNotFound, "symbol not found")
	case errors.Is(err, storage.ErrAccountNotFound):
		s.writeError(w, http.StatusNotFound, "account not found")
	case errors.As(err, &fundsErr):
		s.writeError(w, http.StatusUnprocessableEntity, fundsErr.Error())
	case errors.Is(err, engine.ErrNoSuchHolding):
		s.writeError(w, http.StatusUnprocessableEntity, "you do not own any shares of this symbol")
	case errors.As(err, &sharesErr):
		s.writeError(w, http.StatusUnprocessableEntity, sharesErr.Error())
	case errors.Is(err, engine.ErrConcurrencyConflict):
		s.writeError(w, http.StatusConflict, "trade conflicted with a concurrent operation, retry")
	default:
		s.logger.Error("trade failed",
			zap.String("account", req.AccountID),
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "trade failed")
	}
}

type positionResponse struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name,omitempty"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Value    decimal.Decimal `json:"value"`
}

type portfolioResponse struct {
	AccountID   string             `json:"account_id"`
	Positions   []positionResponse `json:"positions"`
	Cash        decimal.Decimal    `json:"cash"`
	StocksValue decimal.Decimal    `json:"stocks_value"`
	Total       decimal.Decimal    `json:"total"`
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		s.writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	view, err := s.engine.ValuePortfolio(r.Context(), accountID, s.quotes)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			s.writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.Error("portfolio valuation failed", zap.String("account", accountID), zap.Error(err))
		s.writeError(w, http.StatusBadGateway, "portfolio valuation failed")
		return
	}

	resp := portfolioResponse{
		AccountID:   view.AccountID,
		Positions:   make([]positionResponse, 0, len(view.Positions)),
		Cash:        view.Cash,
		StocksValue: view.StocksValue,
		Total:       view.Total,
	}
	for _, p := range view.Positions {
		resp.Positions = append(resp.Positions, positionResponse{
			Symbol:   p.Symbol,
			Name:     p.Name,
			Quantity: p.Quantity,
			Price:    p.Price,
			Value:    p.Value,
		})
	}

	s.writeJSON(w, http.StatusOK, resp)
}

type historyEntryResponse struct {
	TransactionID string          `json:"transaction_id"`
	Symbol        string          `json:"symbol"`
	Side          domain.Side     `json:"side"`
	Quantity      int64           `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	Total         decimal.Decimal `json:"total"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		s.writeError(w, http.StatusBadRequest, "account_id is required")
		return
	}

	txs, err := s.engine.History(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, storage.ErrAccountNotFound) {
			s.writeError(w, http.StatusNotFound, "account not found")
			return
		}
		s.logger.Error("history failed", zap.String("account", accountID), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "history failed")
		return
	}

	entries := make([]historyEntryResponse, 0, len(txs))
	for _, tx := range txs {
		entries = append(entries, historyEntryResponse{
			TransactionID: tx.ID,
			Symbol:        tx.Symbol,
			Side:          tx.Side,
			Quantity:      tx.Quantity,
			Price:         tx.Price,
			Total:         tx.Total(),
			ExecutedAt:    tx.ExecutedAt,
		})
	}

	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
