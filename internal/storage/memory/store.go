// Package memory provides the in-memory Store used for simulation and
// tests. With a journal attached it survives restarts: every commit is
// appended to the WAL before memory changes, and NewStoreWithJournal
// replays the WAL on startup.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/papertrade/brokerd/internal/domain"
	"github.com/papertrade/brokerd/internal/storage"
	"github.com/papertrade/brokerd/internal/storage/journal"
)

// Store keeps all three records in maps guarded by one mutex, so Apply
// is trivially atomic with respect to readers.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]domain.Account
	holdings map[string]map[string]domain.Holding
	log      map[string][]domain.Transaction
	journal  *journal.Journal
}

// NewStore creates an empty, non-durable store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]domain.Account),
		holdings: make(map[string]map[string]domain.Holding),
		log:      make(map[string][]domain.Transaction),
	}
}

// NewStoreWithJournal creates a store backed by the journal and rebuilds
// state from it.
func NewStoreWithJournal(j *journal.Journal) (*Store, error) {
	s := NewStore()
	s.journal = j

	if j == nil {
		return s, nil
	}

	if err := j.Replay(s.replay); err != nil {
		return nil, errors.Wrap(err, "replay trade journal")
	}

	return s, nil
}

func (s *Store) replay(rec journal.Record) error {
	cash, err := rec.NewCash()
	if err != nil {
		return err
	}

	switch rec.Kind {
	case journal.KindAccount:
		s.accounts[rec.AccountID] = domain.Account{ID: rec.AccountID, Cash: cash}
	case journal.KindTrade:
		account, ok := s.accounts[rec.AccountID]
		if !ok {
			return errors.Errorf("journal trade for unknown account %s", rec.AccountID)
		}

		tx, err := rec.Transaction()
		if err != nil {
			return err
		}

		account.Cash = cash
		s.accounts[rec.AccountID] = account
		s.setHolding(rec.AccountID, rec.Symbol, rec.NewQuantity)
		s.log[rec.AccountID] = append(s.log[rec.AccountID], tx)
	default:
		return errors.Errorf("unknown journal record kind %q", rec.Kind)
	}

	return nil
}

func (s *Store) setHolding(accountID, symbol string, quantity int64) {
	rows := s.holdings[accountID]
	if quantity == 0 {
		delete(rows, symbol)
		if len(rows) == 0 {
			delete(s.holdings, accountID)
		}
		return
	}

	if rows == nil {
		rows = make(map[string]domain.Holding)
		s.holdings[accountID] = rows
	}
	rows[symbol] = domain.Holding{AccountID: accountID, Symbol: symbol, Quantity: quantity}
}

// CreateAccount registers a new account. The journal entry is written
// before memory changes so a torn process never runs ahead of the WAL.
func (s *Store) CreateAccount(ctx context.Context, account domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return errors.Wrap(storage.ErrAccountExists, account.ID)
	}

	if s.journal != nil {
		if err := s.journal.Append(journal.NewAccountRecord(account)); err != nil {
			return errors.Wrap(err, "journal account")
		}
	}

	s.accounts[account.ID] = account
	return nil
}

// Account returns the account by id.
func (s *Store) Account(ctx context.Context, id string) (domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return domain.Account{}, errors.Wrap(storage.ErrAccountNotFound, id)
	}

	return account, nil
}

// Holding returns the account's row for one symbol.
func (s *Store) Holding(ctx context.Context, accountID, symbol string) (domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	holding, ok := s.holdings[accountID][symbol]
	if !ok {
		return domain.Holding{}, errors.Wrapf(storage.ErrHoldingNotFound, "%s/%s", accountID, symbol)
	}

	return holding, nil
}

// Holdings returns the account's rows sorted by symbol.
func (s *Store) Holdings(ctx context.Context, accountID string) ([]domain.Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]domain.Holding, 0, len(s.holdings[accountID]))
	for _, holding := range s.holdings[accountID] {
		rows = append(rows, holding)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Symbol < rows[j].Symbol })
	return rows, nil
}

// Transactions returns a copy of the account's log in insertion order.
func (s *Store) Transactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.log[accountID]
	copied := make([]domain.Transaction, len(log))
	copy(copied, log)
	return copied, nil
}

// Apply commits one ledger+holding+log transition under the store lock.
func (s *Store) Apply(ctx context.Context, m storage.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[m.AccountID]
	if !ok {
		return errors.Wrap(storage.ErrAccountNotFound, m.AccountID)
	}
	if !account.Cash.Equal(m.PrevCash) {
		return errors.Wrap(storage.ErrConflict, m.AccountID)
	}
	if m.NewCash.IsNegative() {
		return errors.Errorf("mutation would drive account %s cash negative", m.AccountID)
	}

	if s.journal != nil {
		if err := s.journal.Append(journal.NewTradeRecord(m.Tx, m.NewCash, m.NewQuantity)); err != nil {
			return errors.Wrap(err, "journal trade")
		}
	}

	account.Cash = m.NewCash
	s.accounts[m.AccountID] = account
	s.setHolding(m.AccountID, m.Symbol, m.NewQuantity)
	s.log[m.AccountID] = append(s.log[m.AccountID], m.Tx)

	return nil
}

var _ storage.Store = (*Store)(nil)
