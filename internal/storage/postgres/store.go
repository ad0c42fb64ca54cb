// Package postgres provides the SQL-backed Store. Each Apply runs in a
// single database transaction; the cash update is guarded by the
// previously read balance so concurrent processes cannot interleave a
// read-check-write sequence.
package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/papertrade/brokerd/internal/domain"
	"github.com/papertrade/brokerd/internal/storage"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id   TEXT PRIMARY KEY,
	cash NUMERIC NOT NULL CHECK (cash >= 0)
);
CREATE TABLE IF NOT EXISTS holdings (
	account_id TEXT NOT NULL REFERENCES accounts (id),
	symbol     TEXT NOT NULL,
	quantity   BIGINT NOT NULL CHECK (quantity > 0),
	PRIMARY KEY (account_id, symbol)
);
CREATE TABLE IF NOT EXISTS transactions (
	seq         BIGSERIAL PRIMARY KEY,
	id          TEXT NOT NULL UNIQUE,
	account_id  TEXT NOT NULL REFERENCES accounts (id),
	symbol      TEXT NOT NULL,
	quantity    BIGINT NOT NULL CHECK (quantity > 0),
	price       NUMERIC NOT NULL CHECK (price > 0),
	side        TEXT NOT NULL,
	executed_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS transactions_account_idx ON transactions (account_id, seq);
`

// Store is a lib/pq implementation of storage.Store.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the three tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return errors.Wrap(err, "ensure schema")
}

// CreateAccount inserts the account row.
func (s *Store) CreateAccount(ctx context.Context, account domain.Account) error {
	const query = `INSERT INTO accounts (id, cash) VALUES ($1, $2)`

	_, err := s.db.ExecContext(ctx, query, account.ID, account.Cash.String())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errors.Wrap(storage.ErrAccountExists, account.ID)
		}
		return errors.Wrap(err, "insert account")
	}

	return nil
}

// Account returns the account by id.
func (s *Store) Account(ctx context.Context, id string) (domain.Account, error) {
	const query = `SELECT cash FROM accounts WHERE id = $1`

	var cashRaw string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&cashRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, errors.Wrap(storage.ErrAccountNotFound, id)
	}
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "select account")
	}

	cash, err := decimal.NewFromString(cashRaw)
	if err != nil {
		return domain.Account{}, errors.Wrap(err, "decode account cash")
	}

	return domain.Account{ID: id, Cash: cash}, nil
}

// Holding returns the account's row for one symbol.
func (s *Store) Holding(ctx context.Context, accountID, symbol string) (domain.Holding, error) {
	const query = `SELECT quantity FROM holdings WHERE account_id = $1 AND symbol = $2`

	var quantity int64
	err := s.db.QueryRowContext(ctx, query, accountID, symbol).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Holding{}, errors.Wrapf(storage.ErrHoldingNotFound, "%s/%s", accountID, symbol)
	}
	if err != nil {
		return domain.Holding{}, errors.Wrap(err, "select holding")
	}

	return domain.Holding{AccountID: accountID, Symbol: symbol, Quantity: quantity}, nil
}

// Holdings returns the account's rows sorted by symbol.
func (s *Store) Holdings(ctx context.Context, accountID string) ([]domain.Holding, error) {
	const query = `SELECT symbol, quantity FROM holdings WHERE account_id = $1 ORDER BY symbol`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "select holdings")
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		holding := domain.Holding{AccountID: accountID}
		if err := rows.Scan(&holding.Symbol, &holding.Quantity); err != nil {
			return nil, errors.Wrap(err, "scan holding")
		}
		holdings = append(holdings, holding)
	}

	return holdings, errors.Wrap(rows.Err(), "iterate holdings")
}

// Transactions returns the account's log in insertion order.
func (s *Store) Transactions(ctx context.Context, accountID string) ([]domain.Transaction, error) {
	const query = `SELECT id, symbol, quantity, price, side, executed_at
	FROM transactions WHERE account_id = $1 ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, errors.Wrap(err, "select transactions")
	}
	defer rows.Close()

	var txs []domain.Transaction
	for rows.Next() {
		var (
			tx       domain.Transaction
			priceRaw string
			sideRaw  string
		)
		tx.AccountID = accountID
		if err := rows.Scan(&tx.ID, &tx.Symbol, &tx.Quantity, &priceRaw, &sideRaw, &tx.ExecutedAt); err != nil {
			return nil, errors.Wrap(err, "scan transaction")
		}

		tx.Price, err = decimal.NewFromString(priceRaw)
		if err != nil {
			return nil, errors.Wrap(err, "decode transaction price")
		}
		tx.Side, err = domain.ParseSide(sideRaw)
		if err != nil {
			return nil, errors.Wrap(err, "decode transaction side")
		}
		tx.ExecutedAt = tx.ExecutedAt.UTC()

		txs = append(txs, tx)
	}

	return txs, errors.Wrap(rows.Err(), "iterate transactions")
}

// Apply commits the mutation in one SQL transaction. A guarded cash
// update that matches zero rows means another commit won the race.
func (s *Store) Apply(ctx context.Context, m storage.Mutation) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer func() {
		if err != nil {
			_ = dbTx.Rollback()
		}
	}()

	err = s.updateCash(ctx, dbTx, m)
	if err != nil {
		return err
	}

	err = s.updateHolding(ctx, dbTx, m)
	if err != nil {
		return err
	}

	const insertTx = `INSERT INTO transactions (id, account_id, symbol, quantity, price, side, executed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = dbTx.ExecContext(ctx, insertTx,
		m.Tx.ID, m.Tx.AccountID, m.Tx.Symbol, m.Tx.Quantity, m.Tx.Price.String(), m.Tx.Side.String(), m.Tx.ExecutedAt)
	if err != nil {
		return errors.Wrap(err, "insert transaction")
	}

	err = dbTx.Commit()
	return errors.Wrap(err, "commit")
}

func (s *Store) updateCash(ctx context.Context, dbTx *sql.Tx, m storage.Mutation) error {
	const query = `UPDATE accounts SET cash = $1 WHERE id = $2 AND cash = $3`

	res, err := dbTx.ExecContext(ctx, query, m.NewCash.String(), m.AccountID, m.PrevCash.String())
	if err != nil {
		return errors.Wrap(err, "update cash")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update cash result")
	}
	if affected == 0 {
		return errors.Wrap(storage.ErrConflict, m.AccountID)
	}

	return nil
}

func (s *Store) updateHolding(ctx context.Context, dbTx *sql.Tx, m storage.Mutation) error {
	if m.NewQuantity == 0 {
		const del = `DELETE FROM holdings WHERE account_id = $1 AND symbol = $2`
		_, err := dbTx.ExecContext(ctx, del, m.AccountID, m.Symbol)
		return errors.Wrap(err, "delete holding")
	}

	const upsert = `INSERT INTO holdings (account_id, symbol, quantity) VALUES ($1, $2, $3)
	ON CONFLICT (account_id, symbol) DO UPDATE SET quantity = EXCLUDED.quantity`
	_, err := dbTx.ExecContext(ctx, upsert, m.AccountID, m.Symbol, m.NewQuantity)
	return errors.Wrap(err, "upsert holding")
}

var _ storage.Store = (*Store)(nil)
