// Package journal persists every committed state change in an
// append-only WAL so an in-memory deployment can rebuild its full state
// after a restart.
package journal

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/gowal"

	"github.com/papertrade/brokerd/internal/domain"
)

const (
	defaultDir       = "./wal/trades"
	segmentThreshold = 1000
	maxSegments      = 100

	// KindAccount records an account creation with its opening cash.
	KindAccount = "account"
	// KindTrade records a committed trade with its resulting balances.
	KindTrade = "trade"
)

// Record is one durable journal entry. Trade records carry the resulting
// cash and holding quantity so replay alone rebuilds full state.
type Record struct {
	Kind        string `json:"kind"`
	AccountID   string `json:"account_id"`
	Cash        string `json:"cash"`
	TxID        string `json:"tx_id,omitempty"`
	Symbol      string `json:"symbol,omitempty"`
	Quantity    int64  `json:"quantity,omitempty"`
	NewQuantity int64  `json:"new_quantity,omitempty"`
	Price       string `json:"price,omitempty"`
	Side        string `json:"side,omitempty"`
	ExecutedAt  int64  `json:"executed_at,omitempty"`
}

// NewAccountRecord builds the journal entry for a created account.
func NewAccountRecord(account domain.Account) Record {
	return Record{
		Kind:      KindAccount,
		AccountID: account.ID,
		Cash:      account.Cash.String(),
	}
}

// NewTradeRecord builds the journal entry for a committed trade.
func NewTradeRecord(tx domain.Transaction, newCash decimal.Decimal, newQuantity int64) Record {
	return Record{
		Kind:        KindTrade,
		AccountID:   tx.AccountID,
		Cash:        newCash.String(),
		TxID:        tx.ID,
		Symbol:      tx.Symbol,
		Quantity:    tx.Quantity,
		NewQuantity: newQuantity,
		Price:       tx.Price.String(),
		Side:        tx.Side.String(),
		ExecutedAt:  tx.ExecutedAt.Unix(),
	}
}

// Transaction reconstructs the logged trade from a trade record.
func (r Record) Transaction() (domain.Transaction, error) {
	if r.Kind != KindTrade {
		return domain.Transaction{}, errors.Errorf("record %s is not a trade", r.Kind)
	}

	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return domain.Transaction{}, errors.Wrap(err, "decode journal price")
	}

	side, err := domain.ParseSide(r.Side)
	if err != nil {
		return domain.Transaction{}, errors.Wrap(err, "decode journal side")
	}

	return domain.NewTransaction(r.TxID, r.AccountID, r.Symbol, r.Quantity, price, side, time.Unix(r.ExecutedAt, 0))
}

// NewCash returns the post-commit cash balance carried by the record.
func (r Record) NewCash() (decimal.Decimal, error) {
	cash, err := decimal.NewFromString(r.Cash)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "decode journal cash")
	}

	return cash, nil
}

// Journal is a gowal-backed append-only trade journal.
type Journal struct {
	wal *gowal.Wal
	mu  sync.Mutex
}

// Open initializes the journal under the provided directory.
func Open(dir string) (*Journal, error) {
	if dir == "" {
		dir = defaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "trades_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init trade journal WAL")
	}

	return &Journal{wal: wal}, nil
}

// Append durably writes the record before the caller mutates memory state.
func (j *Journal) Append(rec Record) error {
	if j == nil || j.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal journal record")
	}

	key := fmt.Sprintf("%s_%s", rec.Kind, rec.AccountID)

	j.mu.Lock()
	defer j.mu.Unlock()

	nextIndex := j.wal.CurrentIndex() + 1
	return j.wal.Write(nextIndex, key, payload)
}

// Replay feeds every journal record, oldest first, into apply.
func (j *Journal) Replay(apply func(Record) error) error {
	if j == nil || j.wal == nil {
		return errors.New("trade journal is not initialized")
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	for msg := range j.wal.Iterator() {
		var rec Record
		if err := json.Unmarshal(msg.Value, &rec); err != nil {
			return errors.Wrap(err, "decode journal record")
		}
		if err := apply(rec); err != nil {
			return err
		}
	}

	return nil
}

// Close closes the underlying WAL.
func (j *Journal) Close() error {
	if j == nil || j.wal == nil {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	return j.wal.Close()
}
