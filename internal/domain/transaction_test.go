package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTransaction(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 30, 15, 987654321, time.FixedZone("CET", 3600))

	tests := []struct {
		name     string
		quantity int64
		price    decimal.Decimal
		side     Side
		wantErr  bool
	}{
		{name: "valid buy", quantity: 5, price: decimal.NewFromInt(150), side: SideBuy},
		{name: "valid sell", quantity: 1, price: decimal.RequireFromString("0.01"), side: SideSell},
		{name: "zero quantity", quantity: 0, price: decimal.NewFromInt(150), side: SideBuy, wantErr: true},
		{name: "negative quantity", quantity: -3, price: decimal.NewFromInt(150), side: SideSell, wantErr: true},
		{name: "zero price", quantity: 5, price: decimal.Zero, side: SideBuy, wantErr: true},
		{name: "negative price", quantity: 5, price: decimal.NewFromInt(-1), side: SideBuy, wantErr: true},
		{name: "unknown side", quantity: 5, price: decimal.NewFromInt(150), side: SideUnknown, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := NewTransaction("tx-1", "acc-1", "nflx", tt.quantity, tt.price, tt.side, now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "NFLX", tx.Symbol, "symbol should be normalized")
			assert.Equal(t, time.UTC, tx.ExecutedAt.Location())
			assert.Zero(t, tx.ExecutedAt.Nanosecond(), "timestamps are second precision")
		})
	}
}

func TestTransactionTotal(t *testing.T) {
	tx, err := NewTransaction("tx-1", "acc-1", "AAPL", 5, decimal.RequireFromString("150.00"), SideBuy, time.Now())
	require.NoError(t, err)

	assert.True(t, tx.Total().Equal(decimal.RequireFromString("750.00")))
}

func TestParseSide(t *testing.T) {
	tests := []struct {
		raw     string
		want    Side
		wantErr bool
	}{
		{raw: "buy", want: SideBuy},
		{raw: "BUY", want: SideBuy},
		{raw: " sell ", want: SideSell},
		{raw: "hold", wantErr: true},
		{raw: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			side, err := ParseSide(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, side)
		})
	}
}

func TestSideJSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(SideSell)
	require.NoError(t, err)
	assert.Equal(t, `"SELL"`, string(data))

	var side Side
	require.NoError(t, json.Unmarshal(data, &side))
	assert.Equal(t, SideSell, side)
}

func TestNewHolding(t *testing.T) {
	_, err := NewHolding("acc-1", "AAPL", 0)
	require.Error(t, err, "zero-quantity holdings must not exist")

	holding, err := NewHolding("acc-1", "aapl", 3)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", holding.Symbol)
	assert.True(t, holding.Value(decimal.NewFromInt(10)).Equal(decimal.NewFromInt(30)))
}

func TestNewAccount(t *testing.T) {
	_, err := NewAccount("", decimal.NewFromInt(100))
	require.Error(t, err)

	_, err = NewAccount("acc-1", decimal.NewFromInt(-1))
	require.Error(t, err)

	account, err := NewAccount("acc-1", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, account.Cash.IsZero())
}

func TestQuoteValidate(t *testing.T) {
	assert.Error(t, Quote{Symbol: "", Price: decimal.NewFromInt(10)}.Validate())
	assert.Error(t, Quote{Symbol: "AAPL", Price: decimal.Zero}.Validate())
	assert.NoError(t, Quote{Symbol: "AAPL", Name: "Apple Inc.", Price: decimal.NewFromInt(10)}.Validate())
}
