package domain

import "github.com/shopspring/decimal"

// Receipt summarizes one applied trade: the logged transaction plus the
// values a caller needs to display the outcome.
type Receipt struct {
	Transaction Transaction
	Name        string
	Total       decimal.Decimal
	CashAfter   decimal.Decimal
}

// PortfolioPosition is one holding valued at the current market price.
type PortfolioPosition struct {
	Symbol   string
	Name     string
	Quantity int64
	Price    decimal.Decimal
	Value    decimal.Decimal
}

// PortfolioView is the full valued portfolio of one account.
type PortfolioView struct {
	AccountID   string
	Positions   []PortfolioPosition
	Cash        decimal.Decimal
	StocksValue decimal.Decimal
	Total       decimal.Decimal
}
