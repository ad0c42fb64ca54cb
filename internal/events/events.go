// Package events defines the domain events emitted after committed
// trades and the publisher port they travel through.
package events

import (
	"context"
	"time"
)

// TradeExecuted is published after a trade commits. String money fields
// avoid precision issues for downstream consumers.
type TradeExecuted struct {
	TransactionID string    `json:"transaction_id"`
	AccountID     string    `json:"account_id"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Quantity      int64     `json:"quantity"`
	Price         string    `json:"price"`
	Total         string    `json:"total"`
	CashAfter     string    `json:"cash_after"`
	ExecutedAt    time.Time `json:"executed_at"`
}

// Publisher delivers trade events to an external sink.
type Publisher interface {
	Publish(ctx context.Context, event TradeExecuted) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, TradeExecuted) error { return nil }
