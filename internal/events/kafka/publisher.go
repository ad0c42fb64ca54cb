// Package kafka publishes trade events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"

	"github.com/papertrade/brokerd/internal/events"
)

const defaultTopic = "trade_executed"

// Publisher writes TradeExecuted events as JSON messages keyed by
// account id, so one account's trades stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) *Publisher {
	if topic == "" {
		topic = defaultTopic
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.Hash{},
		},
	}
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, event events.TradeExecuted) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal trade event")
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.AccountID),
		Value: data,
	})
	return errors.Wrap(err, "publish trade event")
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ events.Publisher = (*Publisher)(nil)
