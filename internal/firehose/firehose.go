// Package firehose publishes broadcast chat events to Kafka for offline
// consumers (search indexing, audit). Delivery to clients never depends on
// it; a failed publish is logged and dropped.
package firehose

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	"chat-realtime/internal/realtime"
)

type Publisher struct {
	writer *kafka.Writer
}

// New creates a publisher for the given brokers and topic. Events for one
// channel hash to one partition so consumers see them in broadcast order.
func New(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			Async:        true,
		},
	}
}

// Publish writes one envelope to the topic, keyed by channel id.
func (p *Publisher) Publish(ctx context.Context, env *realtime.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope %s: %w", env.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatUint(uint64(env.ChannelID), 10)),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", env.Type, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
