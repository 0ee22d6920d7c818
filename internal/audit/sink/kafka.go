// Package sink holds audit sinks backed by external transports.
package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"bullion/internal/audit"
	"bullion/internal/platform/kafka"
)

type producer interface {
	Produce(ctx context.Context, msgs ...kafka.Message) error
}

// Kafka publishes audit events as JSON keyed by subject so events of one
// contract, client or operation stay ordered within a partition.
type Kafka struct {
	producer producer
	topic    string
}

func NewKafka(p producer, topic string) *Kafka {
	return &Kafka{producer: p, topic: topic}
}

func (k *Kafka) Publish(ctx context.Context, events []audit.Event) error {
	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode audit event %s: %w", e.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Topic:   k.topic,
			Key:     []byte(e.Subject),
			Value:   value,
			Headers: map[string]string{"action": string(e.Action), "event_id": e.ID},
		})
	}
	return k.producer.Produce(ctx, msgs...)
}
