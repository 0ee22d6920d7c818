package adapters

import (
	"context"

	"bullion/internal/compliance"
	"bullion/internal/platform/kafka"
)

type producer interface {
	Produce(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaRegulator sends rendered regulator reports to the outbound exchange
// topic, keyed by operation number.
type KafkaRegulator struct {
	producer producer
	topic    string
}

func NewKafkaRegulator(p producer, topic string) *KafkaRegulator {
	return &KafkaRegulator{producer: p, topic: topic}
}

func (k *KafkaRegulator) Publish(ctx context.Context, report *compliance.GoldReport, document []byte) error {
	return k.producer.Produce(ctx, kafka.Message{
		Topic: k.topic,
		Key:   []byte(report.OperationNumber),
		Value: document,
		Headers: map[string]string{
			"content-type": "application/xml",
			"report":       "ComunicazioneOro",
			"metal":        report.Metal,
		},
	})
}
