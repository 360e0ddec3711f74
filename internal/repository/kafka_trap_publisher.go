package repository

import (
	"context"

	"TrapFlow/internal/domain/models"
	"TrapFlow/internal/domain/repository"
	pkgkafka "TrapFlow/pkg/kafka"
)

// KafkaTrapPublisher implements TrapPublisher for Kafka.
type KafkaTrapPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaTrapPublisher creates a Kafka trap-event publisher.
func NewKafkaTrapPublisher(producer *pkgkafka.Producer, topic string) repository.TrapPublisher {
	return &KafkaTrapPublisher{producer: producer, topic: topic}
}

func (p *KafkaTrapPublisher) Publish(ctx context.Context, e *models.TrapEvent) error {
	return p.producer.Publish(ctx, p.topic, []byte(e.Kind), map[string]interface{}{
		"timestamp":    e.Timestamp.Unix(),
		"kind":         e.Kind,
		"confidence":   e.Confidence,
		"price_change": e.PriceChange,
	})
}

func (p *KafkaTrapPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
