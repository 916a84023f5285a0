package repository

import (
	"context"

	"StockPulse/internal/domain/models"
	domrepo "StockPulse/internal/domain/repository"
	pkgkafka "StockPulse/pkg/kafka"
)

// KafkaFragmentPublisher forwards fragments keyed by request id, so one request's
// fragments land on one partition in emission order.
type KafkaFragmentPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaFragmentPublisher(producer *pkgkafka.Producer, topic string) domrepo.FragmentPublisher {
	return &KafkaFragmentPublisher{producer: producer, topic: topic}
}

func (p *KafkaFragmentPublisher) PublishFragment(ctx context.Context, requestID string, f models.Fragment) error {
	return p.producer.Send(ctx, p.topic, pkgkafka.Record{
		Key:   requestID,
		Value: f,
		Headers: map[string]string{
			pkgkafka.TraceHeader: requestID,
			"kind":     string(f.Kind),
		},
	})
}

// Close is a no-op; the producer is shared and closed by its owner.
func (p *KafkaFragmentPublisher) Close() error {
	return nil
}
