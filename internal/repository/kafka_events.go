package repository

import (
	"context"
	"fmt"

	"StockWatch/internal/domain/models"
	drepo "StockWatch/internal/domain/repository"
	"StockWatch/pkg/kafka"
)

// Topic suffixes under the configured base topic.
const (
	alertsSuffix    = ".alerts"
	summariesSuffix = ".summaries"
)

// KafkaEvents publishes alert and summary events, keyed by ticker so that
// events for one instrument stay ordered within a partition. It also
// satisfies logger.Publisher for aggregated log batches.
type KafkaEvents struct {
	producer *kafka.Producer
	topic    string
}

func NewKafkaEvents(producer *kafka.Producer, topic string) *KafkaEvents {
	return &KafkaEvents{producer: producer, topic: topic}
}

func (p *KafkaEvents) PublishAlert(ctx context.Context, ev *models.AlertEvent) error {
	if err := p.producer.Publish(ctx, p.topic+alertsSuffix, []byte(ev.Ticker), ev); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

func (p *KafkaEvents) PublishSummary(ctx context.Context, s *models.RunSummary) error {
	if err := p.producer.Publish(ctx, p.topic+summariesSuffix, []byte(s.Job), s); err != nil {
		return fmt.Errorf("publish summary: %w", err)
	}
	return nil
}

// PublishMessage implements logger.Publisher for aggregated error batches.
func (p *KafkaEvents) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.producer.Publish(ctx, topic, nil, payload)
}

func (p *KafkaEvents) Close() error {
	return p.producer.Close()
}

// NoopEvents drops events when no broker is configured.
type NoopEvents struct{}

func NewNoopEvents() drepo.EventPublisher { return NoopEvents{} }

func (NoopEvents) PublishAlert(ctx context.Context, ev *models.AlertEvent) error { return nil }

func (NoopEvents) PublishSummary(ctx context.Context, s *models.RunSummary) error { return nil }

func (NoopEvents) Close() error { return nil }
