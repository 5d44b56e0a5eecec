package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wms-platform/freight-service/internal/domain"
	"github.com/wms-platform/freight-service/pkg/kafka"
)

const eventSource = "freight-service"

// producer is the slice of the Kafka producer the publisher needs.
type producer interface {
	PublishEvent(ctx context.Context, topic string, event *kafka.Envelope) error
	PublishBatch(ctx context.Context, topic string, events []*kafka.Envelope) error
}

// KafkaEventPublisher publishes domain events to the freight events topic,
// keyed by session so per-session ordering is preserved.
type KafkaEventPublisher struct {
	producer producer
	topic    string
}

// NewKafkaEventPublisher creates a publisher on top of a configured producer.
func NewKafkaEventPublisher(p producer, topic string) *KafkaEventPublisher {
	if topic == "" {
		topic = kafka.Topics.FreightEvents
	}
	return &KafkaEventPublisher{producer: p, topic: topic}
}

// Publish sends a single domain event.
func (p *KafkaEventPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	envelope, err := toEnvelope(event)
	if err != nil {
		return err
	}
	return p.producer.PublishEvent(ctx, p.topic, envelope)
}

// PublishAll sends events as one batch write.
func (p *KafkaEventPublisher) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}

	envelopes := make([]*kafka.Envelope, 0, len(events))
	for _, event := range events {
		envelope, err := toEnvelope(event)
		if err != nil {
			return err
		}
		envelopes = append(envelopes, envelope)
	}
	return p.producer.PublishBatch(ctx, p.topic, envelopes)
}

func toEnvelope(event domain.DomainEvent) (*kafka.Envelope, error) {
	envelope, err := kafka.NewEnvelope(event.EventType(), eventSource, eventSubject(event), event.OccurredAt(), event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event.EventType(), err)
	}
	return envelope, nil
}

// eventSubject extracts the session id every freight event carries.
func eventSubject(event domain.DomainEvent) string {
	data, err := json.Marshal(event)
	if err != nil {
		return ""
	}
	var key struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.Unmarshal(data, &key); err != nil {
		return ""
	}
	return key.SessionID
}
