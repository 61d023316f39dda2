package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
// Ключ сообщения — идентификатор заказа, поэтому события одного заказа
// попадают в одну партицию и читаются по порядку.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	headers  func() map[string]string
}

// NewOutboxPublisher создаёт Kafka-паблишер для transactional outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
	}
}

// NewDLQPublisher создаёт паблишер в Dead Letter Queue. Событие заказа уходит
// без изменений, а исходный топик, время и текст ошибки передаются заголовками.
func NewDLQPublisher(producer *Producer, originalTopic string) *OutboxTopicPublisher {
	if originalTopic == "" {
		originalTopic = TopicOrderEvents
	}
	publisher := NewOutboxPublisher(producer, TopicDeadLetterQueue)
	publisher.headers = func() map[string]string {
		return map[string]string{
			HeaderOriginalTopic: originalTopic,
			HeaderFailedAt:      time.Now().UTC().Format(time.RFC3339Nano),
		}
	}
	return publisher
}

func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	envelope := OrderEventEnvelope{
		ID:            event.ID,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		EventType:     event.EventType,
		Payload:       json.RawMessage(event.Payload),
		PublishedAt:   time.Now().UTC(),
	}

	headers := map[string]string{HeaderEventType: event.EventType}
	if p.headers != nil {
		for k, v := range p.headers() {
			headers[k] = v
		}
		if event.LastError != "" {
			headers[HeaderPublishError] = event.LastError
		}
	}

	return p.producer.PublishEvent(ctx, p.topic, key, envelope, headers)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
