package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

// EventEnvelope — то, что реально лежит в topic'е событий заказов:
// метаданные outbox-записи плюс непрозрачный payload события.
// cmd/dlq-reprocess восстанавливает events по этой же структуре.
type EventEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEventEnvelope оборачивает outbox-сообщение для публикации.
func NewEventEnvelope(msg domain.OutboxMessage) EventEnvelope {
	return EventEnvelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   time.Now().UTC(),
	}
}

// PartitionKey выбирает ключ партиционирования: id агрегата, чтобы события
// одного заказа сохраняли порядок; для сообщений без агрегата — id записи.
func PartitionKey(msg domain.OutboxMessage) string {
	if msg.AggregateID != "" {
		return msg.AggregateID
	}
	return msg.ID
}

// OutboxTopicPublisher доставляет outbox-сообщения в один Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
}

// NewOutboxPublisher создаёт publisher для transactional outbox.
// Пустой topic означает основной topic событий заказов.
func NewOutboxPublisher(producer *Producer, topic string) domain.OutboxPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{producer: producer, topic: topic}
}

func (p *OutboxTopicPublisher) Publish(msg domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return fmt.Errorf("kafka outbox publisher is not initialized")
	}

	encoded, err := json.Marshal(NewEventEnvelope(msg))
	if err != nil {
		return fmt.Errorf("encode event envelope: %w", err)
	}

	return p.producer.Send(p.topic, PartitionKey(msg), encoded)
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
