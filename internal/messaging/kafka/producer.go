package kafka

import (
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// SyncConfig возвращает конфигурацию синхронного продьюсера событий продаж.
// Идемпотентная публикация с acks от всех in-sync реплик: outbox worker
// повторяет отправку, и настройки не должны порождать дублей в topic'е.
func SyncConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1 // требование идемпотентного продьюсера
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Return.Successes = true
	cfg.Producer.Compression = sarama.CompressionSnappy
	return cfg
}

// Producer — синхронный Kafka-продьюсер событий заказов.
// Единственная операция публикации принимает готовый envelope в байтах;
// типизацию payload'а держат EventEnvelope и OrderPlacedEvent.
type Producer struct {
	sync   sarama.SyncProducer
	logger *log.Entry
}

// NewProducer подключается к брокерам с конфигурацией SyncConfig.
func NewProducer(brokers []string) (*Producer, error) {
	sp, err := sarama.NewSyncProducer(brokers, SyncConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}

	return &Producer{
		sync:   sp,
		logger: log.WithField("component", "kafka-producer"),
	}, nil
}

// Send публикует value в topic, партиционируя по key.
func (p *Producer) Send(topic, key string, value []byte) error {
	partition, offset, err := p.sync.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		p.logger.WithError(err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("kafka send failed")
		return fmt.Errorf("send to %s: %w", topic, err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": partition,
		"offset":    offset,
	}).Debug("event published")

	return nil
}

// Close завершает работу продьюсера.
func (p *Producer) Close() error {
	if err := p.sync.Close(); err != nil {
		return fmt.Errorf("close kafka producer: %w", err)
	}
	return nil
}
