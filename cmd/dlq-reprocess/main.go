package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/goncalobsantos/desafio-database-relations/internal/messaging/kafka"
	"github.com/goncalobsantos/desafio-database-relations/internal/service/outbox"
)

// Перезаливает события из DLQ обратно в основной topic заказов.
// По умолчанию работает в dry-run режиме и только печатает кандидатов.

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

type replayProducer interface {
	SendMessage(msg *sarama.ProducerMessage) (partition int32, offset int64, err error)
}

type partitionSource interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
}

// buildReplayMessage восстанавливает исходное событие из DLQ-записи:
// снаружи kafka.EventEnvelope, внутри outbox.DeadLetter с исходным payload'ом.
func buildReplayMessage(targetTopic string, value []byte) (*sarama.ProducerMessage, *outbox.DeadLetter, error) {
	var envelope kafka.EventEnvelope
	if err := json.Unmarshal(value, &envelope); err != nil {
		return nil, nil, fmt.Errorf("decode dlq envelope: %w", err)
	}

	var dead outbox.DeadLetter
	if err := json.Unmarshal(envelope.Payload, &dead); err != nil {
		return nil, nil, fmt.Errorf("decode dead letter: %w", err)
	}
	if dead.OutboxID == "" || dead.EventType == "" {
		return nil, nil, fmt.Errorf("dlq record is not a dead letter")
	}

	replay := kafka.EventEnvelope{
		ID:            dead.OutboxID,
		AggregateType: dead.AggregateType,
		AggregateID:   dead.AggregateID,
		EventType:     dead.EventType,
		Payload:       dead.Payload,
		PublishedAt:   time.Now().UTC(),
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return nil, nil, fmt.Errorf("encode replay envelope: %w", err)
	}

	key := dead.AggregateID
	if key == "" {
		key = dead.OutboxID
	}

	return &sarama.ProducerMessage{
		Topic: targetTopic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(encoded),
	}, &dead, nil
}

// replayPartition читает partition до limit/idle timeout и перезаливает
// валидные DLQ-записи.
func replayPartition(cfg config, pc partitionSource, producer replayProducer, logger *log.Entry, remaining int) (replayed int, err error) {
	idle := time.NewTimer(cfg.idleTimeout)
	defer idle.Stop()

	for remaining > 0 {
		select {
		case msg, ok := <-pc.Messages():
			if !ok {
				return replayed, nil
			}
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(cfg.idleTimeout)

			replayMsg, dead, err := buildReplayMessage(cfg.targetTopic, msg.Value)
			if err != nil {
				logger.WithError(err).WithField("offset", msg.Offset).Warn("skipping malformed dlq record")
				continue
			}

			entry := logger.WithFields(log.Fields{
				"outbox_id":     dead.OutboxID,
				"event_type":    dead.EventType,
				"publish_error": dead.PublishError,
				"attempts":      dead.Attempts,
				"offset":        msg.Offset,
			})
			if !cfg.execute {
				entry.Info("dry-run: would replay dlq record")
				replayed++
				remaining--
				continue
			}

			if _, _, err := producer.SendMessage(replayMsg); err != nil {
				return replayed, fmt.Errorf("replay outbox %s: %w", dead.OutboxID, err)
			}
			entry.Info("replayed dlq record")
			replayed++
			remaining--

		case kafkaErr := <-pc.Errors():
			return replayed, fmt.Errorf("consume dlq partition: %w", kafkaErr)

		case <-idle.C:
			return replayed, nil
		}
	}

	return replayed, nil
}

func run(cfg config, logger *log.Entry) error {
	consumer, err := sarama.NewConsumer(cfg.brokers, consumerConfig())
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}
	defer func() { _ = consumer.Close() }()

	var producer sarama.SyncProducer
	if cfg.execute {
		producer, err = sarama.NewSyncProducer(cfg.brokers, kafka.SyncConfig())
		if err != nil {
			return fmt.Errorf("create kafka producer: %w", err)
		}
		defer func() { _ = producer.Close() }()
	}

	partitions, err := consumer.Partitions(cfg.sourceTopic)
	if err != nil {
		return fmt.Errorf("list partitions of %s: %w", cfg.sourceTopic, err)
	}

	startOffset := sarama.OffsetOldest
	if cfg.fromNewest {
		startOffset = sarama.OffsetNewest
	}

	totalReplayed := 0
	for _, partition := range partitions {
		if totalReplayed >= cfg.limit {
			break
		}

		pc, err := consumer.ConsumePartition(cfg.sourceTopic, partition, startOffset)
		if err != nil {
			return fmt.Errorf("consume partition %d: %w", partition, err)
		}

		replayed, err := replayPartition(cfg, pc, producer, logger.WithField("partition", partition), cfg.limit-totalReplayed)
		_ = pc.Close()
		if err != nil {
			return err
		}
		totalReplayed += replayed
	}

	logger.WithFields(log.Fields{
		"replayed": totalReplayed,
		"execute":  cfg.execute,
	}).Info("dlq reprocess finished")

	return nil
}

func consumerConfig() *sarama.Config {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	return config
}

func readConfig() (config, error) {
	var (
		brokersRaw  string
		sourceTopic string
		targetTopic string
		limit       int
		execute     bool
		fromNewest  bool
		idleTimeout time.Duration
	)

	flag.StringVar(&brokersRaw, "brokers", "", "kafka brokers, comma separated (fallback: SALES_KAFKA_BROKERS)")
	flag.StringVar(&sourceTopic, "source", kafka.TopicDeadLetterQueue, "DLQ topic to read from")
	flag.StringVar(&targetTopic, "target", kafka.TopicOrderEvents, "topic to replay into")
	flag.IntVar(&limit, "limit", defaultReplayLimit, "maximum records to replay")
	flag.BoolVar(&execute, "execute", false, "actually publish (default is dry-run)")
	flag.BoolVar(&fromNewest, "from-newest", false, "start from the newest offset instead of the oldest")
	flag.DurationVar(&idleTimeout, "idle-timeout", defaultIdleTimeout, "stop reading a partition after this idle period")
	flag.Parse()

	if strings.TrimSpace(brokersRaw) == "" {
		brokersRaw = os.Getenv("SALES_KAFKA_BROKERS")
	}

	var brokers []string
	for _, part := range strings.Split(brokersRaw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return config{}, fmt.Errorf("kafka brokers are required (-brokers or SALES_KAFKA_BROKERS)")
	}
	if limit <= 0 {
		return config{}, fmt.Errorf("limit must be positive")
	}
	if idleTimeout <= 0 {
		idleTimeout = defaultIdleTimeout
	}

	return config{
		brokers:     brokers,
		sourceTopic: sourceTopic,
		targetTopic: targetTopic,
		limit:       limit,
		execute:     execute,
		fromNewest:  fromNewest,
		idleTimeout: idleTimeout,
	}, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger := log.WithField("component", "dlq-reprocess")

	cfg, err := readConfig()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("dlq reprocess failed")
	}
}
