package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	log "github.com/sirupsen/logrus"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
	defaultMaxAttempts  = 3
	defaultRetryBase    = 50 * time.Millisecond

	// Верхняя граница паузы между повторами публикации.
	maxRetryBackoff = 5 * time.Second
)

var (
	publishAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_outbox_publish_attempts_total",
		Help: "Total number of outbox publish attempts grouped by result.",
	}, []string{"result"})
	pendingRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sales_outbox_pending_records",
		Help: "Current number of pending records in transactional outbox.",
	})
	oldestPendingAge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sales_outbox_oldest_pending_age_seconds",
		Help: "Age in seconds of the oldest pending outbox record.",
	})
)

// DeadLetter — payload сообщения в DLQ-топике: исходное outbox-сообщение
// заказа плюс причина, по которой его не удалось доставить.
// cmd/dlq-reprocess читает записи именно в этом формате.
type DeadLetter struct {
	OutboxID      string          `json:"outbox_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishError  string          `json:"publish_error"`
	Attempts      int             `json:"attempts"`
	FailedAt      time.Time       `json:"failed_at"`
}

// Config задаёт политику доставки. Нулевые значения заменяются умолчаниями,
// поэтому пустой Config даёт рабочий worker без DLQ.
type Config struct {
	Logger       *log.Entry
	DLQ          domain.OutboxPublisher
	PollInterval time.Duration
	BatchSize    int
	MaxAttempts  int
	RetryBase    time.Duration
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = log.WithField("component", "outbox-worker")
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaultBatchSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	// Нулевая база означает умолчание, отрицательная — повторы без паузы.
	if c.RetryBase == 0 {
		c.RetryBase = defaultRetryBase
	} else if c.RetryBase < 0 {
		c.RetryBase = 0
	}
	return c
}

// Worker доставляет pending-сообщения outbox в брокер.
// Каждое сообщение публикуется до MaxAttempts раз с нарастающей паузой;
// недоставленное уходит в DLQ (если он настроен) и помечается failed,
// чтобы не блокировать остальной backlog.
type Worker struct {
	repo      domain.OutboxRepository
	publisher domain.OutboxPublisher
	cfg       Config
	logger    *log.Entry
}

// NewWorker создаёт worker поверх репозитория outbox и publisher'а.
func NewWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, cfg Config) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		repo:      repo,
		publisher: publisher,
		cfg:       cfg,
		logger:    cfg.Logger,
	}
}

// Run опустошает outbox сразу и далее по тикам PollInterval до отмены ctx.
func (w *Worker) Run(ctx context.Context) {
	if w.repo == nil || w.publisher == nil {
		w.logger.Warn("outbox worker is disabled: repo or publisher is nil")
		return
	}

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.Drain(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Drain(ctx)
		}
	}
}

// Drain обрабатывает один батч pending-сообщений.
func (w *Worker) Drain(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	w.observeBacklog()

	batch, err := w.repo.PullPending(w.cfg.BatchSize)
	if err != nil {
		w.logger.WithError(err).Warn("failed to pull pending outbox messages")
		return
	}

	for _, msg := range batch {
		if ctx.Err() != nil {
			return
		}
		w.process(ctx, msg)
	}

	if len(batch) > 0 {
		w.observeBacklog()
	}
}

// process доводит одно сообщение до терминального статуса sent или failed.
func (w *Worker) process(ctx context.Context, msg domain.OutboxMessage) {
	entry := w.logger.WithFields(log.Fields{
		"outbox_id":  msg.ID,
		"event_type": msg.EventType,
	})

	cause := w.deliver(ctx, msg)
	if cause == nil {
		if err := w.repo.MarkSent(msg.ID); err != nil {
			entry.WithError(err).Warn("failed to mark outbox message as sent")
		}
		return
	}
	if ctx.Err() != nil {
		// Прервано остановкой сервиса: сообщение остаётся pending.
		return
	}

	entry.WithError(cause).Error("outbox delivery exhausted retries")
	publishAttempts.WithLabelValues("failed").Inc()

	if err := w.deadLetter(msg, cause); err != nil {
		entry.WithError(err).Warn("failed to hand outbox message to DLQ")
		publishAttempts.WithLabelValues("dlq_failed").Inc()
	}
	if err := w.repo.MarkFailed(msg.ID); err != nil {
		entry.WithError(err).Warn("failed to mark outbox message as failed")
	}
}

// deliver публикует сообщение, повторяя до MaxAttempts раз.
func (w *Worker) deliver(ctx context.Context, msg domain.OutboxMessage) error {
	var lastErr error

	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		if lastErr = w.publisher.Publish(msg); lastErr == nil {
			publishAttempts.WithLabelValues("sent").Inc()
			return nil
		}
		publishAttempts.WithLabelValues("retry_error").Inc()

		if attempt == w.cfg.MaxAttempts {
			break
		}
		if delay := w.backoff(attempt); delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return fmt.Errorf("publish failed after %d attempts: %w", w.cfg.MaxAttempts, lastErr)
}

// backoff возвращает паузу перед попыткой attempt+1:
// RetryBase удваивается с каждым повтором, но не превышает maxRetryBackoff.
func (w *Worker) backoff(attempt int) time.Duration {
	if w.cfg.RetryBase <= 0 {
		return 0
	}

	delay := w.cfg.RetryBase
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maxRetryBackoff {
			return maxRetryBackoff
		}
	}
	if delay > maxRetryBackoff {
		return maxRetryBackoff
	}
	return delay
}

// deadLetter публикует недоставленное сообщение в DLQ вместе с причиной.
func (w *Worker) deadLetter(msg domain.OutboxMessage, cause error) error {
	if w.cfg.DLQ == nil {
		return nil
	}

	payload, err := json.Marshal(DeadLetter{
		OutboxID:      msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishError:  cause.Error(),
		Attempts:      msg.AttemptCount + w.cfg.MaxAttempts,
		FailedAt:      time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}

	dead := msg
	dead.Payload = payload
	if err := w.cfg.DLQ.Publish(dead); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}
	return nil
}

func (w *Worker) observeBacklog() {
	stats, err := w.repo.Stats()
	if err != nil {
		w.logger.WithError(err).Warn("failed to collect outbox backlog stats")
		return
	}

	pendingRecords.Set(float64(stats.PendingCount))

	age := 0.0
	if stats.PendingCount > 0 && !stats.OldestPendingAt.IsZero() {
		if since := time.Since(stats.OldestPendingAt).Seconds(); since > 0 {
			age = since
		}
	}
	oldestPendingAge.Set(age)
}
