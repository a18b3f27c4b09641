package app

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	healthcheck "github.com/goncalobsantos/desafio-database-relations/internal/health"
	"github.com/goncalobsantos/desafio-database-relations/internal/messaging/kafka"
	"github.com/goncalobsantos/desafio-database-relations/internal/service/outbox"
	"github.com/goncalobsantos/desafio-database-relations/internal/version"
)

// Поддерживаемые storage drivers.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

const (
	outboxBacklogWarnPending = 1000
	outboxBacklogWarnAge     = 5 * time.Minute
)

// Config описывает настройки запуска приложения.
type Config struct {
	MetricsAddr         string
	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	KafkaBrokers        string
	OutboxPollInterval  time.Duration
	OutboxBatchSize     int
	SeedDemoData        bool
}

// DefaultConfig возвращает настройки по умолчанию: память, демо-данные,
// метрики на :9090.
func DefaultConfig() Config {
	return Config{
		MetricsAddr:        ":9090",
		StorageDriver:      StorageDriverMemory,
		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		SeedDemoData:       true,
	}
}

// Run поднимает хранилище, outbox worker и observability-сервер
// и блокируется до отмены ctx.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	}()

	// Kafka producer опционален: без брокеров события копятся в outbox.
	var kafkaProducer *kafka.Producer
	workerDone := make(chan struct{})
	if brokers := splitBrokers(cfg.KafkaBrokers); len(brokers) > 0 {
		producer, err := kafka.NewProducer(brokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
			close(workerDone)
		} else {
			kafkaProducer = producer
			logger.WithField("brokers", brokers).Info("kafka producer initialized")

			worker := outbox.NewWorker(
				deps.OutboxRepo,
				kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents),
				outbox.Config{
					Logger:       logger.WithField("component", "outbox-worker"),
					DLQ:          kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue),
					PollInterval: cfg.OutboxPollInterval,
					BatchSize:    cfg.OutboxBatchSize,
				},
			)
			go func() {
				defer close(workerDone)
				worker.Run(ctx)
			}()
		}
	} else {
		logger.Info("kafka brokers are not configured, outbox worker is disabled")
		close(workerDone)
	}

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	if deps.Postgres != nil {
		healthHandler.RegisterChecker("postgres", healthcheck.NewPingChecker("postgres", deps.Postgres, 2*time.Second))
	}
	healthHandler.RegisterChecker("outbox", healthcheck.NewOutboxBacklogChecker(
		"outbox", deps.OutboxRepo, outboxBacklogWarnPending, outboxBacklogWarnAge,
	))

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	logger.Infof("order placement service started, storage=%s", storageDriverName(cfg))

	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем сервис")

	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		logger.Warn("outbox worker did not stop in time")
	}

	shutdownHTTP(metricsSrv, logger)

	if kafkaProducer != nil {
		if err := kafkaProducer.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka producer")
		} else {
			logger.Info("kafka producer closed")
		}
	}

	return ctx.Err()
}

func splitBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	return brokers
}

func storageDriverName(cfg Config) string {
	if cfg.StorageDriver == "" {
		return StorageDriverMemory
	}
	return cfg.StorageDriver
}

// startMetricsServer запускает HTTP-обработчик /metrics и health checks.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/readyz, %s/livez", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}
