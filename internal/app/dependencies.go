package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
	"github.com/goncalobsantos/desafio-database-relations/internal/service/orders"
	"github.com/goncalobsantos/desafio-database-relations/internal/storage/memory"
	"github.com/goncalobsantos/desafio-database-relations/internal/storage/postgres"
)

// Dependencies содержит все зависимости приложения.
type Dependencies struct {
	UnitOfWork   domain.UnitOfWork
	OutboxRepo   domain.OutboxRepository
	OrderService *orders.Service
	Postgres     *postgres.Store
	Logger       *log.Entry
}

// NewDependencies создаёт и инициализирует все зависимости приложения
// по выбранному storage driver.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	deps := &Dependencies{Logger: logger}

	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		store := memory.NewStore()
		if cfg.SeedDemoData {
			seedMemoryStore(store)
			logger.Info("seeded demo customers and products into memory store")
		}
		deps.UnitOfWork = store
		deps.OutboxRepo = store.Outbox()

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres schema is up to date")
		}
		if cfg.SeedDemoData {
			if err := postgres.Seed(store, demoCustomers(), demoProducts()); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("seed demo data: %w", err)
			}
			logger.Info("seeded demo customers and products into postgres")
		}
		deps.Postgres = store
		deps.UnitOfWork = postgres.NewUnitOfWork(store, logger.WithField("component", "postgres-uow"))
		deps.OutboxRepo = postgres.NewOutboxRepository(store)

	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.StorageDriver)
	}

	deps.OrderService = orders.NewService(deps.UnitOfWork, logger.WithField("component", "order-service"))

	return deps, nil
}

// Close освобождает ресурсы зависимостей.
func (d *Dependencies) Close() error {
	if d.Postgres != nil {
		return d.Postgres.Close()
	}
	return nil
}

func seedMemoryStore(store *memory.Store) {
	for _, customer := range demoCustomers() {
		store.PutCustomer(customer)
	}
	for _, product := range demoProducts() {
		store.PutProduct(product)
	}
}

func demoCustomers() []domain.Customer {
	now := time.Now().UTC()
	return []domain.Customer{
		{ID: "customer-demo-1", Name: "Ada Lovelace", Email: "ada@example.com", CreatedAt: now},
		{ID: "customer-demo-2", Name: "Grace Hopper", Email: "grace@example.com", CreatedAt: now},
	}
}

func demoProducts() []domain.Product {
	now := time.Now().UTC()
	return []domain.Product{
		{ID: "product-demo-1", SKU: "KB-87", Name: "Mechanical keyboard", Quantity: 25, PriceMinor: 14900, CreatedAt: now, UpdatedAt: now},
		{ID: "product-demo-2", SKU: "MS-10", Name: "Wireless mouse", Quantity: 40, PriceMinor: 4900, CreatedAt: now, UpdatedAt: now},
		{ID: "product-demo-3", SKU: "CB-2M", Name: "USB-C cable 2m", Quantity: 100, PriceMinor: 990, CreatedAt: now, UpdatedAt: now},
		{ID: "product-demo-4", SKU: "DK-01", Name: "Laptop dock", Quantity: 5, PriceMinor: 32900, CreatedAt: now, UpdatedAt: now},
	}
}
