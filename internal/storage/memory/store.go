package memory

import (
	"context"
	"sync"
	"time"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

// Store объединяет in-memory репозитории под одним мьютексом и играет роль
// unit of work для локальной разработки и тестов. Do сериализует оформления
// целиком, поэтому конкурентные заказы на последний товар не могут пройти оба.
type Store struct {
	mu        sync.RWMutex
	customers map[string]domain.Customer
	products  map[string]domain.Product
	orders    map[string]domain.Order
	outbox    map[string]*outboxRecord
	timeline  map[string][]domain.TimelineEvent
}

// NewStore возвращает пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		customers: make(map[string]domain.Customer),
		products:  make(map[string]domain.Product),
		orders:    make(map[string]domain.Order),
		outbox:    make(map[string]*outboxRecord),
		timeline:  make(map[string][]domain.TimelineEvent),
	}
}

// Do выполняет fn под эксклюзивной блокировкой хранилища.
// Мутации внутри fn не откатываются; сервис обязан выполнять все проверки
// до первой мутации (PostgreSQL-бэкенд даёт настоящий rollback).
func (s *Store) Do(ctx context.Context, fn func(domain.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return fn(storeRepositories{store: s, inTx: true})
}

// Customers возвращает самоблокирующийся репозиторий клиентов.
func (s *Store) Customers() domain.CustomerRepository {
	return &customerRepository{store: s}
}

// Products возвращает самоблокирующийся репозиторий товаров.
func (s *Store) Products() domain.ProductRepository {
	return &productRepository{store: s}
}

// Orders возвращает самоблокирующийся репозиторий заказов.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepository{store: s}
}

// Outbox возвращает самоблокирующийся outbox-репозиторий.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepository{store: s}
}

// Timeline возвращает самоблокирующийся репозиторий истории заказов.
func (s *Store) Timeline() domain.TimelineRepository {
	return &timelineRepository{store: s}
}

// PutCustomer добавляет или заменяет клиента (seed для разработки и тестов).
func (s *Store) PutCustomer(customer domain.Customer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	s.customers[customer.ID] = customer
}

// PutProduct добавляет или заменяет товар (seed для разработки и тестов).
func (s *Store) PutProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}
	s.products[product.ID] = product
}

// storeRepositories отдаёт репозитории, разделяющие одну блокировку Do.
type storeRepositories struct {
	store *Store
	inTx  bool
}

func (r storeRepositories) Customers() domain.CustomerRepository {
	return &customerRepository{store: r.store, inTx: r.inTx}
}

func (r storeRepositories) Products() domain.ProductRepository {
	return &productRepository{store: r.store, inTx: r.inTx}
}

func (r storeRepositories) Orders() domain.OrderRepository {
	return &orderRepository{store: r.store, inTx: r.inTx}
}

func (r storeRepositories) Outbox() domain.OutboxRepository {
	return &outboxRepository{store: r.store, inTx: r.inTx}
}

func (r storeRepositories) Timeline() domain.TimelineRepository {
	return &timelineRepository{store: r.store, inTx: r.inTx}
}

var (
	_ domain.UnitOfWork   = (*Store)(nil)
	_ domain.Repositories = storeRepositories{}
)
