package domain

import (
	"context"
	"time"
)

// CustomerRepository разрешает клиента по идентификатору.
type CustomerRepository interface {
	// FindByID возвращает клиента или ErrCustomerNotFound.
	FindByID(id string) (Customer, error)
}

// ProductRepository описывает взаимодействие с каталогом товаров.
type ProductRepository interface {
	// FindAllByIDs пакетно разрешает товары по идентификаторам.
	// Возвращает только найденные; отсутствие товара ошибкой не считается —
	// вызывающая сторона делает вывод по количеству.
	FindAllByIDs(ids []string) ([]Product, error)
	// UpdateQuantities применяет новые абсолютные остатки.
	// Остаток ниже нуля отклоняется с ErrInsufficientStock.
	UpdateQuantities(updates []StockAdjustment) error
}

// Repositories — набор репозиториев, привязанных к одной транзакции unit of work.
// Products() внутри Do читает товары с блокировкой строк, так что конкурентные
// оформления одного товара сериализуются.
type Repositories interface {
	Customers() CustomerRepository
	Products() ProductRepository
	Orders() OrderRepository
	Outbox() OutboxRepository
	Timeline() TimelineRepository
}

// UnitOfWork исполняет fn в границах одной логической транзакции:
// либо все эффекты fn становятся видимыми вместе, либо ни один из них.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(Repositories) error) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(event TimelineEvent) error
	List(orderID string) ([]TimelineEvent, error)
}

// OutboxMessage хранит данные для публикуемого события.
// AttemptCount отражает число уже сделанных попыток публикации и
// попадает в dead letter при исчерпании retry.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	AttemptCount  int
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
