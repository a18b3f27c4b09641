package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

const (
	maxTxAttempts  = 3
	txRetryBackoff = 25 * time.Millisecond
)

type unitOfWork struct {
	store  *Store
	logger *log.Entry
}

// NewUnitOfWork создаёт unit of work поверх PostgreSQL-транзакций.
// Конкурентные оформления одного товара сериализуются через
// SELECT ... FOR UPDATE; deadlock и serialization failure
// ретраятся ограниченное число раз.
func NewUnitOfWork(store *Store, logger *log.Entry) domain.UnitOfWork {
	if logger == nil {
		logger = log.WithField("component", "postgres-uow")
	}
	return &unitOfWork{store: store, logger: logger}
}

func (u *unitOfWork) Do(ctx context.Context, fn func(domain.Repositories) error) error {
	if u.store == nil || u.store.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	var lastErr error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err := u.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isSerializationFailure(err) {
			return err
		}

		lastErr = err
		u.logger.WithError(err).WithField("attempt", attempt).Warn("transaction conflict, retrying")

		if attempt >= maxTxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(txRetryBackoff * time.Duration(attempt)):
		}
	}

	return fmt.Errorf("transaction aborted after %d attempts: %w: %v", maxTxAttempts, domain.ErrStockConflict, lastErr)
}

func (u *unitOfWork) runOnce(ctx context.Context, fn func(domain.Repositories) error) (err error) {
	tx, err := u.store.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	repos := &txRepositories{tx: tx, ctx: ctx}
	if err = fn(repos); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// txRepositories отдаёт репозитории, привязанные к одной транзакции.
type txRepositories struct {
	tx  *sql.Tx
	ctx context.Context
}

func (r *txRepositories) Customers() domain.CustomerRepository {
	return &customerRepository{q: r.tx, ctx: r.ctx}
}

func (r *txRepositories) Products() domain.ProductRepository {
	return &productRepository{q: r.tx, ctx: r.ctx, forUpdate: true}
}

func (r *txRepositories) Orders() domain.OrderRepository {
	return &orderRepository{q: r.tx, ctx: r.ctx}
}

func (r *txRepositories) Outbox() domain.OutboxRepository {
	return &outboxRepository{q: r.tx, ctx: r.ctx}
}

func (r *txRepositories) Timeline() domain.TimelineRepository {
	return &timelineRepository{q: r.tx, ctx: r.ctx}
}

var (
	_ domain.UnitOfWork   = (*unitOfWork)(nil)
	_ domain.Repositories = (*txRepositories)(nil)
)
