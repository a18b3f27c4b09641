package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

// Статусы записи в outbox_messages. Переходы: pending -> sent | failed.
const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

type outboxRepository struct {
	q   querier
	ctx context.Context
}

// NewOutboxRepository создаёт PostgreSQL-реализацию OutboxRepository.
func NewOutboxRepository(store *Store) domain.OutboxRepository {
	return &outboxRepository{q: store.DB()}
}

// Enqueue сохраняет сообщение в статусе pending. Внутри unit of work
// запись попадает в ту же транзакцию, что и сам заказ.
func (r *outboxRepository) Enqueue(msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	ctx, cancel := opContext(r.ctx)
	defer cancel()

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.AttemptCount = 0

	now := time.Now().UTC()
	const insert = `
		INSERT INTO outbox_messages (
			id, aggregate_type, aggregate_id, event_type, payload,
			status, attempt_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $7)`

	if _, err := r.q.ExecContext(ctx, insert,
		msg.ID, msg.AggregateType, msg.AggregateID, msg.EventType, msg.Payload,
		outboxStatusPending, now,
	); err != nil {
		return domain.OutboxMessage{}, fmt.Errorf("enqueue outbox message: %w", err)
	}

	return msg, nil
}

// PullPending возвращает до limit pending-сообщений в порядке постановки.
func (r *outboxRepository) PullPending(limit int) ([]domain.OutboxMessage, error) {
	ctx, cancel := opContext(r.ctx)
	defer cancel()

	if limit <= 0 {
		limit = 100
	}

	const pull = `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, attempt_count
		FROM outbox_messages
		WHERE status = $1
		ORDER BY created_at, id
		LIMIT $2`

	rows, err := r.q.QueryContext(ctx, pull, outboxStatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("pull pending outbox messages: %w", err)
	}
	defer rows.Close()

	return scanOutboxMessages(rows, limit)
}

func scanOutboxMessages(rows *sql.Rows, capacity int) ([]domain.OutboxMessage, error) {
	batch := make([]domain.OutboxMessage, 0, capacity)
	for rows.Next() {
		var msg domain.OutboxMessage
		err := rows.Scan(
			&msg.ID,
			&msg.AggregateType,
			&msg.AggregateID,
			&msg.EventType,
			&msg.Payload,
			&msg.AttemptCount,
		)
		if err != nil {
			return nil, fmt.Errorf("scan outbox message: %w", err)
		}
		batch = append(batch, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return batch, nil
}

// Stats считает backlog: количество pending-записей и время самой старой.
func (r *outboxRepository) Stats() (domain.OutboxStats, error) {
	ctx, cancel := opContext(r.ctx)
	defer cancel()

	const backlog = `
		SELECT COUNT(*), MIN(created_at)
		FROM outbox_messages
		WHERE status = $1`

	var (
		stats  domain.OutboxStats
		oldest sql.NullTime
	)
	if err := r.q.QueryRowContext(ctx, backlog, outboxStatusPending).Scan(&stats.PendingCount, &oldest); err != nil {
		return domain.OutboxStats{}, fmt.Errorf("outbox stats query failed: %w", err)
	}
	if oldest.Valid {
		stats.OldestPendingAt = oldest.Time.UTC()
	}

	return stats, nil
}

// MarkSent переводит сообщение в терминальный статус sent.
func (r *outboxRepository) MarkSent(id string) error {
	return r.finish(id, outboxStatusSent)
}

// MarkFailed фиксирует отказ публикации после исчерпания retry.
func (r *outboxRepository) MarkFailed(id string) error {
	return r.finish(id, outboxStatusFailed)
}

func (r *outboxRepository) finish(id, status string) error {
	ctx, cancel := opContext(r.ctx)
	defer cancel()

	const update = `
		UPDATE outbox_messages
		SET status = $2, attempt_count = attempt_count + 1, updated_at = $3
		WHERE id = $1`

	res, err := r.q.ExecContext(ctx, update, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark outbox message as %s: %w", status, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for outbox %s: %w", status, err)
	}
	if affected == 0 {
		return domain.ErrOutboxPublish
	}

	return nil
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
