package postgres

import (
	"errors"
	"testing"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

func TestOutboxRepository_PostgresEnqueuePullMark(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOutboxRepository(store)

	first, err := repo.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.placed",
		Payload:       []byte(`{"amount_minor":500}`),
	})
	if err != nil {
		t.Fatalf("enqueue first: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected generated outbox id")
	}

	second, err := repo.Enqueue(domain.OutboxMessage{
		ID:            "msg-2",
		AggregateType: "order",
		AggregateID:   "order-2",
		EventType:     "order.placed",
		Payload:       []byte(`{"amount_minor":900}`),
	})
	if err != nil {
		t.Fatalf("enqueue second: %v", err)
	}
	if second.ID != "msg-2" {
		t.Fatalf("expected explicit id to survive, got %s", second.ID)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull pending: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending messages, got %d", len(pending))
	}
	if pending[0].ID != first.ID {
		t.Fatalf("expected FIFO order, got %s first", pending[0].ID)
	}

	stats, err := repo.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.PendingCount != 2 || stats.OldestPendingAt.IsZero() {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if err := repo.MarkFailed(second.ID); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	pending, err = repo.PullPending(10)
	if err != nil {
		t.Fatalf("pull after marks: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected 0 pending after marks, got %d", len(pending))
	}

	if err := repo.MarkSent("missing-message"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish for missing message, got %v", err)
	}
}
