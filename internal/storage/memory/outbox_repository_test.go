package memory_test

import (
	"errors"
	"testing"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
	"github.com/goncalobsantos/desafio-database-relations/internal/storage/memory"
)

func TestOutboxRepository_EnqueuePull(t *testing.T) {
	outbox := memory.NewStore().Outbox()

	msg, err := outbox.Enqueue(domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   "order-1",
		EventType:     "order.placed",
		Payload:       []byte(`{"order_id":"order-1"}`),
	})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if msg.ID == "" {
		t.Fatal("expected generated id")
	}

	pending, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != msg.ID {
		t.Fatalf("unexpected pending: %+v", pending)
	}
}

func TestOutboxRepository_MarkSent(t *testing.T) {
	outbox := memory.NewStore().Outbox()

	msg, err := outbox.Enqueue(domain.OutboxMessage{AggregateID: "order-1", EventType: "order.placed"})
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if err := outbox.MarkSent(msg.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}

	pending, err := outbox.PullPending(10)
	if err != nil {
		t.Fatalf("pull failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty backlog, got %d", len(pending))
	}
}

func TestOutboxRepository_MarkUnknown(t *testing.T) {
	outbox := memory.NewStore().Outbox()

	if err := outbox.MarkSent("missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish, got %v", err)
	}
	if err := outbox.MarkFailed("missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("expected ErrOutboxPublish, got %v", err)
	}
}

func TestOutboxRepository_Stats(t *testing.T) {
	outbox := memory.NewStore().Outbox()

	stats, err := outbox.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 0 {
		t.Fatalf("expected empty backlog, got %d", stats.PendingCount)
	}

	if _, err := outbox.Enqueue(domain.OutboxMessage{AggregateID: "order-1", EventType: "order.placed"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := outbox.Enqueue(domain.OutboxMessage{AggregateID: "order-2", EventType: "order.placed"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	stats, err = outbox.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("expected 2 pending, got %d", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("expected oldest pending timestamp")
	}
}

func TestTimelineRepository_AppendList(t *testing.T) {
	timeline := memory.NewStore().Timeline()

	if err := timeline.Append(domain.TimelineEvent{OrderID: "order-1", Type: "OrderPlaced"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	events, err := timeline.List("order-1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(events) != 1 || events[0].Type != "OrderPlaced" {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Occurred.IsZero() {
		t.Fatal("expected occurred timestamp to be set")
	}
}
