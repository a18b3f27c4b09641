package memory

import (
	"sort"
	"time"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

// timelineRepository хранит события истории заказов в памяти.
type timelineRepository struct {
	store *Store
	inTx  bool
}

// Append добавляет событие в хранилище.
func (r *timelineRepository) Append(event domain.TimelineEvent) error {
	if !r.inTx {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
	}

	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}
	r.store.timeline[event.OrderID] = append(r.store.timeline[event.OrderID], event)

	sort.Slice(r.store.timeline[event.OrderID], func(i, j int) bool {
		return r.store.timeline[event.OrderID][i].Occurred.Before(r.store.timeline[event.OrderID][j].Occurred)
	})

	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepository) List(orderID string) ([]domain.TimelineEvent, error) {
	if !r.inTx {
		r.store.mu.RLock()
		defer r.store.mu.RUnlock()
	}

	events := r.store.timeline[orderID]
	result := make([]domain.TimelineEvent, len(events))
	copy(result, events)
	return result, nil
}

var _ domain.TimelineRepository = (*timelineRepository)(nil)
