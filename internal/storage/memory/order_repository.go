package memory

import (
	"sort"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

// orderRepository — простая in-memory реализация OrderRepository.
type orderRepository struct {
	store *Store
	inTx  bool
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepository) Create(order domain.Order) error {
	if !r.inTx {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
	}

	if _, exists := r.store.orders[order.ID]; exists {
		return domain.ErrOrderExists
	}
	// Сохраняем копию позиций, чтобы избежать непредсказуемых мутаций извне.
	lines := make([]domain.OrderLine, len(order.Lines))
	copy(lines, order.Lines)
	order.Lines = lines

	r.store.orders[order.ID] = order
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepository) Get(id string) (domain.Order, error) {
	if !r.inTx {
		r.store.mu.RLock()
		defer r.store.mu.RUnlock()
	}

	order, ok := r.store.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}

	lines := make([]domain.OrderLine, len(order.Lines))
	copy(lines, order.Lines)
	order.Lines = lines
	return order, nil
}

// ListByCustomer возвращает заказы клиента, ограничивая выборку limit (если >0).
func (r *orderRepository) ListByCustomer(customerID string, limit int) ([]domain.Order, error) {
	if !r.inTx {
		r.store.mu.RLock()
		defer r.store.mu.RUnlock()
	}

	result := make([]domain.Order, 0, len(r.store.orders))
	for _, order := range r.store.orders {
		if order.CustomerID != customerID {
			continue
		}
		lines := make([]domain.OrderLine, len(order.Lines))
		copy(lines, order.Lines)
		order.Lines = lines
		result = append(result, order)
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
