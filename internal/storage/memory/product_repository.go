package memory

import (
	"time"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

// productRepository — in-memory реализация ProductRepository.
type productRepository struct {
	store *Store
	inTx  bool
}

// FindAllByIDs возвращает найденные товары в порядке запрошенных идентификаторов.
// Повторные идентификаторы схлопываются, отсутствующие молча пропускаются.
func (r *productRepository) FindAllByIDs(ids []string) ([]domain.Product, error) {
	if !r.inTx {
		r.store.mu.RLock()
		defer r.store.mu.RUnlock()
	}

	seen := make(map[string]struct{}, len(ids))
	result := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		product, ok := r.store.products[id]
		if !ok {
			continue
		}
		result = append(result, product)
	}

	return result, nil
}

// UpdateQuantities применяет новые абсолютные остатки.
// Остаток ниже нуля нарушил бы инвариант склада и отклоняется целиком.
func (r *productRepository) UpdateQuantities(updates []domain.StockAdjustment) error {
	if !r.inTx {
		r.store.mu.Lock()
		defer r.store.mu.Unlock()
	}

	for _, update := range updates {
		if update.Quantity < 0 {
			return domain.ErrInsufficientStock
		}
		if _, ok := r.store.products[update.ProductID]; !ok {
			return domain.ErrProductNotFound
		}
	}

	now := time.Now().UTC()
	for _, update := range updates {
		product := r.store.products[update.ProductID]
		product.Quantity = update.Quantity
		product.UpdatedAt = now
		r.store.products[update.ProductID] = product
	}

	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
