package postgres

import (
	"fmt"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

// Seed идемпотентно загружает клиентов и товары.
// Используется для демо-стендов и интеграционных тестов.
func Seed(store *Store, customers []domain.Customer, products []domain.Product) error {
	if store == nil || store.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	customerRepo := &customerRepository{q: store.DB()}
	for _, customer := range customers {
		if err := customerRepo.Upsert(customer); err != nil {
			return fmt.Errorf("seed customer %s: %w", customer.ID, err)
		}
	}

	productRepo := &productRepository{q: store.DB()}
	for _, product := range products {
		if err := productRepo.Upsert(product); err != nil {
			return fmt.Errorf("seed product %s: %w", product.ID, err)
		}
	}

	return nil
}
