package postgres

import (
	"context"
	"fmt"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

type productRepository struct {
	q         querier
	ctx       context.Context
	forUpdate bool
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
// Репозиторий вне транзакции читает без блокировок; внутри unit of work
// выборка идёт с FOR UPDATE.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{q: store.DB()}
}

func (r *productRepository) FindAllByIDs(ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return []domain.Product{}, nil
	}

	ctx, cancel := opContext(r.ctx)
	defer cancel()

	query := `
		SELECT id, sku, name, quantity, price_minor, created_at, updated_at
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
	`
	if r.forUpdate {
		query += " FOR UPDATE"
	}

	rows, err := r.q.QueryContext(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.Product, len(ids))
	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(
			&product.ID, &product.SKU, &product.Name,
			&product.Quantity, &product.PriceMinor,
			&product.CreatedAt, &product.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		byID[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	// Порядок результата повторяет порядок запроса, дубликаты не повторяются.
	result := make([]domain.Product, 0, len(byID))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if product, ok := byID[id]; ok {
			result = append(result, product)
		}
	}

	return result, nil
}

func (r *productRepository) UpdateQuantities(updates []domain.StockAdjustment) error {
	ctx, cancel := opContext(r.ctx)
	defer cancel()

	for _, update := range updates {
		if update.Quantity < 0 {
			return domain.ErrInsufficientStock
		}
	}

	for _, update := range updates {
		res, err := r.q.ExecContext(ctx, `
			UPDATE products
			SET quantity = $2,
			    updated_at = NOW()
			WHERE id = $1
		`, update.ProductID, update.Quantity)
		if err != nil {
			if isCheckViolation(err) {
				return domain.ErrInsufficientStock
			}
			return fmt.Errorf("update product stock: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected for stock update: %w", err)
		}
		if affected == 0 {
			return domain.ErrProductNotFound
		}
	}

	return nil
}

// Upsert сохраняет товар; используется для сидирования демо-данных.
func (r *productRepository) Upsert(product domain.Product) error {
	ctx, cancel := opContext(r.ctx)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO products (id, sku, name, quantity, price_minor, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE
		SET sku = EXCLUDED.sku,
		    name = EXCLUDED.name,
		    quantity = EXCLUDED.quantity,
		    price_minor = EXCLUDED.price_minor,
		    updated_at = EXCLUDED.updated_at
	`, product.ID, product.SKU, product.Name, product.Quantity, product.PriceMinor, product.CreatedAt, product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert product: %w", err)
	}

	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
