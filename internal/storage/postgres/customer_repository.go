package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

type customerRepository struct {
	q   querier
	ctx context.Context
}

// NewCustomerRepository создаёт PostgreSQL-реализацию CustomerRepository.
func NewCustomerRepository(store *Store) domain.CustomerRepository {
	return &customerRepository{q: store.DB()}
}

func (r *customerRepository) FindByID(id string) (domain.Customer, error) {
	ctx, cancel := opContext(r.ctx)
	defer cancel()

	var customer domain.Customer
	err := r.q.QueryRowContext(ctx, `
		SELECT id, name, email, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&customer.ID, &customer.Name, &customer.Email, &customer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Customer{}, domain.ErrCustomerNotFound
		}
		return domain.Customer{}, fmt.Errorf("select customer: %w", err)
	}

	return customer, nil
}

// Upsert сохраняет клиента; используется для сидирования демо-данных.
func (r *customerRepository) Upsert(customer domain.Customer) error {
	ctx, cancel := opContext(r.ctx)
	defer cancel()

	_, err := r.q.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
		    email = EXCLUDED.email
	`, customer.ID, customer.Name, customer.Email, customer.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert customer: %w", err)
	}

	return nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
