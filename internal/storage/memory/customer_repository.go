package memory

import "github.com/goncalobsantos/desafio-database-relations/internal/domain"

// customerRepository — in-memory реализация CustomerRepository.
// При inTx блокировку держит Store.Do.
type customerRepository struct {
	store *Store
	inTx  bool
}

// FindByID возвращает клиента или ErrCustomerNotFound.
func (r *customerRepository) FindByID(id string) (domain.Customer, error) {
	if !r.inTx {
		r.store.mu.RLock()
		defer r.store.mu.RUnlock()
	}

	customer, ok := r.store.customers[id]
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
