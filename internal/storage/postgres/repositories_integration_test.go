package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
)

func seedCatalogForIntegrationTest(t *testing.T, store *Store) {
	t.Helper()

	now := time.Now().UTC().Round(time.Microsecond)
	customers := []domain.Customer{
		{ID: "customer-1", Name: "Alice", Email: "alice@example.com", CreatedAt: now},
		{ID: "customer-2", Name: "Bob", Email: "bob@example.com", CreatedAt: now},
	}
	products := []domain.Product{
		{ID: "product-1", SKU: "SKU-1", Name: "Keyboard", Quantity: 10, PriceMinor: 500, CreatedAt: now, UpdatedAt: now},
		{ID: "product-2", SKU: "SKU-2", Name: "Mouse", Quantity: 5, PriceMinor: 250, CreatedAt: now, UpdatedAt: now},
		{ID: "product-3", SKU: "SKU-3", Name: "Cable", Quantity: 1, PriceMinor: 100, CreatedAt: now, UpdatedAt: now},
	}

	if err := Seed(store, customers, products); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}
}

func TestCustomerRepository_PostgresFindByID(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedCatalogForIntegrationTest(t, store)

	repo := NewCustomerRepository(store)

	customer, err := repo.FindByID("customer-1")
	if err != nil {
		t.Fatalf("find customer: %v", err)
	}
	if customer.ID != "customer-1" || customer.Email != "alice@example.com" {
		t.Fatalf("unexpected customer payload: %+v", customer)
	}

	if _, err := repo.FindByID("missing-customer"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestProductRepository_PostgresFindAllByIDs(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedCatalogForIntegrationTest(t, store)

	repo := NewProductRepository(store)

	products, err := repo.FindAllByIDs([]string{"product-2", "product-1", "product-2", "missing-product"})
	if err != nil {
		t.Fatalf("find products: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(products))
	}
	if products[0].ID != "product-2" || products[1].ID != "product-1" {
		t.Fatalf("unexpected product order: %s, %s", products[0].ID, products[1].ID)
	}
	if products[1].PriceMinor != 500 || products[1].Quantity != 10 {
		t.Fatalf("unexpected product payload: %+v", products[1])
	}

	empty, err := repo.FindAllByIDs(nil)
	if err != nil {
		t.Fatalf("find with empty ids: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty result, got %d products", len(empty))
	}
}

func TestProductRepository_PostgresUpdateQuantities(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedCatalogForIntegrationTest(t, store)

	repo := NewProductRepository(store)

	if err := repo.UpdateQuantities([]domain.StockAdjustment{
		{ProductID: "product-1", Quantity: 7},
	}); err != nil {
		t.Fatalf("update quantity: %v", err)
	}

	products, err := repo.FindAllByIDs([]string{"product-1"})
	if err != nil {
		t.Fatalf("find product after update: %v", err)
	}
	if len(products) != 1 || products[0].Quantity != 7 {
		t.Fatalf("unexpected quantity after update: %+v", products)
	}

	err = repo.UpdateQuantities([]domain.StockAdjustment{
		{ProductID: "product-1", Quantity: -1},
	})
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	err = repo.UpdateQuantities([]domain.StockAdjustment{
		{ProductID: "missing-product", Quantity: 3},
	})
	if !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestOrderRepository_PostgresCreateGetList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	seedCatalogForIntegrationTest(t, store)

	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleOrder("order-1", "customer-1", now.Add(-2*time.Minute))
	order2 := sampleOrder("order-2", "customer-1", now.Add(-time.Minute))

	if err := repo.Create(order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.CustomerID != order1.CustomerID || got.AmountMinor != order1.AmountMinor {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if len(got.Lines) != len(order1.Lines) {
		t.Fatalf("unexpected lines count: got=%d want=%d", len(got.Lines), len(order1.Lines))
	}
	if got.Lines[0].ProductID != "product-1" || got.Lines[0].PriceMinor != 500 {
		t.Fatalf("unexpected line payload: %+v", got.Lines[0])
	}

	listed, err := repo.ListByCustomer("customer-1", 1)
	if err != nil {
		t.Fatalf("list by customer with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("unexpected list result with limit: %+v", listed)
	}

	all, err := repo.ListByCustomer("customer-1", 0)
	if err != nil {
		t.Fatalf("list by customer without limit: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}

	if _, err := repo.Get("missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	if err := repo.Create(order1); !errors.Is(err, domain.ErrOrderExists) {
		t.Fatalf("expected ErrOrderExists on duplicate create, got %v", err)
	}
}

func sampleOrder(id, customerID string, createdAt time.Time) domain.Order {
	lines := []domain.OrderLine{
		{
			ID:         id + "-line-1",
			ProductID:  "product-1",
			Qty:        2,
			PriceMinor: 500,
			CreatedAt:  createdAt,
		},
	}

	return domain.Order{
		ID:          id,
		CustomerID:  customerID,
		AmountMinor: 1000,
		Lines:       lines,
		CreatedAt:   createdAt,
	}
}
