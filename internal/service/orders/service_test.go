package orders_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
	"github.com/goncalobsantos/desafio-database-relations/internal/messaging/kafka"
	"github.com/goncalobsantos/desafio-database-relations/internal/service/orders"
	"github.com/goncalobsantos/desafio-database-relations/internal/storage/memory"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)
	return logger.WithField("component", "orders-test")
}

func newTestService(t *testing.T) (*orders.Service, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	store.PutCustomer(domain.Customer{ID: "C1", Name: "Alice", Email: "alice@example.com"})
	store.PutProduct(domain.Product{ID: "P1", SKU: "sku-1", Name: "Keyboard", Quantity: 10, PriceMinor: 500})
	store.PutProduct(domain.Product{ID: "P2", SKU: "sku-2", Name: "Mouse", Quantity: 2, PriceMinor: 250})

	return orders.NewServiceWithoutMetrics(store, quietLogger()), store
}

func productQuantity(t *testing.T, store *memory.Store, id string) int32 {
	t.Helper()

	products, err := store.Products().FindAllByIDs([]string{id})
	require.NoError(t, err)
	require.Len(t, products, 1)
	return products[0].Quantity
}

func TestPlaceOrder_Success(t *testing.T) {
	service, store := newTestService(t)

	order, err := service.PlaceOrder(context.Background(), "C1", []domain.OrderLineRequest{
		{ProductID: "P1", Qty: 3},
	})
	require.NoError(t, err)

	require.NotEmpty(t, order.ID)
	require.Equal(t, "C1", order.CustomerID)
	require.Len(t, order.Lines, 1)
	require.Equal(t, "P1", order.Lines[0].ProductID)
	require.Equal(t, int32(3), order.Lines[0].Qty)
	require.Equal(t, int64(500), order.Lines[0].PriceMinor, "line price must snapshot the catalog price")
	require.Equal(t, int64(1500), order.AmountMinor)

	require.Equal(t, int32(7), productQuantity(t, store, "P1"))

	stored, err := store.Orders().Get(order.ID)
	require.NoError(t, err)
	require.Equal(t, order.ID, stored.ID)
}

func TestPlaceOrder_PriceSnapshotSurvivesCatalogChange(t *testing.T) {
	service, store := newTestService(t)

	order, err := service.PlaceOrder(context.Background(), "C1", []domain.OrderLineRequest{
		{ProductID: "P1", Qty: 1},
	})
	require.NoError(t, err)

	// Цена в каталоге меняется после оформления.
	store.PutProduct(domain.Product{ID: "P1", SKU: "sku-1", Name: "Keyboard", Quantity: 9, PriceMinor: 999})

	stored, err := store.Orders().Get(order.ID)
	require.NoError(t, err)
	require.Equal(t, int64(500), stored.Lines[0].PriceMinor)
}

func TestPlaceOrder_CustomerNotFound(t *testing.T) {
	service, store := newTestService(t)

	_, err := service.PlaceOrder(context.Background(), "missing", []domain.OrderLineRequest{
		{ProductID: "P1", Qty: 1},
	})
	require.ErrorIs(t, err, domain.ErrCustomerNotFound)

	require.Equal(t, int32(10), productQuantity(t, store, "P1"))
	requireNoOrders(t, store, "missing")
	requireOutboxEmpty(t, store)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	service, store := newTestService(t)

	_, err := service.PlaceOrder(context.Background(), "C1", []domain.OrderLineRequest{
		{ProductID: "P1", Qty: 1},
		{ProductID: "PX", Qty: 1},
	})
	require.ErrorIs(t, err, domain.ErrProductNotFound)

	require.Equal(t, int32(10), productQuantity(t, store, "P1"))
	requireNoOrders(t, store, "C1")
	requireOutboxEmpty(t, store)
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	service, store := newTestService(t)

	_, err := service.PlaceOrder(context.Background(), "C1", []domain.OrderLineRequest{
		{ProductID: "P2", Qty: 5},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	require.Equal(t, int32(2), productQuantity(t, store, "P2"))
	requireNoOrders(t, store, "C1")
	requireOutboxEmpty(t, store)
}

func TestPlaceOrder_InsufficientLineAbortsWholeOrder(t *testing.T) {
	service, store := newTestService(t)

	// P1 хватает, P2 — нет: откатываются обе позиции.
	_, err := service.PlaceOrder(context.Background(), "C1", []domain.OrderLineRequest{
		{ProductID: "P1", Qty: 1},
		{ProductID: "P2", Qty: 3},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	require.Equal(t, int32(10), productQuantity(t, store, "P1"))
	require.Equal(t, int32(2), productQuantity(t, store, "P2"))
	requireNoOrders(t, store, "C1")
}

func TestPlaceOrder_DuplicateLinesAreMerged(t *testing.T) {
	service, store := newTestService(t)

	order, err := service.PlaceOrder(context.Background(), "C1", []domain.OrderLineRequest{
		{ProductID: "P1", Qty: 2},
		{ProductID: "P1", Qty: 3},
	})
	require.NoError(t, err)

	require.Len(t, order.Lines, 1)
	require.Equal(t, int32(5), order.Lines[0].Qty)
	require.Equal(t, int32(5), productQuantity(t, store, "P1"))
}

func TestPlaceOrder_DuplicateLinesMergedQtyExceedsStock(t *testing.T) {
	service, store := newTestService(t)

	_, err := service.PlaceOrder(context.Background(), "C1", []domain.OrderLineRequest{
		{ProductID: "P2", Qty: 1},
		{ProductID: "P2", Qty: 2},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	require.Equal(t, int32(2), productQuantity(t, store, "P2"))
}

func TestPlaceOrder_RequestValidation(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.PlaceOrder(ctx, "", []domain.OrderLineRequest{{ProductID: "P1", Qty: 1}})
	require.ErrorIs(t, err, domain.ErrCustomerRequired)

	_, err = service.PlaceOrder(ctx, "C1", nil)
	require.ErrorIs(t, err, domain.ErrLinesRequired)

	_, err = service.PlaceOrder(ctx, "C1", []domain.OrderLineRequest{{ProductID: "P1", Qty: 0}})
	require.ErrorIs(t, err, domain.ErrLineQtyInvalid)
}

func TestPlaceOrder_NotIdempotent(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	request := []domain.OrderLineRequest{{ProductID: "P1", Qty: 2}}

	first, err := service.PlaceOrder(ctx, "C1", request)
	require.NoError(t, err)
	second, err := service.PlaceOrder(ctx, "C1", request)
	require.NoError(t, err)

	require.NotEqual(t, first.ID, second.ID, "re-invocation must create a distinct order")
	require.Equal(t, int32(6), productQuantity(t, store, "P1"))
}

func TestPlaceOrder_EnqueuesOutboxEvent(t *testing.T) {
	service, store := newTestService(t)

	order, err := service.PlaceOrder(context.Background(), "C1", []domain.OrderLineRequest{
		{ProductID: "P1", Qty: 3},
	})
	require.NoError(t, err)

	pending, err := store.Outbox().PullPending(10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	msg := pending[0]
	require.Equal(t, kafka.AggregateTypeOrder, msg.AggregateType)
	require.Equal(t, order.ID, msg.AggregateID)
	require.Equal(t, string(kafka.EventTypeOrderPlaced), msg.EventType)

	var event kafka.OrderPlacedEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	require.Equal(t, order.ID, event.OrderID)
	require.Equal(t, "C1", event.CustomerID)
	require.Equal(t, int64(1500), event.AmountMinor)
	require.Len(t, event.Lines, 1)
	require.Equal(t, int64(500), event.Lines[0].PriceMinor)
}

func TestPlaceOrder_AppendsTimelineEvent(t *testing.T) {
	service, store := newTestService(t)

	order, err := service.PlaceOrder(context.Background(), "C1", []domain.OrderLineRequest{
		{ProductID: "P1", Qty: 1},
	})
	require.NoError(t, err)

	events, err := store.Timeline().List(order.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "OrderPlaced", events[0].Type)
}

func TestPlaceOrder_CanceledContext(t *testing.T) {
	service, store := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.PlaceOrder(ctx, "C1", []domain.OrderLineRequest{{ProductID: "P1", Qty: 1}})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, int32(10), productQuantity(t, store, "P1"))
}

func TestPlaceOrder_ConcurrentLastUnit(t *testing.T) {
	store := memory.NewStore()
	store.PutCustomer(domain.Customer{ID: "C1", Name: "Alice", Email: "alice@example.com"})
	store.PutProduct(domain.Product{ID: "P1", SKU: "sku-1", Name: "Keyboard", Quantity: 1, PriceMinor: 500})
	service := orders.NewServiceWithoutMetrics(store, quietLogger())

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.PlaceOrder(context.Background(), "C1", []domain.OrderLineRequest{
				{ProductID: "P1", Qty: 1},
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var placed, rejected int
	for err := range results {
		switch {
		case err == nil:
			placed++
		default:
			require.ErrorIs(t, err, domain.ErrInsufficientStock)
			rejected++
		}
	}

	require.Equal(t, 1, placed, "exactly one of two concurrent orders for the last unit may succeed")
	require.Equal(t, 1, rejected)
	require.Equal(t, int32(0), productQuantity(t, store, "P1"))
}

func TestPlaceOrder_ConcurrentNoOversell(t *testing.T) {
	store := memory.NewStore()
	store.PutCustomer(domain.Customer{ID: "C1", Name: "Alice", Email: "alice@example.com"})
	store.PutProduct(domain.Product{ID: "P1", SKU: "sku-1", Name: "Keyboard", Quantity: 25, PriceMinor: 500})
	service := orders.NewServiceWithoutMetrics(store, quietLogger())

	const workers = 10
	const qtyPerOrder = 3

	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.PlaceOrder(context.Background(), "C1", []domain.OrderLineRequest{
				{ProductID: "P1", Qty: qtyPerOrder},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var placed int
	for err := range errs {
		if err == nil {
			placed++
			continue
		}
		require.ErrorIs(t, err, domain.ErrInsufficientStock)
	}

	// 25 единиц вмещают ровно 8 заказов по 3; оставшиеся две попытки отклоняются.
	require.Equal(t, 8, placed)
	require.Equal(t, int32(1), productQuantity(t, store, "P1"))

	listed, err := store.Orders().ListByCustomer("C1", 0)
	require.NoError(t, err)
	require.Len(t, listed, placed)
}

func TestGetOrderAndListOrders(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	first, err := service.PlaceOrder(ctx, "C1", []domain.OrderLineRequest{{ProductID: "P1", Qty: 1}})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := service.PlaceOrder(ctx, "C1", []domain.OrderLineRequest{{ProductID: "P2", Qty: 1}})
	require.NoError(t, err)

	got, err := service.GetOrder(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)

	_, err = service.GetOrder(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	listed, err := service.ListOrders(ctx, "C1", 0)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	require.Equal(t, second.ID, listed[0].ID, "newest order must come first")
}

func requireNoOrders(t *testing.T, store *memory.Store, customerID string) {
	t.Helper()

	listed, err := store.Orders().ListByCustomer(customerID, 0)
	require.NoError(t, err)
	require.Empty(t, listed)
}

func requireOutboxEmpty(t *testing.T, store *memory.Store) {
	t.Helper()

	pending, err := store.Outbox().PullPending(10)
	require.NoError(t, err)
	require.Empty(t, pending)
}
