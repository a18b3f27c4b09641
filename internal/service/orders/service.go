package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/goncalobsantos/desafio-database-relations/internal/domain"
	"github.com/goncalobsantos/desafio-database-relations/internal/messaging/kafka"
	"github.com/goncalobsantos/desafio-database-relations/internal/metrics"
)

const (
	timelineEventOrderPlaced = "OrderPlaced"

	defaultListOrdersLimit = 100
)

// Service реализует транзакцию оформления заказа: проверку клиента и товаров,
// контроль остатков и атомарную фиксацию «заказ + списание склада».
type Service struct {
	uow     domain.UnitOfWork
	logger  *log.Entry
	metrics *metrics.PlacementMetrics
}

// NewService создаёт рабочий экземпляр сервиса оформления заказов.
func NewService(uow domain.UnitOfWork, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		uow:     uow,
		logger:  logger,
		metrics: metrics.NewPlacementMetrics(),
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(uow domain.UnitOfWork, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.New().WithField("component", "orders")
	}
	return &Service{
		uow:    uow,
		logger: logger,
	}
}

// PlaceOrder оформляет заказ клиента customerID на указанные позиции.
//
// Проверки выполняются строго до первой мутации: неизвестный клиент, неизвестный
// товар или нехватка остатка завершают операцию без каких-либо побочных эффектов.
// Фиксация заказа и списание остатков происходят в одной логической транзакции
// unit of work вместе с постановкой события `order.placed` в outbox.
func (s *Service) PlaceOrder(ctx context.Context, customerID string, lines []domain.OrderLineRequest) (domain.Order, error) {
	start := time.Now()
	if s.metrics != nil {
		s.metrics.RecordPlacementStarted()
	}
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordPlacementFinished()
			s.metrics.RecordPlacementDuration(time.Since(start))
		}
	}()

	if err := validateRequest(customerID, lines); err != nil {
		s.recordResult(metrics.ResultError)
		return domain.Order{}, err
	}

	// Повторные позиции одного товара схлопываем заранее: count-based проверка
	// существования иначе не отличила бы дубликат от отсутствующего товара.
	merged := mergeLines(lines)

	var placed domain.Order
	err := s.uow.Do(ctx, func(repos domain.Repositories) error {
		order, err := s.placeOrderTx(repos, customerID, merged)
		if err != nil {
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		s.observeFailure(customerID, err)
		return domain.Order{}, err
	}

	s.recordResult(metrics.ResultPlaced)
	if s.metrics != nil {
		s.metrics.RecordStockDecrements(len(placed.Lines))
	}
	s.logger.WithFields(log.Fields{
		"order_id":     placed.ID,
		"customer_id":  placed.CustomerID,
		"lines":        len(placed.Lines),
		"amount_minor": placed.AmountMinor,
	}).Info("order placed")

	return placed, nil
}

// placeOrderTx выполняет шаги оформления внутри открытой транзакции.
func (s *Service) placeOrderTx(repos domain.Repositories, customerID string, requested []domain.OrderLineRequest) (domain.Order, error) {
	customer, err := repos.Customers().FindByID(customerID)
	if err != nil {
		return domain.Order{}, err
	}

	ids := make([]string, 0, len(requested))
	byProduct := make(map[string]domain.OrderLineRequest, len(requested))
	for _, line := range requested {
		ids = append(ids, line.ProductID)
		byProduct[line.ProductID] = line
	}

	products, err := repos.Products().FindAllByIDs(ids)
	if err != nil {
		return domain.Order{}, fmt.Errorf("resolve products: %w", err)
	}
	if len(products) < len(requested) {
		return domain.Order{}, domain.ErrProductNotFound
	}

	// Считаем остатки по всем позициям до какой-либо мутации:
	// одна недостаточная позиция отменяет заказ целиком.
	updates := make([]domain.StockAdjustment, 0, len(products))
	insufficient := false
	for _, product := range products {
		line, ok := byProduct[product.ID]
		if !ok {
			// Каталог обязан возвращать подмножество запрошенных товаров.
			return domain.Order{}, fmt.Errorf("catalog resolved unrequested product %s", product.ID)
		}
		remaining := product.Remaining(line.Qty)
		if remaining < 0 {
			insufficient = true
		}
		updates = append(updates, domain.StockAdjustment{ProductID: product.ID, Quantity: remaining})
	}
	if insufficient {
		return domain.Order{}, domain.ErrInsufficientStock
	}

	now := time.Now().UTC()
	orderLines := make([]domain.OrderLine, 0, len(products))
	payloadLines := make([]kafka.OrderLinePayload, 0, len(products))
	var amountMinor int64
	for _, product := range products {
		line := byProduct[product.ID]
		orderLines = append(orderLines, domain.OrderLine{
			ID:         uuid.NewString(),
			ProductID:  product.ID,
			Qty:        line.Qty,
			PriceMinor: product.PriceMinor,
			CreatedAt:  now,
		})
		payloadLines = append(payloadLines, kafka.OrderLinePayload{
			ProductID:  product.ID,
			Qty:        line.Qty,
			PriceMinor: product.PriceMinor,
		})
		amountMinor += int64(line.Qty) * product.PriceMinor
	}

	order := domain.Order{
		ID:          uuid.NewString(),
		CustomerID:  customer.ID,
		AmountMinor: amountMinor,
		Lines:       orderLines,
		CreatedAt:   now,
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("order invariants violated: %v", errs)
	}

	if err := repos.Orders().Create(order); err != nil {
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}
	if err := repos.Products().UpdateQuantities(updates); err != nil {
		return domain.Order{}, fmt.Errorf("decrement stock: %w", err)
	}

	if err := s.enqueuePlacedEvent(repos.Outbox(), order, payloadLines); err != nil {
		return domain.Order{}, err
	}
	if err := repos.Timeline().Append(domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     timelineEventOrderPlaced,
		Occurred: now,
	}); err != nil {
		return domain.Order{}, fmt.Errorf("append timeline event: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordTimelineEvent()
	}

	return order, nil
}

// enqueuePlacedEvent ставит событие `order.placed` в transactional outbox.
func (s *Service) enqueuePlacedEvent(outbox domain.OutboxRepository, order domain.Order, lines []kafka.OrderLinePayload) error {
	event := kafka.NewOrderPlacedEvent(order.ID, order.CustomerID, order.AmountMinor, lines)
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order placed event: %w", err)
	}

	if _, err := outbox.Enqueue(domain.OutboxMessage{
		AggregateType: kafka.AggregateTypeOrder,
		AggregateID:   order.ID,
		EventType:     string(kafka.EventTypeOrderPlaced),
		Payload:       payload,
	}); err != nil {
		return fmt.Errorf("enqueue outbox event: %w", err)
	}
	if s.metrics != nil {
		s.metrics.RecordOutboxEvent()
	}
	return nil
}

// GetOrder возвращает оформленный заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var order domain.Order
	err := s.uow.Do(ctx, func(repos domain.Repositories) error {
		var err error
		order, err = repos.Orders().Get(id)
		return err
	})
	return order, err
}

// ListOrders возвращает заказы клиента, новые первыми.
func (s *Service) ListOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = defaultListOrdersLimit
	}

	var result []domain.Order
	err := s.uow.Do(ctx, func(repos domain.Repositories) error {
		var err error
		result, err = repos.Orders().ListByCustomer(customerID, limit)
		return err
	})
	return result, err
}

// validateRequest проверяет параметры запроса до обращения к хранилищу.
func validateRequest(customerID string, lines []domain.OrderLineRequest) error {
	if customerID == "" {
		return domain.ErrCustomerRequired
	}
	if len(lines) == 0 {
		return domain.ErrLinesRequired
	}
	for _, line := range lines {
		if line.Qty <= 0 {
			return domain.ErrLineQtyInvalid
		}
	}
	return nil
}

// mergeLines суммирует количество по повторяющимся товарам,
// сохраняя порядок первого появления.
func mergeLines(lines []domain.OrderLineRequest) []domain.OrderLineRequest {
	merged := make([]domain.OrderLineRequest, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if at, ok := index[line.ProductID]; ok {
			merged[at].Qty += line.Qty
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

func (s *Service) observeFailure(customerID string, err error) {
	entry := s.logger.WithError(err).WithField("customer_id", customerID)
	switch {
	case domain.IsPlacementRejection(err):
		entry.Info("order placement rejected")
	default:
		entry.Error("order placement failed")
	}
	s.recordResult(resultForError(err))
}

func (s *Service) recordResult(result string) {
	if s.metrics != nil {
		s.metrics.RecordPlacement(result)
	}
}

func resultForError(err error) string {
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		return metrics.ResultCustomerNotFound
	case errors.Is(err, domain.ErrProductNotFound):
		return metrics.ResultProductNotFound
	case errors.Is(err, domain.ErrInsufficientStock):
		return metrics.ResultInsufficientStock
	case domain.IsStockConflict(err):
		return metrics.ResultStockConflict
	default:
		return metrics.ResultError
	}
}
