package kafka

import "time"

// EventType определяет тип события
type EventType string

const (
	// EventTypeOrderPlaced публикуется после успешного оформления заказа.
	EventTypeOrderPlaced EventType = "order.placed"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "sales.order.events"
	TopicDeadLetterQueue = "sales.dlq" // Dead Letter Queue для failed messages
)

const (
	// AggregateTypeOrder — тип агрегата в outbox-сообщениях о заказах.
	AggregateTypeOrder = "order"
)

// OrderLinePayload — позиция заказа в payload события.
type OrderLinePayload struct {
	ProductID  string `json:"product_id"`
	Qty        int32  `json:"qty"`
	PriceMinor int64  `json:"price_minor"`
}

// OrderPlacedEvent представляет событие успешного оформления заказа.
type OrderPlacedEvent struct {
	EventType   EventType          `json:"event_type"`
	OrderID     string             `json:"order_id"`
	CustomerID  string             `json:"customer_id"`
	AmountMinor int64              `json:"amount_minor"`
	Lines       []OrderLinePayload `json:"lines"`
	Timestamp   time.Time          `json:"timestamp"`
}

// NewOrderPlacedEvent создает событие об оформленном заказе.
func NewOrderPlacedEvent(orderID, customerID string, amountMinor int64, lines []OrderLinePayload) *OrderPlacedEvent {
	return &OrderPlacedEvent{
		EventType:   EventTypeOrderPlaced,
		OrderID:     orderID,
		CustomerID:  customerID,
		AmountMinor: amountMinor,
		Lines:       lines,
		Timestamp:   time.Now().UTC(),
	}
}
