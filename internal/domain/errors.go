package domain

import "errors"

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = errors.New("customer_id is required")
	// Ошибка отсутствия хотя бы одной позиции в запросе на заказ.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка при некорректном количестве товара в позиции (<= 0).
	ErrLineQtyInvalid = errors.New("line qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = errors.New("order amount does not match lines sum")
	// ErrCustomerNotFound возвращается, если клиент с таким id не существует.
	ErrCustomerNotFound = errors.New("customer does not exist")
	// ErrProductNotFound возвращается, если хотя бы один запрошенный товар не найден в каталоге.
	ErrProductNotFound = errors.New("product does not exist")
	// ErrInsufficientStock возвращается, когда остатка товара не хватает на запрошенное количество.
	ErrInsufficientStock = errors.New("insufficient stock to fulfill the order")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderExists сигнализирует о попытке создать заказ с занятым идентификатором.
	ErrOrderExists = errors.New("order already exists")
	// ErrStockConflict — конкурентное обновление остатков не удалось после всех повторов.
	ErrStockConflict = errors.New("stock update conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
)

// IsPlacementRejection проверяет, относится ли ошибка к пользовательским отказам
// операции оформления заказа (в отличие от инфраструктурных сбоев).
func IsPlacementRejection(err error) bool {
	return errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrInsufficientStock)
}

// IsStockConflict проверяет, является ли ошибка конфликтом конкурентного обновления остатков.
func IsStockConflict(err error) bool {
	return errors.Is(err, ErrStockConflict)
}
