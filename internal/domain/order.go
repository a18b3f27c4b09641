package domain

import "time"

// OrderLineRequest — позиция запроса на оформление заказа, передаётся вызывающей стороной.
type OrderLineRequest struct {
	ProductID string
	Qty       int32
}

// OrderLine представляет одну персистентную позицию заказа.
type OrderLine struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID        string
	ProductID string
	Qty       int32
	// PriceMinor — снимок цены за единицу на момент оформления;
	// последующие изменения цены в каталоге на заказ не влияют.
	PriceMinor int64
	CreatedAt  time.Time
}

// Order агрегирует оформленный заказ и его позиции.
// После успешного оформления заказ неизменяем.
type Order struct {
	ID          string
	CustomerID  string
	AmountMinor int64
	Lines       []OrderLine
	CreatedAt   time.Time
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if len(o.Lines) == 0 {
		errs = append(errs, ErrLinesRequired)
	}

	// Сверяем сумму заказа с суммой позиций: qty * price.
	var calc int64
	for _, line := range o.Lines {
		if line.Qty <= 0 {
			errs = append(errs, ErrLineQtyInvalid)
		}
		if line.PriceMinor < 0 {
			errs = append(errs, ErrLinePriceInvalid)
		}
		calc += int64(line.Qty) * line.PriceMinor
	}
	if calc != o.AmountMinor {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}
