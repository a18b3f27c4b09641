package domain

import "time"

// Product описывает товар каталога.
type Product struct {
	ID string
	// SKU — внешний артикул товара.
	SKU  string
	Name string
	// Quantity — остаток на складе; инвариант: никогда не опускается ниже нуля.
	Quantity int32
	// PriceMinor — цена за единицу в минимальных денежных единицах (например, центы).
	PriceMinor int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StockAdjustment задаёт новый абсолютный остаток товара после оформления заказа.
type StockAdjustment struct {
	ProductID string
	// Quantity — остаток после списания, не дельта.
	Quantity int32
}

// Remaining возвращает остаток после списания qty единиц.
// Отрицательный результат означает, что заказ превышает доступный остаток.
func (p Product) Remaining(qty int32) int32 {
	return p.Quantity - qty
}
