package domain

import "time"

// Customer — запись о клиенте. Для оформления заказа важен только факт её существования;
// операция оформления клиента не изменяет.
type Customer struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
