package order

import "time"

// Order is the projection persisted when an OrderCompleted event arrives.
// OrderID is the natural identifier and the idempotency key: the same domain
// event redelivered after a consumer restart maps to the same row.
type Order struct {
	OrderID     string    `json:"orderId"`
	CartID      string    `json:"cartId"`
	CustomerID  string    `json:"customerId"`
	TotalCents  int64     `json:"totalCents"`
	Currency    string    `json:"currency"`
	CompletedAt time.Time `json:"completedAt"`
}
