package contracts

// ConfirmationTask is published to the "order_confirmations" queue after a
// successful DB commit. It is a projection of the order, not the record of
// truth; the worker re-reads the store before acting on it.
type ConfirmationTask struct {
	OrderID       int64   `json:"order_id"`
	OrderNumber   string  `json:"order_number"`
	CustomerEmail string  `json:"customer_email"`
	Total         float64 `json:"total"` // total in dollars
}
