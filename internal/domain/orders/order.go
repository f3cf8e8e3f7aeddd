package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is a priced line item. Unit price and subtotal are fixed by the
// pricing collaborator at creation time and never recomputed.
type OrderItem struct {
	ItemID    string          `json:"item_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

// Order is a priced snapshot of a customer's order. Monetary values are
// written once at creation; later menu or price changes do not affect it.
type Order struct {
	ID              int64
	Number          string // follows the format: ORD-<UTC timestamp>-<suffix>
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   *string
	DeliveryAddress *string
	Items           []OrderItem
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	Total           decimal.Decimal
	Status          OrderStatus
	Notes           *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Stats is an aggregate view over all persisted orders.
type Stats struct {
	TotalOrders  int64
	ByStatus     map[OrderStatus]int64
	TotalRevenue decimal.Decimal
}

// ConsistentTotals reports whether total == subtotal + tax, the invariant
// every order must hold from the moment it is created.
func (order *Order) ConsistentTotals() bool {
	return order.Subtotal.Add(order.Tax).Equal(order.Total)
}
