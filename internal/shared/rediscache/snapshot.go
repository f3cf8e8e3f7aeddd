package rediscache

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/thudocloud/food-ordering-platform/internal/domain/orders"
)

// snapshot is the serialized form of an order in the cache. Money is kept as
// decimal (string-encoded) so the snapshot round-trips exactly.
type snapshot struct {
	ID              int64           `json:"id"`
	Number          string          `json:"number"`
	CustomerName    string          `json:"customer_name"`
	CustomerEmail   string          `json:"customer_email"`
	CustomerPhone   *string         `json:"customer_phone,omitempty"`
	DeliveryAddress *string         `json:"delivery_address,omitempty"`
	Items           []orders.OrderItem `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	Notes           *string         `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func newSnapshot(order *orders.Order) snapshot {
	return snapshot{
		ID:              order.ID,
		Number:          order.Number,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		CustomerPhone:   order.CustomerPhone,
		DeliveryAddress: order.DeliveryAddress,
		Items:           order.Items,
		Subtotal:        order.Subtotal,
		Tax:             order.Tax,
		Total:           order.Total,
		Status:          string(order.Status),
		Notes:           order.Notes,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func (s snapshot) toOrder() *orders.Order {
	return &orders.Order{
		ID:              s.ID,
		Number:          s.Number,
		CustomerName:    s.CustomerName,
		CustomerEmail:   s.CustomerEmail,
		CustomerPhone:   s.CustomerPhone,
		DeliveryAddress: s.DeliveryAddress,
		Items:           s.Items,
		Subtotal:        s.Subtotal,
		Tax:             s.Tax,
		Total:           s.Total,
		Status:          orders.OrderStatus(s.Status),
		Notes:           s.Notes,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}
