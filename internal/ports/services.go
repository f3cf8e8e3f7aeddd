package ports

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/thudocloud/food-ordering-platform/internal/domain/orders"
	"github.com/thudocloud/food-ordering-platform/internal/shared/contracts"
)

// OrderService handles the producer side: create -> persist -> publish ->
// prime cache, plus reads, administrative status updates, and cancellation.
type OrderService interface {
	// CreateOrder returns the persisted order and whether the confirmation
	// task was successfully enqueued. A publish failure never rolls back the
	// committed order.
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (*orders.Order, bool, error)
	// GetOrder returns the order and whether it was served from cache.
	GetOrder(ctx context.Context, number string) (*orders.Order, bool, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]orders.Order, int64, error)
	UpdateStatus(ctx context.Context, number string, next orders.OrderStatus) (*orders.Order, error)
	CancelOrder(ctx context.Context, number string) (*orders.Order, error)
	Stats(ctx context.Context) (*orders.Stats, error)
}

type CreateOrderCommand struct {
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   *string
	DeliveryAddress *string
	Notes           *string
	Items           []ItemRequest
}

type ItemRequest struct {
	ItemID   string
	Quantity int
}

// ConfirmationService drives one consumed task through the worker's own
// state machine: PENDING -> PROCESSING -> notify -> CONFIRMED. Transitions
// are compare-and-swap so duplicate delivery converges instead of compounding.
type ConfirmationService interface {
	Process(ctx context.Context, task contracts.ConfirmationTask) error
}

// TaskPublisher enqueues confirmation tasks. Errors are reported, never fatal
// to order creation.
type TaskPublisher interface {
	PublishConfirmation(ctx context.Context, task contracts.ConfirmationTask) error
}

// PriceLine mirrors one priced line item from the pricing collaborator.
type PriceLine struct {
	ItemID    string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// PriceQuote is the pricing collaborator's response for an item list.
type PriceQuote struct {
	Items    []PriceLine
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// PricingClient calls the pricing collaborator. Any non-success response or
// timeout is a hard failure of order creation.
type PricingClient interface {
	Calculate(ctx context.Context, items []ItemRequest) (*PriceQuote, error)
	Menu(ctx context.Context) (json.RawMessage, error)
}

// Notifier performs the customer-notification side effect per confirmed
// order. Callers bound it with a context deadline and treat failure as
// retryable.
type Notifier interface {
	SendConfirmation(ctx context.Context, email, orderNumber string, total decimal.Decimal) error
}
