package ports

import (
	"context"

	"github.com/thudocloud/food-ordering-platform/internal/domain/orders"
)

// UnitOfWork wraps a function in a DB transaction.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderFilter narrows and paginates a listing.
type OrderFilter struct {
	Status *orders.OrderStatus
	Limit  int
	Offset int
}

// OrderRepository persists orders. Create MUST fail on a duplicate order
// number. All writes stamp updated_at atomically with the change.
type OrderRepository interface {
	Create(ctx context.Context, o *orders.Order) error
	GetByNumber(ctx context.Context, number string) (*orders.Order, error)
	GetByID(ctx context.Context, id int64) (*orders.Order, error)
	// UpdateStatus sets any status unconditionally (administrative override).
	UpdateStatus(ctx context.Context, id int64, next orders.OrderStatus) (*orders.Order, error)
	// UpdateStatusCAS applies expected -> next only if the order is still in
	// expected status. applied == false means the order has already moved on.
	UpdateStatusCAS(ctx context.Context, id int64, expected, next orders.OrderStatus) (applied bool, err error)
	List(ctx context.Context, filter OrderFilter) ([]orders.Order, int64, error)
	Stats(ctx context.Context) (*orders.Stats, error)
}

// OrderCache fronts order lookups. It is advisory: every method is
// best-effort and its failure never blocks correctness, only read latency.
type OrderCache interface {
	Get(ctx context.Context, number string) (*orders.Order, bool)
	Put(ctx context.Context, number string, o *orders.Order)
	Invalidate(ctx context.Context, number string)
	Ping(ctx context.Context) error
}
