package orderservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/thudocloud/food-ordering-platform/internal/domain/orders"
	"github.com/thudocloud/food-ordering-platform/internal/ports"
	"github.com/thudocloud/food-ordering-platform/internal/shared/contracts"
	"github.com/thudocloud/food-ordering-platform/internal/shared/logger"
)

// numberAttempts bounds regeneration when a generated order number collides
// with an existing one. Generation is best-effort unique; the store's unique
// constraint is the actual guarantee.
const numberAttempts = 3

// Service implements ports.OrderService: the producer side of the pipeline.
type Service struct {
	uow            ports.UnitOfWork
	repo           ports.OrderRepository
	cache          ports.OrderCache
	publisher      ports.TaskPublisher
	pricing        ports.PricingClient
	logger         *logger.Logger
	pricingTimeout time.Duration
}

var _ ports.OrderService = (*Service)(nil)

// New creates the order service with its dependencies.
func New(
	uow ports.UnitOfWork,
	repo ports.OrderRepository,
	cache ports.OrderCache,
	publisher ports.TaskPublisher,
	pricing ports.PricingClient,
	pricingTimeout time.Duration,
	log *logger.Logger,
) *Service {
	return &Service{
		uow:            uow,
		repo:           repo,
		cache:          cache,
		publisher:      publisher,
		pricing:        pricing,
		logger:         log,
		pricingTimeout: pricingTimeout,
	}
}

// CreateOrder prices the items, persists the order in PENDING, publishes a
// confirmation task, and primes the cache. The returned bool reports whether
// the task was enqueued; a publish failure never rolls back the order.
func (service *Service) CreateOrder(ctx context.Context, cmd ports.CreateOrderCommand) (*orders.Order, bool, error) {
	if err := validateCreate(&cmd); err != nil {
		return nil, false, err
	}

	// price the items; a stalled collaborator must not hang the request
	priceCtx, cancel := context.WithTimeout(ctx, service.pricingTimeout)
	defer cancel()
	quote, err := service.pricing.Calculate(priceCtx, cmd.Items)
	if err != nil {
		return nil, false, err
	}

	order := buildOrder(cmd, quote)

	// persist; regenerate the number on a duplicate-key collision
	for attempt := 1; ; attempt++ {
		order.Number = orders.NewNumber(time.Now())
		err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
			return service.repo.Create(txCtx, order)
		})
		if err == nil {
			break
		}
		if errors.Is(err, orders.ErrDuplicateNumber) && attempt < numberAttempts {
			service.logger.Warn(ctx, "order_number_collision", "Regenerating order number after duplicate", map[string]any{
				"number":  order.Number,
				"attempt": attempt,
			})
			continue
		}
		service.logger.Error(ctx, "db_transaction_failed", "Failed to create order", err)
		return nil, false, err
	}

	service.logger.Info(ctx, "order_created", "Order persisted", map[string]any{
		"order_number": order.Number,
		"total":        order.Total.StringFixed(2),
	})

	// hand off to the worker; on failure the order stays PENDING until
	// reconciled, and the caller learns about it through the queued flag
	queued := true
	task := contracts.ConfirmationTask{
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		CustomerEmail: order.CustomerEmail,
		Total:         order.Total.InexactFloat64(),
	}
	if err := service.publisher.PublishConfirmation(ctx, task); err != nil {
		queued = false
		service.logger.Warn(ctx, "order_not_queued", "Order created but confirmation task not enqueued", map[string]any{
			"order_number": order.Number,
			"error":        err.Error(),
		})
	}

	// write-through prime; purely an optimization
	service.cache.Put(ctx, order.Number, order)

	return order, queued, nil
}

// GetOrder serves reads through the cache, filling it on a store hit. The
// second return value reports cache hit vs store read.
func (service *Service) GetOrder(ctx context.Context, number string) (*orders.Order, bool, error) {
	if order, ok := service.cache.Get(ctx, number); ok {
		return order, true, nil
	}

	var order *orders.Order
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = service.repo.GetByNumber(txCtx, number)
		return err
	})
	if err != nil {
		return nil, false, err
	}

	service.cache.Put(ctx, number, order)
	return order, false, nil
}

// ListOrders returns a recency-ordered page plus the total count.
func (service *Service) ListOrders(ctx context.Context, filter ports.OrderFilter) ([]orders.Order, int64, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var (
		page  []orders.Order
		total int64
	)
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		page, total, err = service.repo.List(txCtx, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	return page, total, nil
}

// UpdateStatus is the administrative override: any status value may be set,
// outside the worker's own state machine. The cache entry is invalidated
// synchronously after the commit, before returning.
func (service *Service) UpdateStatus(ctx context.Context, number string, next orders.OrderStatus) (*orders.Order, error) {
	var updated *orders.Order
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		current, err := service.repo.GetByNumber(txCtx, number)
		if err != nil {
			return err
		}
		updated, err = service.repo.UpdateStatus(txCtx, current.ID, next)
		return err
	})
	if err != nil {
		return nil, err
	}

	service.cache.Invalidate(ctx, number)

	service.logger.Info(ctx, "order_status_updated", "Order status updated", map[string]any{
		"order_number": number,
		"new_status":   string(next),
	})
	return updated, nil
}

// CancelOrder transitions an order to CANCELLED. Orders already DELIVERED or
// CANCELLED are rejected unchanged.
func (service *Service) CancelOrder(ctx context.Context, number string) (*orders.Order, error) {
	var cancelled *orders.Order
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		current, err := service.repo.GetByNumber(txCtx, number)
		if err != nil {
			return err
		}
		if !current.Status.Cancellable() {
			return &orders.TransitionError{Number: number, Status: current.Status}
		}
		cancelled, err = service.repo.UpdateStatus(txCtx, current.ID, orders.StatusCancelled)
		return err
	})
	if err != nil {
		return nil, err
	}

	service.cache.Invalidate(ctx, number)

	service.logger.Info(ctx, "order_cancelled", "Order cancelled", map[string]any{
		"order_number": number,
	})
	return cancelled, nil
}

// Stats aggregates counts per status and total revenue.
func (service *Service) Stats(ctx context.Context) (*orders.Stats, error) {
	var stats *orders.Stats
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		stats, err = service.repo.Stats(txCtx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// --- helpers ---

func validateCreate(cmd *ports.CreateOrderCommand) error {
	cmd.CustomerName = strings.TrimSpace(cmd.CustomerName)
	if len(cmd.CustomerName) < 1 || len(cmd.CustomerName) > 100 {
		return &orders.ValidationError{Field: "customer_name", Reason: "must be 1-100 characters"}
	}

	cmd.CustomerEmail = strings.TrimSpace(cmd.CustomerEmail)
	if cmd.CustomerEmail == "" || !strings.Contains(cmd.CustomerEmail, "@") {
		return &orders.ValidationError{Field: "customer_email", Reason: "must be a valid email address"}
	}

	if len(cmd.Items) == 0 {
		return &orders.ValidationError{Field: "items", Reason: "must be a non-empty list"}
	}
	for i, it := range cmd.Items {
		if strings.TrimSpace(it.ItemID) == "" {
			return &orders.ValidationError{Field: "items", Reason: "item_id required for each item"}
		}
		if it.Quantity < 1 || it.Quantity > 100 {
			return &orders.ValidationError{Field: "items", Reason: "quantity must be between 1 and 100"}
		}
		cmd.Items[i].ItemID = strings.TrimSpace(it.ItemID)
	}

	return nil
}

// buildOrder assembles the priced snapshot in PENDING. Monetary values come
// from the quote and are never recomputed afterward.
func buildOrder(cmd ports.CreateOrderCommand, quote *ports.PriceQuote) *orders.Order {
	items := make([]orders.OrderItem, len(quote.Items))
	for i, line := range quote.Items {
		items[i] = orders.OrderItem{
			ItemID:    line.ItemID,
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
			Subtotal:  line.Subtotal,
		}
	}

	return &orders.Order{
		CustomerName:    cmd.CustomerName,
		CustomerEmail:   cmd.CustomerEmail,
		CustomerPhone:   cmd.CustomerPhone,
		DeliveryAddress: cmd.DeliveryAddress,
		Notes:           cmd.Notes,
		Items:           items,
		Subtotal:        quote.Subtotal,
		Tax:             quote.Tax,
		Total:           quote.Total,
		Status:          orders.StatusPending,
	}
}
