package orderworker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thudocloud/food-ordering-platform/internal/domain/orders"
	"github.com/thudocloud/food-ordering-platform/internal/ports"
	"github.com/thudocloud/food-ordering-platform/internal/shared/contracts"
	"github.com/thudocloud/food-ordering-platform/internal/shared/logger"
)

// ConfirmationService drives one consumed task through
// PENDING -> PROCESSING -> notify -> CONFIRMED. Both transitions are
// compare-and-swap "set to X" operations, so redelivering the same task
// converges on CONFIRMED instead of compounding.
type ConfirmationService struct {
	uow           ports.UnitOfWork
	repo          ports.OrderRepository
	cache         ports.OrderCache
	notifier      ports.Notifier
	logger        *logger.Logger
	notifyTimeout time.Duration
}

var _ ports.ConfirmationService = (*ConfirmationService)(nil)

// NewConfirmationService creates the worker-side service.
func NewConfirmationService(
	uow ports.UnitOfWork,
	repo ports.OrderRepository,
	cache ports.OrderCache,
	notifier ports.Notifier,
	notifyTimeout time.Duration,
	log *logger.Logger,
) *ConfirmationService {
	return &ConfirmationService{
		uow:           uow,
		repo:          repo,
		cache:         cache,
		notifier:      notifier,
		logger:        log,
		notifyTimeout: notifyTimeout,
	}
}

// Process handles a single confirmation task. The task is only a projection,
// so the order is re-read from the store before acting. Every failure is
// marked retryable; the consumer bounds the retries.
func (service *ConfirmationService) Process(ctx context.Context, task contracts.ConfirmationTask) error {
	var (
		order   *orders.Order
		applied bool
	)
	err := service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		order, err = service.repo.GetByID(txCtx, task.OrderID)
		if err != nil {
			return err
		}
		applied, err = service.repo.UpdateStatusCAS(txCtx, order.ID, orders.StatusPending, orders.StatusProcessing)
		return err
	})
	if errors.Is(err, orders.ErrNotFound) {
		// an id that never existed loops forever if requeued unconditionally;
		// the bounded attempt budget moves it to the dead-letter queue
		return Retryable(fmt.Errorf("order id %d: %w", task.OrderID, orders.ErrNotFound))
	}
	if err != nil {
		service.logger.Error(ctx, "db_transaction_failed", "Failed to set status to processing", err)
		return Retryable(err)
	}

	service.cache.Invalidate(ctx, order.Number)

	if applied {
		service.logger.Info(ctx, "order_processing", "Order set to processing", map[string]any{
			"order_number": order.Number,
		})
	} else if order.Status != orders.StatusProcessing {
		// redelivery of a fully processed task; nothing left to do
		service.logger.Debug(ctx, "task_already_done", "Order already past processing; skipping", map[string]any{
			"order_number": order.Number,
			"status":       string(order.Status),
		})
		return nil
	}

	// customer notification, bounded so a stalled collaborator surfaces as a
	// retryable failure instead of hanging the worker
	notifyCtx, cancel := context.WithTimeout(ctx, service.notifyTimeout)
	defer cancel()
	if err := service.notifier.SendConfirmation(notifyCtx, task.CustomerEmail, order.Number, order.Total); err != nil {
		service.logger.Error(ctx, "notification_failed", "Failed to send confirmation", err)
		return Retryable(fmt.Errorf("send confirmation: %w", err))
	}

	err = service.uow.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		applied, err = service.repo.UpdateStatusCAS(txCtx, order.ID, orders.StatusProcessing, orders.StatusConfirmed)
		return err
	})
	if err != nil {
		service.logger.Error(ctx, "db_transaction_failed", "Failed to set status to confirmed", err)
		return Retryable(err)
	}

	service.cache.Invalidate(ctx, order.Number)

	if applied {
		service.logger.Info(ctx, "order_confirmed", "Order confirmed", map[string]any{
			"order_number": order.Number,
		})
	}
	return nil
}
