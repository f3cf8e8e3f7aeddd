package orderworker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/thudocloud/food-ordering-platform/internal/domain/orders"
	"github.com/thudocloud/food-ordering-platform/internal/ports"
	"github.com/thudocloud/food-ordering-platform/internal/shared/contracts"
	"github.com/thudocloud/food-ordering-platform/internal/shared/logger"
)

// --- fakes ---

type fakeUnitOfWork struct{}

func (fakeUnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// memoryRepo holds a single order and applies CAS transitions against it.
type memoryRepo struct {
	order    *orders.Order
	casCalls []string
	casErr   error
}

func (r *memoryRepo) Create(context.Context, *orders.Order) error { panic("not implemented") }
func (r *memoryRepo) GetByNumber(context.Context, string) (*orders.Order, error) {
	panic("not implemented")
}
func (r *memoryRepo) GetByID(_ context.Context, id int64) (*orders.Order, error) {
	if r.order == nil || r.order.ID != id {
		return nil, orders.ErrNotFound
	}
	snapshot := *r.order
	return &snapshot, nil
}
func (r *memoryRepo) UpdateStatus(context.Context, int64, orders.OrderStatus) (*orders.Order, error) {
	panic("not implemented")
}
func (r *memoryRepo) UpdateStatusCAS(_ context.Context, id int64, expected, next orders.OrderStatus) (bool, error) {
	r.casCalls = append(r.casCalls, string(expected)+"->"+string(next))
	if r.casErr != nil {
		return false, r.casErr
	}
	if r.order == nil || r.order.ID != id || r.order.Status != expected {
		return false, nil
	}
	r.order.Status = next
	return true, nil
}
func (r *memoryRepo) List(context.Context, ports.OrderFilter) ([]orders.Order, int64, error) {
	panic("not implemented")
}
func (r *memoryRepo) Stats(context.Context) (*orders.Stats, error) { panic("not implemented") }

type fakeCache struct {
	invalidated []string
}

func (c *fakeCache) Get(context.Context, string) (*orders.Order, bool) { return nil, false }
func (c *fakeCache) Put(context.Context, string, *orders.Order)        {}
func (c *fakeCache) Invalidate(_ context.Context, number string) {
	c.invalidated = append(c.invalidated, number)
}
func (c *fakeCache) Ping(context.Context) error { return nil }

type fakeNotifier struct {
	err   error
	sends int
}

func (n *fakeNotifier) SendConfirmation(context.Context, string, string, decimal.Decimal) error {
	n.sends++
	return n.err
}

func testLogger() *logger.Logger { return logger.NewLogger("test") }

func pendingOrder() *orders.Order {
	return &orders.Order{
		ID:            42,
		Number:        "ORD-20250314150926-AB12CD34",
		CustomerEmail: "alice@example.com",
		Total:         decimal.RequireFromString("23.73"),
		Status:        orders.StatusPending,
	}
}

func taskFor(order *orders.Order) contracts.ConfirmationTask {
	return contracts.ConfirmationTask{
		OrderID:       order.ID,
		OrderNumber:   order.Number,
		CustomerEmail: order.CustomerEmail,
		Total:         order.Total.InexactFloat64(),
	}
}

func newService(repo *memoryRepo, cache *fakeCache, notify *fakeNotifier) *ConfirmationService {
	return NewConfirmationService(fakeUnitOfWork{}, repo, cache, notify, time.Second, testLogger())
}

// --- Process ---

func TestProcessConfirmsPendingOrder(t *testing.T) {
	repo := &memoryRepo{order: pendingOrder()}
	cache := &fakeCache{}
	notify := &fakeNotifier{}
	svc := newService(repo, cache, notify)

	if err := svc.Process(context.Background(), taskFor(repo.order)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.order.Status != orders.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", repo.order.Status)
	}
	if notify.sends != 1 {
		t.Fatalf("expected one notification, got %d", notify.sends)
	}
	// the stale pending snapshot must be dropped before and after notifying
	if len(cache.invalidated) != 2 {
		t.Fatalf("expected two cache invalidations, got %v", cache.invalidated)
	}
}

func TestProcessDuplicateDeliveryConverges(t *testing.T) {
	repo := &memoryRepo{order: pendingOrder()}
	notify := &fakeNotifier{}
	svc := newService(repo, &fakeCache{}, notify)
	task := taskFor(repo.order)

	if err := svc.Process(context.Background(), task); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := svc.Process(context.Background(), task); err != nil {
		t.Fatalf("second delivery: %v", err)
	}

	if repo.order.Status != orders.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", repo.order.Status)
	}
	if notify.sends != 1 {
		t.Fatalf("redelivery must not re-notify; got %d sends", notify.sends)
	}
}

func TestProcessResumesAfterCrashBetweenTransitions(t *testing.T) {
	// simulates a redelivery after the worker died post-PROCESSING but
	// pre-CONFIRMED: the first CAS misses, and processing continues
	order := pendingOrder()
	order.Status = orders.StatusProcessing
	repo := &memoryRepo{order: order}
	notify := &fakeNotifier{}
	svc := newService(repo, &fakeCache{}, notify)

	if err := svc.Process(context.Background(), taskFor(order)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.order.Status != orders.StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", repo.order.Status)
	}
	if notify.sends != 1 {
		t.Fatalf("expected one notification, got %d", notify.sends)
	}
}

func TestProcessUnknownOrderIsRetryable(t *testing.T) {
	repo := &memoryRepo{}
	svc := newService(repo, &fakeCache{}, &fakeNotifier{})

	err := svc.Process(context.Background(), contracts.ConfirmationTask{OrderID: 99})
	if err == nil {
		t.Fatal("expected error for unknown order")
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if !errors.Is(err, orders.ErrNotFound) {
		t.Fatalf("expected wrapped not-found, got %v", err)
	}
}

func TestProcessNotifierFailureIsRetryableAndLeavesProcessing(t *testing.T) {
	repo := &memoryRepo{order: pendingOrder()}
	notify := &fakeNotifier{err: errors.New("smtp refused")}
	svc := newService(repo, &fakeCache{}, notify)

	err := svc.Process(context.Background(), taskFor(repo.order))
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if repo.order.Status != orders.StatusProcessing {
		t.Fatalf("expected order left in processing for the retry, got %s", repo.order.Status)
	}
}

func TestProcessStoreFailureIsRetryable(t *testing.T) {
	repo := &memoryRepo{order: pendingOrder(), casErr: &orders.StoreError{Transient: true, Err: errors.New("conn reset")}}
	svc := newService(repo, &fakeCache{}, &fakeNotifier{})

	err := svc.Process(context.Background(), taskFor(repo.order))
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestRetryableClassification(t *testing.T) {
	if Retryable(nil) != nil {
		t.Fatal("Retryable(nil) must be nil")
	}
	base := errors.New("boom")
	wrapped := Retryable(base)
	if !IsRetryable(wrapped) {
		t.Fatal("expected wrapped error to be retryable")
	}
	if !errors.Is(wrapped, base) {
		t.Fatal("expected wrapped error to unwrap to the original")
	}
	if IsRetryable(base) {
		t.Fatal("unwrapped error must not be retryable")
	}
}
