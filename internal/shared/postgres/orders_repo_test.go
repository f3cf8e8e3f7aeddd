package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	"github.com/thudocloud/food-ordering-platform/internal/domain/orders"
	"github.com/thudocloud/food-ordering-platform/internal/ports"
)

// txContext begins a mock transaction and injects it the way WithinTx does.
func txContext(t *testing.T, mock pgxmock.PgxPoolIface) context.Context {
	t.Helper()
	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	if err != nil {
		t.Fatalf("failed to begin mock tx: %v", err)
	}
	return context.WithValue(context.Background(), txKey{}, tx)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

var orderColumnNames = []string{
	"id", "number", "customer_name", "customer_email", "customer_phone", "delivery_address",
	"items", "subtotal", "tax", "total", "status", "notes", "created_at", "updated_at",
}

func sampleRow(now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(orderColumnNames).AddRow(
		int64(42), "ORD-20250314150926-AB12CD34", "Alice", "alice@example.com", nil, nil,
		[]byte(`[{"item_id":"pizza_margherita","name":"Margherita Pizza","quantity":2,"unit_price":"8.99","subtotal":"17.98"}]`),
		"21.97", "1.76", "23.73", "pending", nil, now, now,
	)
}

// anyCreateArgs matches the 11 insert parameters when their values are
// irrelevant to the case under test.
func anyCreateArgs() []any {
	args := make([]any, 11)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestRepoRequiresTransaction(t *testing.T) {
	repo := NewOrdersRepo()
	if _, err := repo.GetByNumber(context.Background(), "ORD-X"); err == nil {
		t.Fatal("expected error when no transaction is in context")
	}
}

func TestCreate(t *testing.T) {
	mock := newMock(t)
	repo := NewOrdersRepo()
	now := time.Now()

	t.Run("success", func(t *testing.T) {
		ctx := txContext(t, mock)
		mock.ExpectQuery("INSERT INTO orders").
			WithArgs("ORD-20250314150926-AB12CD34", "Alice", "alice@example.com",
				pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
				"21.97", "1.76", "23.73", "pending", pgxmock.AnyArg()).
			WillReturnRows(
				pgxmock.NewRows([]string{"id", "status", "created_at", "updated_at"}).
					AddRow(int64(42), orders.StatusPending, now, now))

		order := &orders.Order{
			Number:        "ORD-20250314150926-AB12CD34",
			CustomerName:  "Alice",
			CustomerEmail: "alice@example.com",
			Subtotal:      decimal.RequireFromString("21.97"),
			Tax:           decimal.RequireFromString("1.76"),
			Total:         decimal.RequireFromString("23.73"),
			Status:        orders.StatusPending,
		}
		if err := repo.Create(ctx, order); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.ID != 42 {
			t.Fatalf("expected id 42, got %d", order.ID)
		}
	})

	t.Run("duplicate number", func(t *testing.T) {
		ctx := txContext(t, mock)
		mock.ExpectQuery("INSERT INTO orders").
			WithArgs(anyCreateArgs()...).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		err := repo.Create(ctx, &orders.Order{Number: "ORD-DUP"})
		if !errors.Is(err, orders.ErrDuplicateNumber) {
			t.Fatalf("expected duplicate number error, got %v", err)
		}
		var storeErr *orders.StoreError
		if !errors.As(err, &storeErr) || storeErr.Transient {
			t.Fatalf("expected non-transient store error, got %v", err)
		}
	})

	t.Run("transient failure", func(t *testing.T) {
		ctx := txContext(t, mock)
		mock.ExpectQuery("INSERT INTO orders").
			WithArgs(anyCreateArgs()...).
			WillReturnError(errors.New("connection reset"))

		err := repo.Create(ctx, &orders.Order{Number: "ORD-ERR"})
		var storeErr *orders.StoreError
		if !errors.As(err, &storeErr) || !storeErr.Transient {
			t.Fatalf("expected transient store error, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetByNumber(t *testing.T) {
	mock := newMock(t)
	repo := NewOrdersRepo()
	now := time.Now()

	t.Run("found", func(t *testing.T) {
		ctx := txContext(t, mock)
		mock.ExpectQuery("FROM orders WHERE number =").
			WithArgs("ORD-20250314150926-AB12CD34").
			WillReturnRows(sampleRow(now))

		order, err := repo.GetByNumber(ctx, "ORD-20250314150926-AB12CD34")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if order.ID != 42 || order.Status != orders.StatusPending {
			t.Fatalf("unexpected order: %+v", order)
		}
		if !order.Subtotal.Equal(decimal.RequireFromString("21.97")) {
			t.Fatalf("expected exact subtotal 21.97, got %s", order.Subtotal)
		}
		if !order.ConsistentTotals() {
			t.Fatal("expected consistent totals after scan")
		}
		if len(order.Items) != 1 || order.Items[0].ItemID != "pizza_margherita" {
			t.Fatalf("unexpected items: %+v", order.Items)
		}
	})

	t.Run("missing", func(t *testing.T) {
		ctx := txContext(t, mock)
		mock.ExpectQuery("FROM orders WHERE number =").
			WithArgs("ORD-MISSING").
			WillReturnError(pgx.ErrNoRows)

		if _, err := repo.GetByNumber(ctx, "ORD-MISSING"); !errors.Is(err, orders.ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusCAS(t *testing.T) {
	mock := newMock(t)
	repo := NewOrdersRepo()

	t.Run("applied", func(t *testing.T) {
		ctx := txContext(t, mock)
		mock.ExpectQuery("UPDATE orders").
			WithArgs(int64(42), "pending", "processing").
			WillReturnRows(pgxmock.NewRows([]string{"applied"}).AddRow(true))

		applied, err := repo.UpdateStatusCAS(ctx, 42, orders.StatusPending, orders.StatusProcessing)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !applied {
			t.Fatal("expected CAS to apply")
		}
	})

	t.Run("already moved on", func(t *testing.T) {
		ctx := txContext(t, mock)
		mock.ExpectQuery("UPDATE orders").
			WithArgs(int64(42), "pending", "processing").
			WillReturnError(pgx.ErrNoRows)

		applied, err := repo.UpdateStatusCAS(ctx, 42, orders.StatusPending, orders.StatusProcessing)
		if err != nil {
			t.Fatalf("zero rows must not be an error, got %v", err)
		}
		if applied {
			t.Fatal("expected CAS to report not applied")
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestList(t *testing.T) {
	mock := newMock(t)
	repo := NewOrdersRepo()
	now := time.Now()

	t.Run("unfiltered", func(t *testing.T) {
		ctx := txContext(t, mock)
		mock.ExpectQuery("SELECT count").
			WithArgs(pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))
		mock.ExpectQuery("ORDER BY created_at DESC").
			WithArgs(pgxmock.AnyArg(), 50, 0).
			WillReturnRows(sampleRow(now))

		page, total, err := repo.List(ctx, ports.OrderFilter{Limit: 50})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 7 || len(page) != 1 {
			t.Fatalf("unexpected result: len=%d total=%d", len(page), total)
		}
	})

	t.Run("filtered by status", func(t *testing.T) {
		ctx := txContext(t, mock)
		status := orders.StatusPending
		mock.ExpectQuery("SELECT count").
			WithArgs(pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
		mock.ExpectQuery("ORDER BY created_at DESC").
			WithArgs(pgxmock.AnyArg(), 10, 5).
			WillReturnRows(sampleRow(now))

		_, total, err := repo.List(ctx, ports.OrderFilter{Status: &status, Limit: 10, Offset: 5})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if total != 1 {
			t.Fatalf("unexpected total %d", total)
		}
	})

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStats(t *testing.T) {
	mock := newMock(t)
	repo := NewOrdersRepo()
	ctx := txContext(t, mock)

	mock.ExpectQuery("SELECT status, count").WillReturnRows(
		pgxmock.NewRows([]string{"status", "count", "revenue"}).
			AddRow("pending", int64(2), "47.46").
			AddRow("confirmed", int64(1), "23.73"))

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.TotalOrders != 3 {
		t.Fatalf("expected 3 orders, got %d", stats.TotalOrders)
	}
	if stats.ByStatus[orders.StatusPending] != 2 || stats.ByStatus[orders.StatusConfirmed] != 1 {
		t.Fatalf("unexpected breakdown: %+v", stats.ByStatus)
	}
	if !stats.TotalRevenue.Equal(decimal.RequireFromString("71.19")) {
		t.Fatalf("expected revenue 71.19, got %s", stats.TotalRevenue)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
