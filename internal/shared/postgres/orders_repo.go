package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/thudocloud/food-ordering-platform/internal/domain/orders"
	"github.com/thudocloud/food-ordering-platform/internal/ports"
)

// OrdersRepo implements persistence for orders using pgx and SQL.
type OrdersRepo struct{}

// NewOrdersRepo constructs a new OrdersRepo.
func NewOrdersRepo() ports.OrderRepository {
	return &OrdersRepo{}
}

const orderColumns = `id, number, customer_name, customer_email, customer_phone, delivery_address,
		items, subtotal::text, tax::text, total::text, status, notes, created_at, updated_at`

// Create inserts the order in a single row. A duplicate number surfaces as a
// constraint StoreError wrapping ErrDuplicateNumber; creation must fail, not
// overwrite.
func (r *OrdersRepo) Create(ctx context.Context, order *orders.Order) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("marshal items: %w", err)
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (number, customer_name, customer_email, customer_phone, delivery_address,
			items, subtotal, tax, total, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10, $11)
		RETURNING id, status, created_at, updated_at`,
		order.Number,
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.DeliveryAddress,
		items,
		order.Subtotal.StringFixed(2),
		order.Tax.StringFixed(2),
		order.Total.StringFixed(2),
		string(order.Status),
		order.Notes,
	).Scan(&order.ID, &order.Status, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return mapStoreError(err)
	}
	return nil
}

// GetByNumber retrieves an order by its unique number.
func (r *OrdersRepo) GetByNumber(ctx context.Context, number string) (*orders.Order, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE number = $1`, number)
	return scanOrder(row)
}

// GetByID retrieves an order by its numeric id.
func (r *OrdersRepo) GetByID(ctx context.Context, id int64) (*orders.Order, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

// UpdateStatus sets any status unconditionally and stamps updated_at
// atomically with the change. Administrative override, not the worker path.
func (r *OrdersRepo) UpdateStatus(ctx context.Context, id int64, next orders.OrderStatus) (*orders.Order, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, id, string(next))
	return scanOrder(row)
}

// UpdateStatusCAS updates the order status using a compare-and-swap approach.
// Zero rows means the order already moved past expected (or does not exist);
// the caller treats that as an idempotent skip.
func (r *OrdersRepo) UpdateStatusCAS(ctx context.Context, id int64, expected, next orders.OrderStatus) (bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	var applied bool
	err = tx.QueryRow(ctx, `
		UPDATE orders
		SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING true`, id, string(expected), string(next)).Scan(&applied)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, mapStoreError(err)
	}
	return applied, nil
}

// List returns a page ordered by creation time descending, plus the total
// count independent of the pagination window.
func (r *OrdersRepo) List(ctx context.Context, filter ports.OrderFilter) ([]orders.Order, int64, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, 0, err
	}

	var status *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}

	var total int64
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM orders
		WHERE $1::text IS NULL OR status = $1`, status).Scan(&total)
	if err != nil {
		return nil, 0, mapStoreError(err)
	}

	rows, err := tx.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE $1::text IS NULL OR status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, 0, mapStoreError(err)
	}
	defer rows.Close()

	var page []orders.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		page = append(page, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapStoreError(err)
	}

	return page, total, nil
}

// Stats aggregates order counts per status and total revenue.
func (r *OrdersRepo) Stats(ctx context.Context) (*orders.Stats, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT status, count(*), coalesce(sum(total), 0)::text
		FROM orders
		GROUP BY status`)
	if err != nil {
		return nil, mapStoreError(err)
	}
	defer rows.Close()

	stats := &orders.Stats{ByStatus: map[orders.OrderStatus]int64{}}
	for rows.Next() {
		var (
			status  string
			count   int64
			revenue string
		)
		if err := rows.Scan(&status, &count, &revenue); err != nil {
			return nil, mapStoreError(err)
		}
		rev, err := decimal.NewFromString(revenue)
		if err != nil {
			return nil, fmt.Errorf("parse revenue: %w", err)
		}
		stats.ByStatus[orders.OrderStatus(status)] = count
		stats.TotalOrders += count
		stats.TotalRevenue = stats.TotalRevenue.Add(rev)
	}
	if err := rows.Err(); err != nil {
		return nil, mapStoreError(err)
	}

	return stats, nil
}

// scanOrder reads one full order row, parsing money columns from their text
// representation to keep NUMERIC exact.
func scanOrder(row pgx.Row) (*orders.Order, error) {
	var (
		order    orders.Order
		items    []byte
		subtotal string
		tax      string
		total    string
		status   string
	)
	err := row.Scan(
		&order.ID, &order.Number, &order.CustomerName, &order.CustomerEmail,
		&order.CustomerPhone, &order.DeliveryAddress,
		&items, &subtotal, &tax, &total, &status, &order.Notes,
		&order.CreatedAt, &order.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, orders.ErrNotFound
	}
	if err != nil {
		return nil, mapStoreError(err)
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshal items: %w", err)
	}
	if order.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
		return nil, fmt.Errorf("parse subtotal: %w", err)
	}
	if order.Tax, err = decimal.NewFromString(tax); err != nil {
		return nil, fmt.Errorf("parse tax: %w", err)
	}
	if order.Total, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	order.Status = orders.OrderStatus(status)

	return &order, nil
}

// mapStoreError classifies pg failures: unique violations are constraint
// errors (non-retryable), everything else is treated as transient.
func mapStoreError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return &orders.StoreError{Transient: false, Err: orders.ErrDuplicateNumber}
	}
	return &orders.StoreError{Transient: true, Err: err}
}
