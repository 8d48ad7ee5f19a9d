package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/markato-labs/markato/internal/platform/db"
	"github.com/markato-labs/markato/internal/platform/httpx"
)

// OrderFilter narrows listings. A zero UserID means all users.
type OrderFilter struct {
	UserID string
	Status Status
}

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	CreateOrder(ctx context.Context, order Order) error
	FindOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter, limit, offset int) ([]Order, error)
	CountOrders(ctx context.Context, filter OrderFilter) (int, error)
	UpdateOrderStatus(ctx context.Context, id string, status Status) (*Order, error)

	CreatePayment(ctx context.Context, payment Payment) error
	FindPayment(ctx context.Context, id string) (*Payment, error)
	FindPaymentByOrder(ctx context.Context, orderID string) (*Payment, error)
	UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) (*Payment, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const orderColumns = "id, user_id, status, total_amount, shipping_address, created_at, updated_at"

func (r *repository) CreateOrder(ctx context.Context, order Order) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO orders (id, user_id, status, total_amount, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())`,
		order.ID, order.UserID, order.Status, order.TotalAmount, order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("orders: create order: %w", err)
	}
	for _, item := range order.Items {
		_, err := r.db.Exec(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5)`,
			item.ID, order.ID, item.ProductID, item.Quantity, item.Price)
		if err != nil {
			return fmt.Errorf("orders: create order item: %w", err)
		}
	}
	return nil
}

func (r *repository) FindOrder(ctx context.Context, id string) (*Order, error) {
	row := r.db.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, order)
}

func (r *repository) hydrate(ctx context.Context, order *Order) (*Order, error) {
	items, err := r.listItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	payment, err := r.FindPaymentByOrder(ctx, order.ID)
	if err != nil && !errors.Is(err, httpx.ErrNotFound) {
		return nil, err
	}
	order.Payment = payment
	return order, nil
}

func (r *repository) listItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("orders: list items: %w", err)
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		var i Item
		if err := rows.Scan(&i.ID, &i.OrderID, &i.ProductID, &i.Quantity, &i.Price); err != nil {
			return nil, fmt.Errorf("orders: scan item: %w", err)
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

func orderWhere(filter OrderFilter) (string, []interface{}) {
	where := "1=1"
	args := []interface{}{}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		where += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	return where, args
}

func (r *repository) ListOrders(ctx context.Context, filter OrderFilter, limit, offset int) ([]Order, error) {
	where, args := orderWhere(filter)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`
		SELECT %s FROM orders
		WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orders: list orders: %w", err)
	}
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if _, err := r.hydrate(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *repository) CountOrders(ctx context.Context, filter OrderFilter) (int, error) {
	where, args := orderWhere(filter)
	var total int
	err := r.db.QueryRow(ctx, "SELECT count(*) FROM orders WHERE "+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("orders: count orders: %w", err)
	}
	return total, nil
}

func (r *repository) UpdateOrderStatus(ctx context.Context, id string, status Status) (*Order, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE orders SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		id, status)
	order, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	return r.hydrate(ctx, order)
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.TotalAmount, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: order", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("orders: scan order: %w", err)
	}
	return &o, nil
}

const paymentColumns = "id, order_id, status, amount, method, transaction_id, created_at"

func (r *repository) CreatePayment(ctx context.Context, payment Payment) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payments (id, order_id, status, amount, method, transaction_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		payment.ID, payment.OrderID, payment.Status, payment.Amount, payment.Method, payment.TransactionID)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: order already paid", httpx.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("orders: create payment: %w", err)
	}
	return nil
}

func (r *repository) FindPayment(ctx context.Context, id string) (*Payment, error) {
	row := r.db.QueryRow(ctx, "SELECT "+paymentColumns+" FROM payments WHERE id = $1", id)
	return scanPayment(row)
}

func (r *repository) FindPaymentByOrder(ctx context.Context, orderID string) (*Payment, error) {
	row := r.db.QueryRow(ctx, "SELECT "+paymentColumns+" FROM payments WHERE order_id = $1", orderID)
	return scanPayment(row)
}

func (r *repository) UpdatePaymentStatus(ctx context.Context, id string, status PaymentStatus) (*Payment, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE payments SET status = $2
		WHERE id = $1
		RETURNING `+paymentColumns,
		id, status)
	return scanPayment(row)
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Status, &p.Amount, &p.Method, &p.TransactionID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: payment", httpx.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("orders: scan payment: %w", err)
	}
	return &p, nil
}
