package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"furniture-store/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderStatusUnchanged means the guarded status update matched no row.
	ErrOrderStatusUnchanged = errors.New("order status was not updated")
)

// OrderRepository stores orders and their lines.
type OrderRepository interface {
	// Create inserts the order unless a row with the same id exists. It
	// reports whether a row was inserted.
	Create(ctx context.Context, order *domain.Order) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// AddItems inserts every line in one transaction. Lines whose id already
	// exists are skipped.
	AddItems(ctx context.Context, orderID uuid.UUID, items []domain.OrderItem) error
	// UpdateStatus moves the order from one status to another, failing with
	// ErrOrderStatusUnchanged when the order is not in status from.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, paymentReference string) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) (bool, error) {
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return false, fmt.Errorf("failed to encode shipping address: %w", err)
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, shipping_address, status, payment_reference, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`,
		order.ID,
		order.UserID,
		order.TotalAmount,
		string(address),
		order.Status,
		order.PaymentReference,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create order: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, total_amount, shipping_address, status, payment_reference, created_at, updated_at
		FROM orders
		WHERE id = $1
	`, id)
	order, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to find order: %w", err)
	}

	items, err := r.items(ctx, []uuid.UUID{order.ID})
	if err != nil {
		return nil, err
	}
	order.Items = items[order.ID]
	return order, nil
}

func (r *orderRepository) AddItems(ctx context.Context, orderID uuid.UUID, items []domain.OrderItem) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO order_items (id, order_id, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare order item insert: %w", err)
		}
		defer stmt.Close()

		for _, item := range items {
			if _, err := stmt.ExecContext(ctx, item.ID, orderID, item.ProductID, item.Quantity, item.UnitPrice); err != nil {
				return fmt.Errorf("failed to insert order item %s: %w", item.ID, err)
			}
		}
		return nil
	})
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus, paymentReference string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET status = $3, payment_reference = COALESCE(NULLIF($4, ''), payment_reference)
		WHERE id = $1 AND status = $2
	`, id, from, to, paymentReference)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrOrderStatusUnchanged
	}
	return nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, total_amount, shipping_address, status, payment_reference, created_at, updated_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []domain.Order{}
	var ids []uuid.UUID
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *order)
		ids = append(ids, order.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	if len(ids) == 0 {
		return orders, nil
	}

	items, err := r.items(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
	}
	return orders, nil
}

// items loads the lines of every order in ids, keyed by order id.
func (r *orderRepository) items(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]domain.OrderItem, error) {
	params := make([]string, len(ids))
	for i, id := range ids {
		params[i] = id.String()
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, id
	`, "{"+strings.Join(params, ",")+"}")
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	out := make(map[uuid.UUID][]domain.OrderItem, len(ids))
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		out[item.OrderID] = append(out[item.OrderID], item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}
	return out, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		order   domain.Order
		address []byte
	)
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.TotalAmount,
		&address,
		&order.Status,
		&order.PaymentReference,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("failed to decode shipping address: %w", err)
	}
	return &order, nil
}
