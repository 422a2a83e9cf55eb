package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
	"github.com/Nikeeta26/Ecommerse/pkg/logging"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetOrder(ctx context.Context, orderID int64) (domain.Order, error)
	GetOrderTx(ctx context.Context, tx pgx.Tx, orderID int64) (domain.Order, error)
	GetOrderForUser(ctx context.Context, orderID, userID int64) (domain.Order, error)
	ListOrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error)
	FindRefillOrdersBySubscription(ctx context.Context, subscriptionID int64) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error
}

type orderRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewOrderRepository(pool *pgxpool.Pool, logger *zap.Logger) OrderRepository {
	return &orderRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("order_repository"),
	}
}

const orderColumns = `
	id, order_number, user_id, shipping_address_id, status, order_type,
	subscription_id, subtotal, tax, shipping_cost, total_amount, notes,
	tracking_number, cancelled_reason, created_at, updated_at, shipped_at,
	delivered_at, cancelled_at, version
`

// CreateOrder persists the order and its items as one unit. The caller
// owns the transaction; either everything commits or nothing does.
func (r *orderRepo) CreateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.CreateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user_id", order.UserID),
		attribute.Int("items_count", len(order.Items)),
	)

	queryOrder := `
		INSERT INTO orders (order_number, user_id, shipping_address_id, status,
		                    order_type, subscription_id, subtotal, tax,
		                    shipping_cost, total_amount, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING id, created_at, updated_at, version
	`

	if err := tx.QueryRow(
		ctx,
		queryOrder,
		order.OrderNumber,
		order.UserID,
		order.ShippingAddressID,
		string(order.Status),
		string(order.Type),
		order.SubscriptionID,
		order.Subtotal,
		order.Tax,
		order.ShippingCost,
		order.Total,
		order.Notes,
	).Scan(
		&order.ID,
		&order.CreatedAt,
		&order.UpdatedAt,
		&order.Version,
	); err != nil {
		span.RecordError(err)

		logging.Warn(
			ctx,
			r.logger,
			"Failed to insert order",
			zap.Error(err),
		)

		return err
	}

	queryItem := `
		INSERT INTO order_items (order_id, product_id, name, unit_price, quantity, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	for i := range order.Items {
		item := &order.Items[i]
		item.OrderID = order.ID

		if err := tx.QueryRow(
			ctx,
			queryItem,
			item.OrderID,
			item.ProductID,
			item.Name,
			item.UnitPrice,
			item.Quantity,
			item.Subtotal,
		).Scan(&item.ID); err != nil {
			span.RecordError(err)

			logging.Error(
				ctx,
				r.logger,
				"Failed to insert order item",
				zap.Int64("product_id", item.ProductID),
				zap.Error(err),
			)

			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}

	return nil
}

func (r *orderRepo) GetOrder(ctx context.Context, orderID int64) (domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetOrder")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	return r.scanOrderWithItems(ctx, r.pool, query, orderID)
}

// GetOrderTx reads the order inside the caller's transaction so a
// status update sees the row it is about to version-check.
func (r *orderRepo) GetOrderTx(ctx context.Context, tx pgx.Tx, orderID int64) (domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetOrderTx")
	defer span.End()

	span.SetAttributes(attribute.Int64("order_id", orderID))

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	return r.scanOrderWithItems(ctx, tx, query, orderID)
}

func (r *orderRepo) GetOrderForUser(ctx context.Context, orderID, userID int64) (domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetOrderForUser")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", orderID),
		attribute.Int64("user_id", userID),
	)

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 AND user_id = $2`

	return r.scanOrderWithItems(ctx, r.pool, query, orderID, userID)
}

func (r *orderRepo) ListOrdersForUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListOrdersForUser")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	return r.listOrders(ctx, query, userID)
}

func (r *orderRepo) FindRefillOrdersBySubscription(ctx context.Context, subscriptionID int64) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.FindRefillOrdersBySubscription")
	defer span.End()

	span.SetAttributes(attribute.Int64("subscription_id", subscriptionID))

	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE subscription_id = $1 AND order_type = 'refill'
		ORDER BY created_at DESC
	`

	return r.listOrders(ctx, query, subscriptionID)
}

// UpdateOrder writes back a mutated order under an optimistic version
// check. Zero rows affected means a concurrent writer won; the caller
// reloads and retries or surfaces a conflict. The item list is never
// touched here: items are immutable after creation.
func (r *orderRepo) UpdateOrder(ctx context.Context, tx pgx.Tx, order *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateOrder")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("order_id", order.ID),
		attribute.String("status", string(order.Status)),
		attribute.Int64("version", order.Version),
	)

	query := `
		UPDATE orders
		SET status = $1,
			notes = $2,
			tracking_number = $3,
			cancelled_reason = $4,
			updated_at = $5,
			shipped_at = $6,
			delivered_at = $7,
			cancelled_at = $8,
			version = version + 1
		WHERE id = $9 AND version = $10
	`

	commandTag, err := tx.Exec(
		ctx,
		query,
		string(order.Status),
		order.Notes,
		order.TrackingNumber,
		order.CancelledReason,
		order.UpdatedAt,
		order.ShippedAt,
		order.DeliveredAt,
		order.CancelledAt,
		order.ID,
		order.Version,
	)
	if err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			r.logger,
			"Failed to update order",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)

		return fmt.Errorf("failed to update order: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	order.Version++
	return nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *orderRepo) scanOrderWithItems(ctx context.Context, q rowQuerier, query string, args ...any) (domain.Order, error) {
	var o domain.Order

	if err := scanOrder(q.QueryRow(ctx, query, args...), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return o, ErrOrderNotFound
		}
		return o, fmt.Errorf("failed to query order: %w", err)
	}

	items, err := r.loadItems(ctx, q, o.ID)
	if err != nil {
		return o, err
	}
	o.Items = items

	return o, nil
}

func (r *orderRepo) listOrders(ctx context.Context, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range orders {
		items, err := r.loadItems(ctx, r.pool, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}

	return orders, nil
}

func (r *orderRepo) loadItems(ctx context.Context, q rowQuerier, orderID int64) ([]domain.OrderItem, error) {
	query := `
		SELECT id, order_id, product_id, name, unit_price, quantity, subtotal
		FROM order_items
		WHERE order_id = $1
		ORDER BY id
	`

	rows, err := q.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(
			&item.ID,
			&item.OrderID,
			&item.ProductID,
			&item.Name,
			&item.UnitPrice,
			&item.Quantity,
			&item.Subtotal,
		); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func scanOrder(row pgx.Row, o *domain.Order) error {
	var status, orderType string

	if err := row.Scan(
		&o.ID,
		&o.OrderNumber,
		&o.UserID,
		&o.ShippingAddressID,
		&status,
		&orderType,
		&o.SubscriptionID,
		&o.Subtotal,
		&o.Tax,
		&o.ShippingCost,
		&o.Total,
		&o.Notes,
		&o.TrackingNumber,
		&o.CancelledReason,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.ShippedAt,
		&o.DeliveredAt,
		&o.CancelledAt,
		&o.Version,
	); err != nil {
		return err
	}

	parsed, err := domain.ToOrderStatus(status)
	if err != nil {
		return fmt.Errorf("order status [%s]: %w", status, err)
	}
	o.Status = parsed
	o.Type = domain.OrderType(orderType)

	return nil
}
