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

// ProductRepository is the inventory ledger: ReserveStock and
// RestoreStock are the only writers of the stock counter.
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	ReserveStock(ctx context.Context, tx pgx.Tx, id int64, quantity int32) (domain.ReservedProduct, error)
	RestoreStock(ctx context.Context, tx pgx.Tx, id int64, quantity int32) error
}

type productRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewProductRepository(pool *pgxpool.Pool, logger *zap.Logger) ProductRepository {
	return &productRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("product_repository"),
	}
}

func (r *productRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("product_id", id))

	query := `
		SELECT id, name, description, price, refill_price, stock, reusable,
		       requires_subscription, refill_quantity, refill_frequency_days,
		       created_at, updated_at
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
	`

	var p domain.Product
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.RefillPrice,
		&p.Stock,
		&p.Reusable,
		&p.RequiresSubscription,
		&p.RefillQuantity,
		&p.RefillFrequencyDays,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		span.RecordError(err)
		return nil, fmt.Errorf("failed to query product %d: %w", id, err)
	}

	return &p, nil
}

// ReserveStock decrements the stock counter with a conditional update so
// that two concurrent reservations cannot both succeed when only enough
// stock for one exists. It returns a snapshot of the product taken in
// the same transaction; the caller copies the price into the order item
// and never re-reads it.
func (r *productRepo) ReserveStock(ctx context.Context, tx pgx.Tx, id int64, quantity int32) (domain.ReservedProduct, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.ReserveStock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", id),
		attribute.Int("quantity", int(quantity)),
	)

	var reserved domain.ReservedProduct

	snapshotQuery := `
		SELECT id, name, price, refill_price, stock
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
	`

	var available int32
	if err := tx.QueryRow(ctx, snapshotQuery, id).Scan(
		&reserved.ProductID,
		&reserved.Name,
		&reserved.UnitPrice,
		&reserved.RefillPrice,
		&available,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return reserved, ErrProductNotFound
		}

		span.RecordError(err)
		return reserved, fmt.Errorf("failed to query product %d: %w", id, err)
	}

	query := `
		UPDATE products
		SET stock = stock - $2, updated_at = NOW()
		WHERE id = $1
			AND stock >= $2
			AND deleted_at IS NULL
	`

	commandTag, err := tx.Exec(ctx, query, id, quantity)
	if err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			r.logger,
			"Error reserving stock",
			zap.Int64("product_id", id),
			zap.Int32("quantity", quantity),
			zap.Error(err),
		)

		return reserved, fmt.Errorf("error reserving stock for product %d: %w", id, err)
	}

	if commandTag.RowsAffected() == 0 {
		return reserved, &domain.InsufficientStockError{
			ProductName: reserved.Name,
			Requested:   quantity,
			Available:   available,
		}
	}

	return reserved, nil
}

// RestoreStock puts a cancelled reservation back. Exactly-once is
// guaranteed by the order state machine, not here.
func (r *productRepo) RestoreStock(ctx context.Context, tx pgx.Tx, id int64, quantity int32) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.RestoreStock")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("product_id", id),
		attribute.Int("quantity", int(quantity)),
	)

	query := `
		UPDATE products
		SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1
	`

	commandTag, err := tx.Exec(ctx, query, id, quantity)
	if err != nil {
		span.RecordError(err)

		logging.Warn(
			ctx,
			r.logger,
			"Failed to restore stock",
			zap.Int64("product_id", id),
			zap.Int32("quantity", quantity),
			zap.Error(err),
		)

		return fmt.Errorf("error restoring stock for product %d: %w", id, err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrProductNotFound
	}

	return nil
}
