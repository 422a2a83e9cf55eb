package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CartRepository is the best-effort cart collaborator. Clearing runs
// outside the placement transaction; its failure never fails the order.
type CartRepository interface {
	Clear(ctx context.Context, userID int64) error
}

type cartRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewCartRepository(pool *pgxpool.Pool, logger *zap.Logger) CartRepository {
	return &cartRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("cart_repository"),
	}
}

func (r *cartRepo) Clear(ctx context.Context, userID int64) error {
	ctx, span := r.tracer.Start(ctx, "CartRepository.Clear")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	query := `DELETE FROM cart_items WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear cart for user %d: %w", userID, err)
	}

	return nil
}
