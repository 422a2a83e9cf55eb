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
)

// AddressRepository is the ownership-checked slice of the address store
// the order engine needs.
type AddressRepository interface {
	GetByIDForUser(ctx context.Context, id, userID int64) (domain.Address, error)
	GetDefaultForUser(ctx context.Context, userID int64) (domain.Address, error)
}

type addressRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewAddressRepository(pool *pgxpool.Pool, logger *zap.Logger) AddressRepository {
	return &addressRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("address_repository"),
	}
}

const addressColumns = `id, user_id, line1, line2, city, state, zip_code, country, is_default, created_at`

func (r *addressRepo) GetByIDForUser(ctx context.Context, id, userID int64) (domain.Address, error) {
	ctx, span := r.tracer.Start(ctx, "AddressRepository.GetByIDForUser")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("address_id", id),
		attribute.Int64("user_id", userID),
	)

	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`

	return r.scanAddress(r.pool.QueryRow(ctx, query, id, userID))
}

func (r *addressRepo) GetDefaultForUser(ctx context.Context, userID int64) (domain.Address, error) {
	ctx, span := r.tracer.Start(ctx, "AddressRepository.GetDefaultForUser")
	defer span.End()

	span.SetAttributes(attribute.Int64("user_id", userID))

	query := `
		SELECT ` + addressColumns + `
		FROM addresses
		WHERE user_id = $1 AND is_default = TRUE
		LIMIT 1
	`

	return r.scanAddress(r.pool.QueryRow(ctx, query, userID))
}

func (r *addressRepo) scanAddress(row pgx.Row) (domain.Address, error) {
	var a domain.Address

	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.Line1,
		&a.Line2,
		&a.City,
		&a.State,
		&a.ZipCode,
		&a.Country,
		&a.IsDefault,
		&a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return a, ErrAddressNotFound
		}
		return a, fmt.Errorf("failed to query address: %w", err)
	}

	return a, nil
}
