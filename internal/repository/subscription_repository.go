package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
)

type SubscriptionRepository interface {
	GetByID(ctx context.Context, id int64) (domain.Subscription, error)
	GetByIDForUser(ctx context.Context, id, userID int64) (domain.Subscription, error)
	ListDue(ctx context.Context, now time.Time) ([]domain.Subscription, error)
	AdvanceNextRefill(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error
	Deactivate(ctx context.Context, sub *domain.Subscription) error
}

type subscriptionRepo struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

func NewSubscriptionRepository(pool *pgxpool.Pool, logger *zap.Logger) SubscriptionRepository {
	return &subscriptionRepo{
		pool:   pool,
		logger: logger,
		tracer: otel.Tracer("subscription_repository"),
	}
}

const subscriptionColumns = `
	id, user_id, active, start_date, end_date, refill_frequency_days,
	next_refill_date, created_at, updated_at, version
`

func (r *subscriptionRepo) GetByID(ctx context.Context, id int64) (domain.Subscription, error) {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.GetByID")
	defer span.End()

	span.SetAttributes(attribute.Int64("subscription_id", id))

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`

	return r.scanSubscriptionWithItems(ctx, query, id)
}

func (r *subscriptionRepo) GetByIDForUser(ctx context.Context, id, userID int64) (domain.Subscription, error) {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.GetByIDForUser")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("subscription_id", id),
		attribute.Int64("user_id", userID),
	)

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1 AND user_id = $2`

	return r.scanSubscriptionWithItems(ctx, query, id, userID)
}

// ListDue returns active subscriptions whose refill date has passed.
func (r *subscriptionRepo) ListDue(ctx context.Context, now time.Time) ([]domain.Subscription, error) {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.ListDue")
	defer span.End()

	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE active = TRUE AND next_refill_date <= $1
		ORDER BY next_refill_date
	`

	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query due subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var s domain.Subscription
		if err := scanSubscription(rows, &s); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}
		subs = append(subs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range subs {
		items, err := r.loadItems(ctx, subs[i].ID)
		if err != nil {
			return nil, err
		}
		subs[i].Items = items
	}

	span.SetAttributes(attribute.Int("due_count", len(subs)))
	return subs, nil
}

// AdvanceNextRefill writes the new refill date under an optimistic
// version check so two concurrent sweeps cannot both advance the same
// cycle.
func (r *subscriptionRepo) AdvanceNextRefill(ctx context.Context, tx pgx.Tx, sub *domain.Subscription) error {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.AdvanceNextRefill")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("subscription_id", sub.ID),
		attribute.Int64("version", sub.Version),
	)

	query := `
		UPDATE subscriptions
		SET next_refill_date = $1, updated_at = NOW(), version = version + 1
		WHERE id = $2 AND version = $3
	`

	commandTag, err := tx.Exec(ctx, query, sub.NextRefillDate, sub.ID, sub.Version)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to advance refill date: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	sub.Version++
	return nil
}

func (r *subscriptionRepo) Deactivate(ctx context.Context, sub *domain.Subscription) error {
	ctx, span := r.tracer.Start(ctx, "SubscriptionRepository.Deactivate")
	defer span.End()

	span.SetAttributes(attribute.Int64("subscription_id", sub.ID))

	query := `
		UPDATE subscriptions
		SET active = FALSE, end_date = $1, updated_at = NOW(), version = version + 1
		WHERE id = $2 AND version = $3
	`

	commandTag, err := r.pool.Exec(ctx, query, sub.EndDate, sub.ID, sub.Version)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to deactivate subscription: %w", err)
	}

	if commandTag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	sub.Version++
	return nil
}

func (r *subscriptionRepo) scanSubscriptionWithItems(ctx context.Context, query string, args ...any) (domain.Subscription, error) {
	var s domain.Subscription

	if err := scanSubscription(r.pool.QueryRow(ctx, query, args...), &s); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, ErrSubscriptionNotFound
		}
		return s, fmt.Errorf("failed to query subscription: %w", err)
	}

	items, err := r.loadItems(ctx, s.ID)
	if err != nil {
		return s, err
	}
	s.Items = items

	return s, nil
}

func (r *subscriptionRepo) loadItems(ctx context.Context, subscriptionID int64) ([]domain.SubscriptionItem, error) {
	query := `
		SELECT subscription_id, product_id, quantity
		FROM subscription_items
		WHERE subscription_id = $1
		ORDER BY product_id
	`

	rows, err := r.pool.Query(ctx, query, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscription items: %w", err)
	}
	defer rows.Close()

	var items []domain.SubscriptionItem
	for rows.Next() {
		var item domain.SubscriptionItem
		if err := rows.Scan(&item.SubscriptionID, &item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan subscription item: %w", err)
		}

		items = append(items, item)
	}

	return items, rows.Err()
}

func scanSubscription(row pgx.Row, s *domain.Subscription) error {
	return row.Scan(
		&s.ID,
		&s.UserID,
		&s.Active,
		&s.StartDate,
		&s.EndDate,
		&s.RefillFrequencyDays,
		&s.NextRefillDate,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.Version,
	)
}
