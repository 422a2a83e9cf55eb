package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
	"github.com/Nikeeta26/Ecommerse/internal/repository"
	"github.com/Nikeeta26/Ecommerse/pkg/logging"
)

type RefillService interface {
	// ProcessDueRefills sweeps active subscriptions whose refill date
	// has passed and places a refill order for each. Failures are
	// isolated per subscription and never abort the sweep.
	ProcessDueRefills(ctx context.Context) error

	// RequestRefill is the on-demand variant. It returns (false, nil)
	// when the subscription is not yet eligible; when eligible it
	// performs the same placement and date advance as the sweep.
	RequestRefill(ctx context.Context, principal domain.Principal, subscriptionID int64) (bool, error)

	// CancelSubscription deactivates a subscription so no further
	// refills are scheduled.
	CancelSubscription(ctx context.Context, principal domain.Principal, subscriptionID int64) error
}

type refillService struct {
	pool             TxBeginner
	logger           *zap.Logger
	subscriptionRepo repository.SubscriptionRepository
	outboxRepo       repository.OutboxRepository
	orderService     OrderService
	eventsTopic      string
	tracer           trace.Tracer
}

func NewRefillService(
	pool TxBeginner,
	logger *zap.Logger,
	subscriptionRepo repository.SubscriptionRepository,
	outboxRepo repository.OutboxRepository,
	orderService OrderService,
	eventsTopic string,
) RefillService {
	if eventsTopic == "" {
		eventsTopic = orderEventsTopic
	}

	return &refillService{
		pool:             pool,
		logger:           logger,
		subscriptionRepo: subscriptionRepo,
		outboxRepo:       outboxRepo,
		orderService:     orderService,
		eventsTopic:      eventsTopic,
		tracer:           otel.Tracer("refill_service"),
	}
}

func (s *refillService) ProcessDueRefills(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "RefillService.ProcessDueRefills")
	defer span.End()

	due, err := s.subscriptionRepo.ListDue(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("failed to list due subscriptions: %w", err)
	}

	span.SetAttributes(attribute.Int("due_count", len(due)))

	var processed int
	for _, sub := range due {
		if err := s.refill(ctx, sub); err != nil {
			// Leave nextRefillDate untouched so the subscription is
			// retried on the next sweep.
			logging.Warn(
				ctx,
				s.logger,
				"Refill failed, will retry next sweep",
				zap.Int64("subscription_id", sub.ID),
				zap.Error(err),
			)
			continue
		}
		processed++
	}

	if len(due) > 0 {
		logging.Info(
			ctx,
			s.logger,
			"Refill sweep finished",
			zap.Int("due", len(due)),
			zap.Int("processed", processed),
		)
	}

	return nil
}

func (s *refillService) RequestRefill(ctx context.Context, principal domain.Principal, subscriptionID int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "RefillService.RequestRefill")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("subscription_id", subscriptionID),
		attribute.Int64("user_id", principal.UserID),
	)

	sub, err := s.subscriptionRepo.GetByIDForUser(ctx, subscriptionID, principal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return false, fmt.Errorf("subscription %d: %w", subscriptionID, domain.ErrNotFound)
		}
		return false, err
	}

	if !sub.Active {
		return false, fmt.Errorf("%w: subscription %d is not active", domain.ErrInvalidRequest, subscriptionID)
	}

	if !sub.IsEligibleForRefill(time.Now()) {
		return false, nil
	}

	if err := s.refill(ctx, sub); err != nil {
		return false, err
	}

	return true, nil
}

// refill advances the next refill date and places the refill order in
// one transaction, so a lost version race or a failed placement leaves
// neither an order nor an advanced date behind.
func (s *refillService) refill(ctx context.Context, sub domain.Subscription) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logging.Warn(cleanupCtx, s.logger, "Error rolling back transaction", zap.Error(err))
		}
	}()

	// The date advance claims the cycle. Losing the version race means
	// another writer already refilled this subscription.
	sub.ScheduleNextRefill(time.Now())

	if err := s.subscriptionRepo.AdvanceNextRefill(ctx, tx, &sub); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return fmt.Errorf("subscription %d: %w", sub.ID, domain.ErrConflict)
		}
		return err
	}

	order, err := s.orderService.CreateRefillOrder(ctx, tx, sub)
	if err != nil {
		return err
	}

	event := domain.RefillOrderCreatedEvent{
		OrderID:        order.ID,
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		NextRefillDate: sub.NextRefillDate,
	}

	wrapper := map[string]any{
		"event":   "RefillOrderCreated",
		"payload": event,
	}

	payloadBytes, err := json.Marshal(wrapper)
	if err != nil {
		return fmt.Errorf("failed to marshal refill event: %w", err)
	}

	outboxEvent := &domain.OutboxEvent{
		AggregateType: "Subscription",
		AggregateID:   fmt.Sprintf("%d", sub.ID),
		EventType:     "RefillOrderCreated",
		Payload:       payloadBytes,
		Topic:         s.eventsTopic,
	}

	if err := s.outboxRepo.SaveOutboxEvent(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to save outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logging.Info(
		ctx,
		s.logger,
		"Subscription refilled",
		zap.Int64("subscription_id", sub.ID),
		zap.Int64("order_id", order.ID),
		zap.Time("next_refill_date", sub.NextRefillDate),
	)

	return nil
}

func (s *refillService) CancelSubscription(ctx context.Context, principal domain.Principal, subscriptionID int64) error {
	ctx, span := s.tracer.Start(ctx, "RefillService.CancelSubscription")
	defer span.End()

	span.SetAttributes(attribute.Int64("subscription_id", subscriptionID))

	sub, err := s.subscriptionRepo.GetByIDForUser(ctx, subscriptionID, principal.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrSubscriptionNotFound) {
			return fmt.Errorf("subscription %d: %w", subscriptionID, domain.ErrNotFound)
		}
		return err
	}

	sub.Deactivate(time.Now())

	if err := s.subscriptionRepo.Deactivate(ctx, &sub); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return fmt.Errorf("subscription %d: %w", subscriptionID, domain.ErrConflict)
		}
		return err
	}

	return nil
}
