package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Nikeeta26/Ecommerse/internal/repository"
	"github.com/Nikeeta26/Ecommerse/pkg/kafka"
	"github.com/Nikeeta26/Ecommerse/pkg/logging"
)

// OutboxProcessor drains the transactional outbox and publishes order
// lifecycle events to kafka. FOR UPDATE SKIP LOCKED in the repository
// keeps multiple processors from double-publishing a batch.
type OutboxProcessor struct {
	pool      *pgxpool.Pool
	repo      repository.OutboxRepository
	producer  kafka.Producer
	logger    *zap.Logger
	batchSize int
	interval  time.Duration
	tracer    trace.Tracer
}

func NewOutboxProcessor(
	pool *pgxpool.Pool,
	repo repository.OutboxRepository,
	producer kafka.Producer,
	logger *zap.Logger,
	batchSize int,
	interval time.Duration,
) *OutboxProcessor {
	return &OutboxProcessor{
		pool:      pool,
		repo:      repo,
		producer:  producer,
		logger:    logger,
		batchSize: batchSize,
		interval:  interval,
		tracer:    otel.Tracer("outbox_processor"),
	}
}

func (p *OutboxProcessor) Start(ctx context.Context) {
	logging.Info(ctx, p.logger, "Starting outbox processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, p.logger, "Outbox processor stopping")
			return
		case <-ticker.C:
			if err := p.processBatch(ctx); err != nil {
				logging.Error(
					ctx,
					p.logger,
					"Error processing outbox batch",
					zap.Error(err),
				)
			}
		}
	}
}

func (p *OutboxProcessor) processBatch(ctx context.Context) error {
	ctx, span := p.tracer.Start(ctx, "OutboxProcessor.processBatch")
	defer span.End()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logging.Error(
				cleanupCtx,
				p.logger,
				"Outbox processor failed to rollback transaction",
				zap.Error(err),
			)
		}
	}()

	events, err := p.repo.GetUnpublishedEvents(ctx, tx, p.batchSize)
	if err != nil {
		return err
	}

	if len(events) == 0 {
		return nil
	}

	logging.Info(
		ctx,
		p.logger,
		"Processing outbox events",
		zap.Int("count", len(events)),
	)

	for _, event := range events {
		if err := p.producer.ProduceMessage(ctx, event.Topic, event.Payload); err != nil {
			logging.Warn(
				ctx,
				p.logger,
				"Failed to publish outbox event",
				zap.Int64("event_id", event.ID),
				zap.String("topic", event.Topic),
				zap.Error(err),
			)

			if err := p.repo.MarkEventFailed(ctx, tx, event.ID, err.Error()); err != nil {
				return err
			}
			continue
		}

		if err := p.repo.MarkEventPublished(ctx, tx, event.ID); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
