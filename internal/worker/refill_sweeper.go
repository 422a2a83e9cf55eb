package worker

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Nikeeta26/Ecommerse/internal/service"
	"github.com/Nikeeta26/Ecommerse/pkg/logging"
)

// RefillSweeper periodically drives the subscription refill sweep. One
// sweep runs to completion per tick; per-subscription failures are
// handled inside the service and never stop the loop.
type RefillSweeper struct {
	refillService service.RefillService
	logger        *zap.Logger
	interval      time.Duration
	tracer        trace.Tracer
}

func NewRefillSweeper(refillService service.RefillService, logger *zap.Logger, interval time.Duration) *RefillSweeper {
	return &RefillSweeper{
		refillService: refillService,
		logger:        logger,
		interval:      interval,
		tracer:        otel.Tracer("refill_sweeper"),
	}
}

func (w *RefillSweeper) Start(ctx context.Context) {
	logging.Info(
		ctx,
		w.logger,
		"Starting refill sweeper",
		zap.Duration("interval", w.interval),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, w.logger, "Refill sweeper stopping")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *RefillSweeper) sweep(ctx context.Context) {
	ctx, span := w.tracer.Start(ctx, "RefillSweeper.sweep")
	defer span.End()

	if err := w.refillService.ProcessDueRefills(ctx); err != nil {
		span.RecordError(err)

		logging.Error(
			ctx,
			w.logger,
			"Refill sweep failed",
			zap.Error(err),
		)
	}
}
