package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Nikeeta26/Ecommerse/internal/config"
	"github.com/Nikeeta26/Ecommerse/internal/repository"
	"github.com/Nikeeta26/Ecommerse/internal/service"
	"github.com/Nikeeta26/Ecommerse/internal/service/catalog"
	transporthttp "github.com/Nikeeta26/Ecommerse/internal/transport/http"
	"github.com/Nikeeta26/Ecommerse/internal/transport/http/handler"
	"github.com/Nikeeta26/Ecommerse/internal/worker"
	"github.com/Nikeeta26/Ecommerse/pkg/kafka"
	"github.com/Nikeeta26/Ecommerse/pkg/logging"
	"github.com/Nikeeta26/Ecommerse/pkg/postgres"
	"github.com/Nikeeta26/Ecommerse/pkg/tracing"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := config.MustLoad()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracing.InitTracer(ctx, "commerce-core")
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}

	logger, err := config.NewLogger(config.LoggerConfig{
		Level: cfg.Logger.Level,
		Env:   cfg.Env,
	})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	pool, err := postgres.NewPool(ctx, cfg.Postgres.URL)
	if err != nil {
		log.Fatalf("failed to create pool: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})

	orderRepo := repository.NewOrderRepository(pool, logger)
	productRepo := repository.NewProductRepository(pool, logger)
	addressRepo := repository.NewAddressRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	subscriptionRepo := repository.NewSubscriptionRepository(pool, logger)
	outboxRepo := repository.NewOutboxRepository(pool, logger)

	pricing, err := service.NewPricingCalculator(cfg.Pricing.TaxRate, cfg.Pricing.ShippingCost)
	if err != nil {
		log.Fatalf("invalid pricing config: %v", err)
	}

	orderService := service.NewOrderService(
		pool, logger, orderRepo, productRepo, addressRepo, cartRepo, outboxRepo, pricing,
		cfg.Kafka.Topic,
	)
	refillService := service.NewRefillService(
		pool, logger, subscriptionRepo, outboxRepo, orderService, cfg.Kafka.Topic,
	)

	productReader := catalog.NewCachedProductReader(
		catalog.NewProductReader(productRepo),
		redisClient,
		cfg.Redis.CacheTTL,
	)

	producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
	if err != nil {
		log.Fatalf("error creating kafka producer: %v", err)
	}

	outboxProcessor := worker.NewOutboxProcessor(
		pool, outboxRepo, producer, logger, cfg.Outbox.BatchSize, cfg.Outbox.Interval,
	)
	refillSweeper := worker.NewRefillSweeper(refillService, logger, cfg.Refill.SweepInterval)

	go outboxProcessor.Start(ctx)
	go refillSweeper.Start(ctx)

	app := fiber.New()

	app.Use(otelfiber.Middleware())
	app.Use(limiter.New(limiter.Config{
		Max:        20,
		Expiration: 5 * time.Second,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many requests. Try again later.",
			})
		},
	}))

	transporthttp.RegisterRoutes(app, &transporthttp.Handlers{
		Order:        handler.NewOrderHandler(orderService, logger),
		Subscription: handler.NewSubscriptionHandler(refillService, orderService, logger),
		Product:      handler.NewProductHandler(productReader, logger),
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Port); err != nil {
			logging.Error(ctx, logger, "HTTP server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, exit := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer exit()

	logging.Info(shutdownCtx, logger, "Shutting down")

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logging.Warn(shutdownCtx, logger, "Failed to shut down HTTP server", zap.Error(err))
	}

	if err := producer.Close(); err != nil {
		logging.Warn(shutdownCtx, logger, "Failed to close kafka producer", zap.Error(err))
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		logging.Warn(shutdownCtx, logger, "Failed to shut down telemetry", zap.Error(err))
	}

	pool.Close()
}
