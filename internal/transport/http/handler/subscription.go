package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
	"github.com/Nikeeta26/Ecommerse/internal/service"
	"github.com/Nikeeta26/Ecommerse/internal/transport/http/middleware"
	"github.com/Nikeeta26/Ecommerse/pkg/logging"
)

type SubscriptionHandler struct {
	refills service.RefillService
	orders  service.OrderService
	logger  *zap.Logger
}

func NewSubscriptionHandler(refills service.RefillService, orders service.OrderService, logger *zap.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		refills: refills,
		orders:  orders,
		logger:  logger,
	}
}

func (h *SubscriptionHandler) RequestRefill(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), writeTimeout)
	defer cancel()

	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	subscriptionID, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid subscription id"})
	}

	refilled, err := h.refills.RequestRefill(ctx, principal, subscriptionID)
	if err != nil {
		logging.Warn(
			ctx,
			h.logger,
			"refill request failed",
			zap.Int64("subscription_id", subscriptionID),
			zap.Error(err),
		)

		return respondError(c, err)
	}

	if !refilled {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"refilled": false,
			"message":  "subscription is not due for refill yet",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"refilled": true})
}

func (h *SubscriptionHandler) Cancel(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), writeTimeout)
	defer cancel()

	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	subscriptionID, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid subscription id"})
	}

	if err := h.refills.CancelSubscription(ctx, principal, subscriptionID); err != nil {
		logging.Warn(
			ctx,
			h.logger,
			"subscription cancellation failed",
			zap.Int64("subscription_id", subscriptionID),
			zap.Error(err),
		)

		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"cancelled": true})
}

// ListOrders returns the refill orders a subscription has generated.
func (h *SubscriptionHandler) ListOrders(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
	defer cancel()

	if _, ok := middleware.Principal(c); !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	subscriptionID, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid subscription id"})
	}

	orders, err := h.orders.FindRefillOrdersBySubscription(ctx, subscriptionID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"orders": lo.Map(orders, func(order domain.Order, _ int) OrderResponse { return toOrderResponse(order) }),
	})
}
