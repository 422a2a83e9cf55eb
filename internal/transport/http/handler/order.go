package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
	"github.com/Nikeeta26/Ecommerse/internal/service"
	"github.com/Nikeeta26/Ecommerse/internal/transport/http/middleware"
	"github.com/Nikeeta26/Ecommerse/pkg/logging"
)

const writeTimeout = 5 * time.Second

type OrderHandler struct {
	orders   service.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders:   orders,
		validate: validator.New(),
		logger:   logger,
	}
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), writeTimeout)
	defer cancel()

	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	input := new(service.PlaceOrderRequest)
	if err := c.BodyParser(input); err != nil {
		logging.Warn(ctx, h.logger, "body parsing failed", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": formatValidationError(err),
		})
	}

	order, err := h.orders.PlaceDirectOrder(ctx, principal, *input)
	if err != nil {
		logging.Warn(
			ctx,
			h.logger,
			"order placement failed",
			zap.Int64("user_id", principal.UserID),
			zap.Error(err),
		)

		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toOrderResponse(order))
}

// Checkout places an order from the user's cart selection and clears the
// cart on success.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), writeTimeout)
	defer cancel()

	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	input := new(service.PlaceOrderRequest)
	if err := c.BodyParser(input); err != nil {
		logging.Warn(ctx, h.logger, "body parsing failed", zap.Error(err))

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if err := h.validate.Struct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": formatValidationError(err),
		})
	}

	order, err := h.orders.PlaceOrder(ctx, principal, *input)
	if err != nil {
		logging.Warn(
			ctx,
			h.logger,
			"checkout failed",
			zap.Int64("user_id", principal.UserID),
			zap.Error(err),
		)

		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toOrderResponse(order))
}

func (h *OrderHandler) Get(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
	defer cancel()

	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	orderID, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	order, err := h.orders.GetOrderForUser(ctx, principal, orderID)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(toOrderResponse(order))
}

func (h *OrderHandler) List(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
	defer cancel()

	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	orders, err := h.orders.ListOrdersForUser(ctx, principal.UserID)
	if err != nil {
		logging.Warn(ctx, h.logger, "order listing failed", zap.Error(err))
		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"orders": lo.Map(orders, func(order domain.Order, _ int) OrderResponse { return toOrderResponse(order) }),
	})
}

type CancelOrderInput struct {
	Reason string `json:"reason" validate:"max=500"`
}

func (h *OrderHandler) Cancel(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), writeTimeout)
	defer cancel()

	principal, ok := middleware.Principal(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	orderID, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	input := new(CancelOrderInput)
	if len(c.Body()) > 0 {
		if err := c.BodyParser(input); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	order, err := h.orders.Cancel(ctx, principal, orderID, input.Reason)
	if err != nil {
		logging.Warn(
			ctx,
			h.logger,
			"order cancellation failed",
			zap.Int64("order_id", orderID),
			zap.Int64("user_id", principal.UserID),
			zap.Error(err),
		)

		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(toOrderResponse(order))
}

type UpdateStatusInput struct {
	Status string `json:"status" validate:"required"`
}

// UpdateStatus is the fulfillment path: processing, shipped, delivered,
// refunded. Admin-only, enforced by the router.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), writeTimeout)
	defer cancel()

	orderID, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid order id"})
	}

	input := new(UpdateStatusInput)
	if err := c.BodyParser(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	next, err := domain.ToOrderStatus(input.Status)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	order, err := h.orders.UpdateStatus(ctx, orderID, next)
	if err != nil {
		logging.Warn(
			ctx,
			h.logger,
			"status update failed",
			zap.Int64("order_id", orderID),
			zap.String("next_status", input.Status),
			zap.Error(err),
		)

		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(toOrderResponse(order))
}

func parseID(c *fiber.Ctx, param string) (int64, error) {
	return strconv.ParseInt(c.Params(param), 10, 64)
}
