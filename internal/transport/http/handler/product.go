package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Nikeeta26/Ecommerse/internal/service/catalog"
	"github.com/Nikeeta26/Ecommerse/pkg/logging"
)

type ProductHandler struct {
	reader catalog.ProductReader
	logger *zap.Logger
}

func NewProductHandler(reader catalog.ProductReader, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		reader: reader,
		logger: logger,
	}
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
	defer cancel()

	productID, err := parseID(c, "id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}

	product, err := h.reader.FindByID(ctx, productID)
	if err != nil {
		logging.Warn(
			ctx,
			h.logger,
			"product lookup failed",
			zap.Int64("product_id", productID),
			zap.Error(err),
		)

		return respondError(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(toProductResponse(product))
}
