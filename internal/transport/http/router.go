// Package http exposes the backend over fiber. Identity arrives from
// the gateway as headers; this layer only routes, validates, and maps
// domain errors to statuses.
package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Nikeeta26/Ecommerse/internal/transport/http/handler"
	"github.com/Nikeeta26/Ecommerse/internal/transport/http/middleware"
)

type Handlers struct {
	Order        *handler.OrderHandler
	Subscription *handler.SubscriptionHandler
	Product      *handler.ProductHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api", middleware.NewIdentityMiddleware())

	product := api.Group("/products")
	product.Get("/:id", h.Product.FindByID)

	order := api.Group("/orders")
	order.Post("", h.Order.Create)
	order.Post("/checkout", h.Order.Checkout)
	order.Get("", h.Order.List)
	order.Get("/:id", h.Order.Get)
	order.Post("/:id/cancel", h.Order.Cancel)
	order.Patch("/:id/status", middleware.NewAdminMiddleware(), h.Order.UpdateStatus)

	subscription := api.Group("/subscriptions")
	subscription.Post("/:id/refill", h.Subscription.RequestRefill)
	subscription.Post("/:id/cancel", h.Subscription.Cancel)
	subscription.Get("/:id/orders", h.Subscription.ListOrders)
}
