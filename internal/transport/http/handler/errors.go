package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
)

// statusFromError translates the service error taxonomy into HTTP.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInsufficientStock):
		return fiber.StatusUnprocessableEntity
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error) error {
	status := statusFromError(err)

	body := fiber.Map{"error": err.Error()}

	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		body["product"] = stockErr.ProductName
		body["requested"] = stockErr.Requested
		body["available"] = stockErr.Available
	}

	if status == fiber.StatusInternalServerError {
		body["error"] = "internal error"
	}

	return c.Status(status).JSON(body)
}

func formatValidationError(err error) map[string]string {
	fields := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		fields["request"] = "request is invalid"
		return fields
	}

	for _, fieldErr := range validationErrors {
		field := strings.ToLower(fieldErr.Field())

		switch fieldErr.Tag() {
		case "required":
			fields[field] = fmt.Sprintf("%s is required", field)
		case "min":
			fields[field] = fmt.Sprintf("%s must have at least %s elements", field, fieldErr.Param())
		case "gt":
			fields[field] = fmt.Sprintf("%s must be greater than %s", field, fieldErr.Param())
		default:
			fields[field] = fmt.Sprintf("%s is invalid", field)
		}
	}

	return fields
}
