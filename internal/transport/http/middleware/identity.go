package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Nikeeta26/Ecommerse/internal/domain"
)

const principalKey = "principal"

// NewIdentityMiddleware resolves the caller from the identity headers
// the gateway injects after authenticating the request. Authentication
// itself happens upstream; requests arriving without the headers are
// rejected.
func NewIdentityMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userIDHeader := c.Get("X-User-Id")
		if userIDHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: missing identity"})
		}

		userID, err := strconv.ParseInt(userIDHeader, 10, 64)
		if err != nil || userID <= 0 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized: invalid identity"})
		}

		role := domain.RoleUser
		if c.Get("X-User-Role") == string(domain.RoleAdmin) {
			role = domain.RoleAdmin
		}

		c.Locals(principalKey, domain.Principal{UserID: userID, Role: role})
		return c.Next()
	}
}

// NewAdminMiddleware guards routes that mutate orders beyond what their
// owner may do.
func NewAdminMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := Principal(c)
		if !ok || !principal.Role.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden: admin only"})
		}
		return c.Next()
	}
}

func Principal(c *fiber.Ctx) (domain.Principal, bool) {
	principal, ok := c.Locals(principalKey).(domain.Principal)
	return principal, ok
}
