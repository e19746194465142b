package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/crm-console/pkg/util/errorutil"
)

// RequireAuthenticated rejects requests that reached a route without a principal.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
