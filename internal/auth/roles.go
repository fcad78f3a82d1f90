package auth

import (
	"github.com/TjayDev-11/Servicesoko-sub000/internal/domain"
	apperrors "github.com/TjayDev-11/Servicesoko-sub000/pkg/util"

	"github.com/gofiber/fiber/v2"
)

// RequireSeller ensures the caller may act on the seller side of the
// marketplace (listing services, accepting orders).
func RequireSeller() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || !principal.Role.CanSell() {
			return apperrors.NewForbidden("FORBIDDEN", "seller role required")
		}
		return c.Next()
	}
}

// RequireAdmin restricts a route to administrators.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.Role != domain.RoleAdmin {
			return apperrors.NewForbidden("FORBIDDEN", "admin role required")
		}
		return c.Next()
	}
}

// RequireAuthenticated ensures a principal is attached.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("MISSING_TOKEN", "authentication required")
		}
		return c.Next()
	}
}
