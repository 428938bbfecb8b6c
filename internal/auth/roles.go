package auth

import (
	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/warranty-portal/pkg/util/errorutil"
)

// RequireStaff ensures the caller holds the staff role.
func RequireStaff() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.Actor.IsStaff() {
			return apperrors.NewForbidden("staff role required")
		}
		return c.Next()
	}
}

// RequireAnyRole ensures caller is authenticated as customer or staff.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || !principal.Actor.Role.Valid() {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
