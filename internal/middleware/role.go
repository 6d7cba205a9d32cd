package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that enforces that the authenticated
// principal carries one of the given roles (Admin, AssetManager,
// MaintenanceTeam). It assumes BearerAuth ran earlier in the chain; a
// missing principal is treated the same as a disallowed role.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := CurrentPrincipal(c)
			if !ok || !allowed[p.Role] {
				return c.JSON(http.StatusForbidden, echo.Map{
					"status": "error", "message": "Forbidden",
				})
			}
			return next(c)
		}
	}
}
