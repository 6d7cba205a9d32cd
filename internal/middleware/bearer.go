// Package middleware contains the HTTP middleware shared by the protected
// routes: bearer-token verification, role enforcement and rate limiting.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/localgov/asset-tracker-auth/internal/model"
	"github.com/localgov/asset-tracker-auth/internal/repository"
)

// principalKey is the context key under which BearerAuth stores the
// authenticated principal.
const principalKey = "principal"

// BearerAuth returns middleware that verifies the opaque access token from
// the Authorization header against the store and injects the resulting
// Principal into the request context. Every rejection reason (unknown token,
// expired token, deactivated account) is logged internally but collapsed to
// one uniform 401 body, so responses do not reveal which check failed.
func BearerAuth(tokens *repository.TokenRepo, log *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"status": "error", "message": "Authentication required",
				})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()

			p, err := tokens.FindByAccessToken(ctx, raw)
			if err != nil {
				switch {
				case errors.Is(err, repository.ErrTokenInvalid),
					errors.Is(err, repository.ErrTokenExpired),
					errors.Is(err, repository.ErrAccountInactive):
					log.Debug("token rejected",
						zap.Error(err),
						zap.String("remote_ip", c.RealIP()))
					return c.JSON(http.StatusUnauthorized, echo.Map{
						"status": "error", "message": "Invalid or expired token",
					})
				default:
					log.Error("token lookup failed", zap.Error(err))
					return c.JSON(http.StatusServiceUnavailable, echo.Map{
						"status": "error", "message": "Service temporarily unavailable",
					})
				}
			}

			// Best-effort activity stamp; a failure here must not fail the
			// request.
			if err := tokens.TouchLastActivity(ctx, p.UserID); err != nil {
				log.Warn("last-activity update failed",
					zap.Uint64("user_id", p.UserID), zap.Error(err))
			}

			c.Set(principalKey, p)
			c.Set("user_id", p.UserID)
			c.Set("role", p.Role)
			return next(c)
		}
	}
}

// CurrentPrincipal returns the principal stored by BearerAuth, or false when
// the route was reached without it.
func CurrentPrincipal(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	return p, ok
}
