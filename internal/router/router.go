// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/localgov/asset-tracker-auth/internal/handler"
	"github.com/localgov/asset-tracker-auth/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication or handler
// dependencies. Currently only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the auth endpoints. Credential-bearing operations
// live under /v1/auth and sit behind the rate limiter; session-bound
// operations live under /v1 behind the bearer-token verifier. Protected
// collaborators (asset and maintenance CRUD services) reuse the same
// BearerAuth middleware and read the Principal from the request context.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/register", a.Register)

	// Paths the deployed mobile client still calls.
	e.POST("/login", a.Login, limit)
	e.POST("/refresh", a.Refresh, limit)

	p := e.Group("/v1", middleware.BearerAuth(a.Tokens, a.Log))
	p.POST("/logout", a.Logout)
	p.POST("/change-password", a.ChangePassword)
	p.GET("/me", a.Me)
}
