package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/TjayDev-11/Servicesoko-sub000/internal/api/http/handlers"
	"github.com/TjayDev-11/Servicesoko-sub000/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/signup", cfg.Auth.Signup)
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/refresh", cfg.Auth.Refresh)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	protected.Get("/validate-token", cfg.Auth.ValidateToken)
	protected.Post("/logout", cfg.Auth.Logout)
}
