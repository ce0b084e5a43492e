package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/rental-portal/internal/api/http/handlers"
	"github.com/spec-kit/rental-portal/internal/token"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Session        *handlers.SessionHandler
	AuthMiddleware *token.Middleware
	Limiter        *RateLimiter
}

// RegisterRoutes wires HTTP routes. The limiter guards only the endpoints an
// attacker can feed credentials or mail requests into.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Limiter.Handle, cfg.Session.Login)
	authGroup.Post("/magic-link", cfg.Limiter.Handle, cfg.Session.SendMagicLink)
	authGroup.Post("/magic-link/verify", cfg.Session.VerifyMagicLink)
	authGroup.Post("/refresh", cfg.Session.Refresh)

	protected := authGroup.Group("", cfg.AuthMiddleware.Handle)
	protected.Post("/logout", cfg.Session.Logout)
	protected.Get("/me", cfg.Session.Me)
}
