package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/orchid-auth/internal/api/http/handlers"
	"github.com/spec-kit/orchid-auth/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Roles          *handlers.RoleHandler
	AuthMiddleware *auth.AuthMiddleware
	Gate           *auth.Gate
}

// RegisterRoutes installs the authentication stage, the route policy and the
// routes behind them. Every route passes through both stages.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Use(cfg.AuthMiddleware.Handle)
	app.Use(cfg.Gate.Handle)

	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/login", cfg.Auth.Login)
	authGroup.Post("/register", cfg.Auth.Register)
	authGroup.Post("/validate", cfg.Auth.Validate)
	authGroup.Get("/me", auth.RequireAuthenticated(), cfg.Auth.Me)
	authGroup.Put("/users/:id/role", cfg.Auth.UpdateUserRole)

	authGroup.Post("/roles", cfg.Roles.Create)
	authGroup.Get("/roles", cfg.Roles.List)
	authGroup.Get("/roles/:id", cfg.Roles.Get)
	authGroup.Put("/roles/:id", cfg.Roles.Update)
	authGroup.Delete("/roles/:id", cfg.Roles.Delete)

	authGroup.Get("/test-admin", cfg.Auth.TestAdmin)
	authGroup.Get("/test-user", cfg.Auth.TestUser)
	authGroup.Get("/test-auth", cfg.Auth.TestAuth)
}
