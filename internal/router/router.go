package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ultracoach/ultracoach-api/internal/config"
	"github.com/ultracoach/ultracoach-api/internal/handler"
	"github.com/ultracoach/ultracoach-api/internal/middleware"
	"github.com/ultracoach/ultracoach-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	MessageHandler      *handler.MessageHandler
	RealtimeHandler     *handler.RealtimeHandler
	WorkoutHandler      *handler.WorkoutHandler
	PlanHandler         *handler.PlanHandler
	NotificationHandler *handler.NotificationHandler
	JWTMiddleware       fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	// Liveness probe; rate limited because offline clients poll it aggressively.
	api.Get("/health",
		middleware.RateLimit("health", cfg.ProbeRateLimit, cfg.ProbeRateWindow),
		handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.MessageHandler != nil {
		deps.MessageHandler.Register(api.Group("/messages", jwtMiddleware))
	}

	if deps.RealtimeHandler != nil {
		deps.RealtimeHandler.Register(api.Group("/typing", jwtMiddleware))
	}

	if deps.WorkoutHandler != nil {
		deps.WorkoutHandler.Register(api.Group("/workouts", jwtMiddleware))
	}

	if deps.PlanHandler != nil {
		deps.PlanHandler.Register(api.Group("/plans", jwtMiddleware))
	}

	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(api.Group("/notifications", jwtMiddleware))
	}
}
