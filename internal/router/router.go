package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/avelio/skillforge-api/internal/config"
	"github.com/avelio/skillforge-api/internal/handler"
	"github.com/avelio/skillforge-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	PracticeHandler   *handler.PracticeHandler
	GrowthHandler     *handler.GrowthHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.Register(submissions)
	}

	users := api.Group("/users", jwtMiddleware)

	if deps.PracticeHandler != nil {
		practice := api.Group("/practice", jwtMiddleware)
		deps.PracticeHandler.Register(users, practice)
	}

	if deps.GrowthHandler != nil {
		growth := api.Group("/growth", jwtMiddleware)
		deps.GrowthHandler.Register(users, growth)
	}
}
