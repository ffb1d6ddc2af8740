package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sacel-api/internal/config"
	"github.com/noah-isme/sacel-api/internal/handler"
	"github.com/noah-isme/sacel-api/internal/middleware"
	"github.com/noah-isme/sacel-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	RubricHandler     *handler.RubricHandler
	GradingHandler    *handler.GradingHandler
	PeerReviewHandler *handler.PeerReviewHandler
	PlagiarismHandler *handler.PlagiarismHandler
	AnalyticsHandler  *handler.AnalyticsHandler
	ActivityHandler   *handler.ActivityHandler
	JWTMiddleware     fiber.Handler
	HealthProbes      map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}
	protected := func(prefix string, guards ...fiber.Handler) fiber.Router {
		handlers := append([]fiber.Handler{jwtMiddleware, middleware.RequireUser()}, guards...)
		return api.Group(prefix, handlers...)
	}

	if deps.RubricHandler != nil {
		deps.RubricHandler.Register(protected("/rubrics"))
	}
	if deps.GradingHandler != nil {
		deps.GradingHandler.Register(protected("/grading"))
	}
	if deps.PeerReviewHandler != nil {
		deps.PeerReviewHandler.Register(protected("/peer-reviews"))
	}
	if deps.PlagiarismHandler != nil {
		deps.PlagiarismHandler.Register(protected("/plagiarism", middleware.RequireRole("teacher", "admin", "student")))
	}
	if deps.AnalyticsHandler != nil {
		deps.AnalyticsHandler.Register(protected("/analytics"))
	}
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(protected("/activity", middleware.RequireRole("admin")))
	}
}
