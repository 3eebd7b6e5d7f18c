package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/artdirector-api/internal/config"
	"github.com/noah-isme/artdirector-api/internal/handler"
	"github.com/noah-isme/artdirector-api/internal/middleware"
	"github.com/noah-isme/artdirector-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	UserHandler       *handler.UserHandler
	HealthProbes      map[string]handler.HealthProbe
	JWTMiddleware     fiber.Handler
	// UploadLimiter overrides the per-identity upload limiter, mostly for tests.
	UploadLimiter fiber.Handler
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
		jwtMiddleware = middleware.JWTProtected(cfg.JWTSecret)
	}

	uploadLimiter := deps.UploadLimiter
	if uploadLimiter == nil {
		uploadLimiter = middleware.RateLimit("submission_upload", cfg.UploadRateLimit, time.Minute)
	}

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.Register(submissions, uploadLimiter)
	}

	if deps.UserHandler != nil {
		me := api.Group("/me", jwtMiddleware)
		deps.UserHandler.Register(me)
	}
}
