package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/ratecast/ratecast/internal/config"
	"github.com/ratecast/ratecast/internal/handlers"
	"github.com/ratecast/ratecast/internal/logging"
	"github.com/ratecast/ratecast/internal/metrics"
	"github.com/ratecast/ratecast/internal/middleware"
	"github.com/ratecast/ratecast/internal/services"
)

// Setup configures all routes and middlewares. recorder may be nil.
func Setup(app *fiber.App, logger *logging.Logger, svc *services.ForecastService, recorder *metrics.Recorder, cfg config.Config) *handlers.Handler {
	h := handlers.New(logger, svc)

	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		AllowHeaders:  "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
		ExposeHeaders: "Location,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger, logging.MiddlewareConfig{
		SkipPaths: []string{"/health", "/metrics"},
	}))
	if recorder != nil {
		app.Use(recorder.FiberMiddleware())
	}

	// Unauthenticated probes
	app.Get("/health", h.Health)
	if recorder != nil && cfg.Server.Metrics {
		app.Get("/metrics", adaptor.HTTPHandler(recorder.Handler()))
	}

	authMiddleware := middleware.APIKeyAuth(logger, cfg.Auth.APIKeys, cfg.Auth.Enabled)
	v1 := app.Group("/v1", authMiddleware)

	v1.Get("/strategies", h.Strategies)
	v1.Post("/forecasts", h.CreateForecast)
	v1.Get("/forecasts", h.ListForecasts)
	v1.Get("/forecasts/:id", h.GetForecast)
	v1.Delete("/forecasts/:id", h.DeleteForecast)

	// 404 handler
	app.Use(h.NotFound)

	return h
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, svc *services.ForecastService, recorder *metrics.Recorder, cfg config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "ratecast",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		BodyLimit:             cfg.Server.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, svc, recorder, cfg)

	return app
}
