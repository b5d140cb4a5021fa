// Package main provides the EnviroFlow API server.
package main

import (
	"log/slog"

	"github.com/dukex/enviroflow/pkg/eventbus"
	"github.com/dukex/enviroflow/pkg/persistence"
	"github.com/dukex/enviroflow/pkg/services"
	"github.com/dukex/enviroflow/pkg/snapshot"
	"github.com/dukex/enviroflow/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"
)

// bodyLimit leaves room above the import cap so oversized imports get a typed 413.
const bodyLimit = 4 * 1024 * 1024

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	snapshots   snapshot.Provider
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	validate    *validator.Validate

	readiness *services.Readiness
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	snapshots snapshot.Provider,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		snapshots:   snapshots,
		eventBus:    eventBus,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		readiness:   services.NewReadiness(logger, persistence, snapshots, tracer),
	}
}

// Readiness returns the readiness service shared by the handlers and the auditor.
func (a *API) Readiness() *services.Readiness {
	return a.readiness
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		services.NewWorkflow(a.logger, a.persistence, a.eventBus, a.tracer),
		a.readiness,
		services.NewActivation(a.logger, a.persistence, a.readiness, a.eventBus),
		services.NewTransfer(a.logger, a.persistence, a.eventBus, a.tracer),
		a.validate,
	)

	app := fiber.New(fiber.Config{BodyLimit: bodyLimit})
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("EnviroFlow API")
	})

	handlers.Register(app)

	return app
}
