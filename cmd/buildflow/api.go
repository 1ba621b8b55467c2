// Package main provides the Buildflow API server implementation.
package main

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dukex/buildflow/pkg/eventbus"
	"github.com/dukex/buildflow/pkg/models"
	"github.com/dukex/buildflow/pkg/persistence"
	"github.com/dukex/buildflow/pkg/services"
	"github.com/dukex/buildflow/pkg/web"
	"github.com/dukex/buildflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	engine      *workflow.Engine
	eventBus    eventbus.EventBus
	gatherer    prometheus.Gatherer
	reports     web.ReportReader
	timeline    web.TimelineReader
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	engine *workflow.Engine,
	eventBus eventbus.EventBus,
	gatherer prometheus.Gatherer,
	reports web.ReportReader,
	timeline web.TimelineReader,
) *API {
	return &API{
		logger:      logger.With("module", "api"),
		persistence: persistence,
		engine:      engine,
		eventBus:    eventBus,
		gatherer:    gatherer,
		reports:     reports,
		timeline:    timeline,
		validate:    models.NewValidator(),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.engine,
		services.NewProvisioning(a.logger, a.persistence),
		services.NewAssignments(a.logger, a.persistence, a.eventBus),
		services.NewHealth(a.persistence),
		a.reports,
		a.timeline,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Buildflow API")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{})))
	app.Get("/health", handlers.HealthCheck)

	p := app.Group("/projects")
	p.Post("/", handlers.CreateProject)
	p.Post("/:projectId/workflow/execute", handlers.ExecuteWorkflow)
	p.Post("/:projectId/workflow/can-execute", handlers.CanExecuteTransition)
	p.Post("/:projectId/tasks/:taskId/assign", handlers.AssignTask)
	p.Post("/:projectId/tasks/:taskId/accept", handlers.AcceptAssignment)
	p.Get("/:projectId/report", handlers.GetReport)
	p.Get("/:projectId/timeline", handlers.GetTimeline)

	return app
}

// Serve listens on port until ctx is cancelled, then shuts the server down.
func (a *API) Serve(ctx context.Context, port int) error {
	app := a.App()
	errs := make(chan error, 1)

	go func() {
		errs <- app.Listen(":"+strconv.Itoa(port), fiber.ListenConfig{DisableStartupMessage: true})
	}()

	a.logger.InfoContext(ctx, "API listening", "port", port)

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		a.logger.InfoContext(ctx, "Shutting down API")

		return app.ShutdownWithContext(context.WithoutCancel(ctx))
	}
}
