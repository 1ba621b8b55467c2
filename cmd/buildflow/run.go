package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/dukex/buildflow/pkg/channels/kafka"
	"github.com/dukex/buildflow/pkg/cmd"
	"github.com/dukex/buildflow/pkg/config"
	"github.com/dukex/buildflow/pkg/eventbus"
	"github.com/dukex/buildflow/pkg/handlers"
	"github.com/dukex/buildflow/pkg/log"
	"github.com/dukex/buildflow/pkg/metrics"
	"github.com/dukex/buildflow/pkg/otelhelper"
	"github.com/dukex/buildflow/pkg/rules"
	"github.com/dukex/buildflow/pkg/web"
	"github.com/dukex/buildflow/pkg/workflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
)

func RunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Start the workflow API and event dispatcher",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence (file path or postgres://)",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus type (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "kafka-brokers",
				Usage:   "Comma separated Kafka brokers",
				Sources: cli.EnvVars("KAFKA_BROKERS"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL for the project timeline; the timeline is disabled when empty",
				Sources: cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "rules-config",
				Usage:   "YAML file overriding the built-in workflow rules",
				Sources: cli.EnvVars("RULES_CONFIG"),
			},
			&cli.IntFlag{
				Name:    "workers",
				Usage:   "Number of event handler workers",
				Value:   4,
				Sources: cli.EnvVars("WORKERS"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json)",
				Value:   "text",
				Sources: cli.EnvVars("LOG_FORMAT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := log.Setup(command.String("log-level"), command.String("log-format")).With("module", "buildflow")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, logger, command)
		},
	}
}

func run(ctx context.Context, logger *slog.Logger, command *cli.Command) error {
	logger.InfoContext(ctx, "Initializing Buildflow")

	tracer := otelhelper.NoopTracer()

	if command.Bool("tracing") {
		t, shutdown, err := otelhelper.NewTracer(ctx, "buildflow")
		if err != nil {
			return fmt.Errorf("failed to initialize tracer: %w", err)
		}

		defer func() {
			if err := shutdown(context.WithoutCancel(ctx)); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		}()

		tracer = t
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := metrics.New(registry)

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), kafka.ParseBrokers(command.String("kafka-brokers")), logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	configuredRules, err := config.LoadRules(command.String("rules-config"))
	if err != nil {
		return err
	}

	ruleEngine := rules.NewEngine(logger, configuredRules...)

	ruleNames := make([]string, 0, len(configuredRules))
	for _, rule := range ruleEngine.Rules() {
		ruleNames = append(ruleNames, rule.Name())
	}

	logger.InfoContext(ctx, "Workflow rules loaded", "rules", ruleNames)

	engine := workflow.NewEngine(
		logger,
		persistence,
		ruleEngine,
		eventBus,
		workflow.WithTracer(tracer),
		workflow.WithMetrics(m),
	)

	consumers, err := newConsumers(ctx, logger, command.String("redis-url"))
	if err != nil {
		return err
	}

	defer consumers.close(ctx, logger)

	dispatcher := eventbus.NewDispatcher(logger, m, tracer, command.Int("workers"))
	consumers.register(dispatcher)

	if err := dispatcher.Start(ctx, eventBus); err != nil {
		return fmt.Errorf("failed to start dispatcher: %w", err)
	}

	defer dispatcher.Stop()

	api := NewAPI(logger, persistence, engine, eventBus, registry, consumers.reports, consumers.timelineReader())

	return api.Serve(ctx, command.Int("port"))
}

type consumers struct {
	notifications *handlers.Notifications
	reports       *handlers.Reports
	timeline      *handlers.Timeline
	redis         *redis.Client
}

func newConsumers(ctx context.Context, logger *slog.Logger, redisURL string) (*consumers, error) {
	c := &consumers{
		notifications: handlers.NewNotifications(logger, handlers.NewLogNotifier(logger)),
		reports:       handlers.NewReports(logger),
	}

	if redisURL == "" {
		logger.InfoContext(ctx, "REDIS_URL not set, project timeline disabled")

		return c, nil
	}

	client, err := cmd.NewRedisClient(ctx, redisURL)
	if err != nil {
		return nil, err
	}

	c.redis = client
	c.timeline = handlers.NewTimeline(logger, client)

	return c, nil
}

func (c *consumers) close(ctx context.Context, logger *slog.Logger) {
	if c.redis == nil {
		return
	}

	if err := c.redis.Close(); err != nil {
		logger.ErrorContext(ctx, "Failed to close redis client", "error", err)
	}
}

func (c *consumers) register(registrar handlers.Registrar) {
	c.notifications.Register(registrar)
	c.reports.Register(registrar)

	if c.timeline != nil {
		c.timeline.Register(registrar)
	}
}

// timelineReader returns nil, not a nil *Timeline, when the timeline is disabled.
func (c *consumers) timelineReader() web.TimelineReader {
	if c.timeline == nil {
		return nil
	}

	return c.timeline
}
