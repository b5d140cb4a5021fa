package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukex/enviroflow/pkg/audit"
	"github.com/dukex/enviroflow/pkg/cmd"
	"github.com/dukex/enviroflow/pkg/eventbus"
	"github.com/dukex/enviroflow/pkg/events"
	"github.com/dukex/enviroflow/pkg/log"
	"github.com/dukex/enviroflow/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultPort = 9091
	serviceName = "enviroflow-api"
)

func main() {
	command := &cli.Command{
		Name:                  serviceName,
		Usage:                 "Author, validate and audit environmental automation workflows",
		EnableShellCompletion: true,
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
				Name:    "capabilities-url",
				Usage:   "Controller capability source (redis:// URL or YAML file path)",
				Sources: cli.EnvVars("CAPABILITIES_URL"),
			},
			&cli.DurationFlag{
				Name:    "capabilities-max-age",
				Usage:   "Treat controller snapshots older than this as offline (0 disables)",
				Sources: cli.EnvVars("CAPABILITIES_MAX_AGE"),
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
				Name:    "audit-schedule",
				Usage:   "Cron schedule of the readiness audit, empty string disables it",
				Value:   audit.DefaultSchedule,
				Sources: cli.EnvVars("AUDIT_SCHEDULE"),
			},
			&cli.BoolFlag{
				Name:    "tracing",
				Usage:   "Export OpenTelemetry traces over OTLP/HTTP",
				Sources: cli.EnvVars("TRACING_ENABLED"),
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
		Action: run,
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, command *cli.Command) error {
	log.Setup(command.String("log-level"), command.String("log-format"))

	logger := log.WithModule("api")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.InfoContext(ctx, "Initializing EnviroFlow API")

	tracer, shutdownTracer, err := newTracer(ctx, command.Bool("tracing"))
	if err != nil {
		return err
	}

	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.ErrorContext(ctx, "Failed to shutdown tracer", "error", err)
		}
	}()

	persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func() {
		if err := persistence.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}()

	snapshots, closeSnapshots, err := cmd.NewSnapshotProvider(ctx, logger, command.String("capabilities-url"),
		cmd.SnapshotOptions{MaxAge: command.Duration("capabilities-max-age")})
	if err != nil {
		return err
	}

	defer func() {
		if err := closeSnapshots(); err != nil {
			logger.ErrorContext(ctx, "Failed to close capability source", "error", err)
		}
	}()

	eventBus, err := cmd.NewEventBus(command.String("event-bus"), command.String("kafka-brokers"), serviceName, logger)
	if err != nil {
		return err
	}

	defer func() {
		if err := eventBus.Close(); err != nil {
			logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
		}
	}()

	err = watchReadiness(ctx, logger, eventBus)
	if err != nil {
		return err
	}

	api := NewAPI(logger, persistence, snapshots, eventBus, tracer)

	if schedule := command.String("audit-schedule"); schedule != "" {
		auditor, err := audit.NewAuditor(logger, persistence, api.Readiness(), eventBus, schedule)
		if err != nil {
			return err
		}

		err = auditor.Start(ctx)
		if err != nil {
			return err
		}

		defer auditor.Stop()
	}

	app := api.App()

	go func() {
		<-ctx.Done()

		if err := app.Shutdown(); err != nil {
			logger.Error("Failed to shutdown API server", "error", err)
		}
	}()

	err = app.Listen(fmt.Sprintf(":%d", command.Int("port")))
	if err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	return nil
}

// nolint:ireturn
func newTracer(ctx context.Context, enabled bool) (trace.Tracer, otelhelper.ShutdownFunc, error) {
	if !enabled {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	tracer, shutdown, err := otelhelper.NewTracer(ctx, serviceName)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	return tracer, shutdown, nil
}

// watchReadiness logs readiness changes announced by the auditor of any API instance.
func watchReadiness(ctx context.Context, logger *slog.Logger, bus eventbus.EventBus) error {
	err := bus.Handle(events.WorkflowReadinessChangedEvent, func(ctx context.Context, event any) error {
		changed, ok := event.(*events.WorkflowReadinessChanged)
		if !ok {
			return fmt.Errorf("unexpected event %T", event)
		}

		if changed.CanExecute {
			logger.InfoContext(ctx, "Workflow is executable again", "workflow_id", changed.WorkflowID)
		} else {
			logger.WarnContext(ctx, "Workflow can no longer execute",
				"workflow_id", changed.WorkflowID, "issues", len(changed.Issues))
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to register readiness handler: %w", err)
	}

	err = bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to workflow events: %w", err)
	}

	return nil
}
