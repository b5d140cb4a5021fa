package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dukex/enviroflow/pkg/audit"
	"github.com/dukex/enviroflow/pkg/capability"
	"github.com/dukex/enviroflow/pkg/cmd"
	"github.com/dukex/enviroflow/pkg/importer"
	"github.com/dukex/enviroflow/pkg/log"
	"github.com/dukex/enviroflow/pkg/models"
	"github.com/dukex/enviroflow/pkg/otelhelper"
	"github.com/dukex/enviroflow/pkg/persistence"
	"github.com/dukex/enviroflow/pkg/services"
	"github.com/dukex/enviroflow/pkg/snapshot"
	"github.com/dukex/enviroflow/pkg/validation"
	cli "github.com/urfave/cli/v3"
)

// Exit codes of a command that ran but found problems.
const (
	exitInvalid     = 2
	exitNotReady    = 3
	exitRejectedRun = 4
)

func databaseFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "database-url",
		Usage:    "Database connection URL for persistence (file path or postgres://)",
		Required: true,
		Sources:  cli.EnvVars("DATABASE_URL"),
	}
}

func capabilitiesFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "capabilities-url",
		Usage:   "Controller capability source (redis:// URL or YAML file path)",
		Sources: cli.EnvVars("CAPABILITIES_URL"),
	}
}

type validateReport struct {
	Name       string                       `json:"name"`
	Structure  validation.StructureResult   `json:"structure"`
	Capability *capability.CapabilityReport `json:"capability,omitempty"`
}

func setupLogger(command *cli.Command, module string) *slog.Logger {
	log.Setup(command.String("log-level"), command.String("log-format"))

	return log.WithModule(module)
}

func writeJSON(command *cli.Command, value any) error {
	encoder := json.NewEncoder(command.Root().Writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(value)
}

func firstArg(command *cli.Command, name string) (string, error) {
	value := command.Args().First()
	if value == "" {
		return "", cli.Exit("missing argument: "+name, 1)
	}

	return value, nil
}

func openPersistence(ctx context.Context, command *cli.Command, logger *slog.Logger) (persistence.Persistence, func(), error) {
	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return nil, nil, err
	}

	return store, func() {
		if err := store.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}, nil
}

func openSnapshots(ctx context.Context, command *cli.Command, logger *slog.Logger) (snapshot.Provider, func(), error) {
	provider, closeProvider, err := cmd.NewSnapshotProvider(ctx, logger, command.String("capabilities-url"), cmd.SnapshotOptions{})
	if err != nil {
		return nil, nil, err
	}

	return provider, func() {
		if err := closeProvider(); err != nil {
			logger.ErrorContext(ctx, "Failed to close capability source", "error", err)
		}
	}, nil
}

func validateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "Sanitize and validate an exported workflow file",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{capabilitiesFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := setupLogger(command, "cli.validate")

			path, err := firstArg(command, "file")
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			imported, err := importer.Sanitize(raw)
			if err != nil {
				return cli.Exit(err.Error(), exitInvalid)
			}

			report := validateReport{
				Name:      imported.Name,
				Structure: validation.ValidateGraph(imported.Graph()),
			}

			if command.IsSet("capabilities-url") {
				provider, closeProvider, err := openSnapshots(ctx, command, logger)
				if err != nil {
					return err
				}
				defer closeProvider()

				workflow := &models.Workflow{Nodes: imported.Nodes, Edges: imported.Edges}

				current, err := provider.Snapshot(ctx, workflow.ControllerIDs())
				if err != nil {
					return fmt.Errorf("failed to load controller capabilities: %w", err)
				}

				capabilities, err := capability.CheckCapabilities(workflow.Nodes, current)
				if err != nil {
					return fmt.Errorf("failed to check capabilities: %w", err)
				}

				report.Capability = &capabilities
			}

			err = writeJSON(command, report)
			if err != nil {
				return err
			}

			switch {
			case !report.Structure.Valid:
				return cli.Exit("workflow is structurally invalid", exitInvalid)
			case report.Capability != nil && len(report.Capability.Errors()) > 0:
				return cli.Exit("workflow cannot run on the current controllers", exitNotReady)
			}

			return nil
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import an exported workflow file; the new workflow starts inactive",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.StringFlag{Name: "owner", Usage: "Owner of the imported workflow"},
			&cli.StringFlag{Name: "room", Usage: "Room the imported workflow belongs to"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := setupLogger(command, "cli.import")

			path, err := firstArg(command, "file")
			if err != nil {
				return err
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}

			store, closeStore, err := openPersistence(ctx, command, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			req := services.ImportRequest{Payload: raw, OwnerID: command.String("owner")}
			if room := command.String("room"); room != "" {
				req.RoomID = &room
			}

			transfer := services.NewTransfer(logger, store, nil, otelhelper.NoopTracer())

			result, err := transfer.Import(ctx, req)
			if err != nil {
				if importer.IsImportError(err) || errors.Is(err, services.ErrGraphInvalid) {
					return cli.Exit(err.Error(), exitRejectedRun)
				}

				return err
			}

			return writeJSON(command, result)
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write a stored workflow as an export file",
		ArgsUsage: "<workflow-id>",
		Flags: []cli.Flag{
			databaseFlag(),
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Output file (default: stdout)"},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := setupLogger(command, "cli.export")

			id, err := firstArg(command, "workflow-id")
			if err != nil {
				return err
			}

			store, closeStore, err := openPersistence(ctx, command, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			document, _, err := services.NewTransfer(logger, store, nil, otelhelper.NoopTracer()).Export(ctx, id)
			if err != nil {
				if services.IsNotFoundError(err) {
					return cli.Exit("workflow not found: "+id, 1)
				}

				return err
			}

			if output := command.String("output"); output != "" {
				return os.WriteFile(output, document, 0o600)
			}

			_, err = command.Root().Writer.Write(append(document, '\n'))

			return err
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Re-check every active workflow against the current controllers once",
		Flags: []cli.Flag{databaseFlag(), capabilitiesFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := setupLogger(command, "cli.audit")

			store, closeStore, err := openPersistence(ctx, command, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			provider, closeProvider, err := openSnapshots(ctx, command, logger)
			if err != nil {
				return err
			}
			defer closeProvider()

			readiness := services.NewReadiness(logger, store, provider, otelhelper.NoopTracer())

			auditor, err := audit.NewAuditor(logger, store, readiness, nil, audit.DefaultSchedule)
			if err != nil {
				return err
			}

			summary, err := auditor.RunOnce(ctx)
			if err != nil {
				return err
			}

			err = writeJSON(command, summary)
			if err != nil {
				return err
			}

			if summary.NotReady > 0 || summary.Failed > 0 {
				return cli.Exit(fmt.Sprintf("%d workflow(s) not ready", summary.NotReady+summary.Failed), exitNotReady)
			}

			return nil
		},
	}
}

func capabilitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "capabilities",
		Usage: "Manage controller capability snapshots",
		Commands: []*cli.Command{
			{
				Name:      "publish",
				Usage:     "Publish the controllers of a YAML snapshot file into the Redis store",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "capabilities-url",
						Usage:    "Redis URL of the capability store",
						Required: true,
						Sources:  cli.EnvVars("CAPABILITIES_URL"),
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Expire the published entries after this long (0 keeps them)",
					},
				},
				Action: func(ctx context.Context, command *cli.Command) error {
					logger := setupLogger(command, "cli.capabilities")

					path, err := firstArg(command, "file")
					if err != nil {
						return err
					}

					controllers, err := snapshot.LoadFile(path)
					if err != nil {
						return err
					}

					store, err := snapshot.NewRedisStore(ctx, logger, snapshot.RedisOptions{
						URL: command.String("capabilities-url"),
						TTL: command.Duration("ttl"),
					})
					if err != nil {
						return err
					}

					defer func() { _ = store.Close() }()

					for _, controller := range controllers {
						if err := store.Publish(ctx, controller); err != nil {
							return err
						}
					}

					_, err = fmt.Fprintf(command.Root().Writer, "published %d controller(s)\n", len(controllers))

					return err
				},
			},
		},
	}
}
