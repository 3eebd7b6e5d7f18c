package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/artdirector-api/internal/config"
	"github.com/noah-isme/artdirector-api/internal/database"
	"github.com/noah-isme/artdirector-api/internal/middleware"
	"github.com/noah-isme/artdirector-api/internal/models"
	"github.com/noah-isme/artdirector-api/internal/router"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := newRootCommand(logger).ExecuteContext(context.Background()); err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}

func newRootCommand(logger zerolog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "artdirector-api",
		Short:         "Art director grading API and workers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API with an embedded grading worker pool and stale sweeper",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), logger)
			},
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Run grading workers against the configured job queue",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runWorker(cmd.Context(), logger)
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Fail pending submissions older than the stale threshold once",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runSweep(cmd.Context(), cmd, logger)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update database tables",
			RunE: func(_ *cobra.Command, _ []string) error {
				return runMigrate(logger)
			},
		},
	)

	return root
}

func runServe(parent context.Context, logger zerolog.Logger) error {
	ctx, stop := signalContext(parent)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	app, err := bootstrap(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer app.Close()

	server := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
		BodyLimit:    int(models.MaxArtifactBytes) + 1<<20,
	})

	middleware.Register(server, middleware.Config{Logger: &logger, AllowOrigins: cfg.CORSAllowOrigins})
	router.Register(server, cfg, router.Dependencies{
		SubmissionHandler: app.submissionHandler,
		UserHandler:       app.userHandler,
		HealthProbes:      app.healthProbes,
	})

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return app.pool.Run(groupCtx)
	})
	group.Go(func() error {
		app.sweeper.Run(groupCtx)
		return nil
	})
	group.Go(func() error {
		logger.Info().Str("address", cfg.HTTPAddress()).Msg("http server listening")
		if err := server.Listen(cfg.HTTPAddress()); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
		}
		return nil
	})

	err = group.Wait()
	logger.Info().Msg("server stopped")
	return err
}

func runWorker(parent context.Context, logger zerolog.Logger) error {
	ctx, stop := signalContext(parent)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.QueueBackend == "memory" {
		logger.Warn().Msg("memory queue only receives jobs published by this process; use serve or a broker-backed queue")
	}

	app, err := bootstrap(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer app.Close()

	err = app.pool.Run(ctx)
	logger.Info().Msg("worker stopped")
	return err
}

func runSweep(parent context.Context, cmd *cobra.Command, logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	app, err := bootstrap(parent, cfg, logger, false)
	if err != nil {
		return err
	}
	defer app.Close()

	count, err := app.sweeper.RunOnce(parent)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d stale submissions failed\n", count)
	return nil
}

func runMigrate(logger zerolog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	db, err := database.Connect(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	logger.Info().Str("driver", cfg.DatabaseDriver).Msg("database migrated")
	return nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}
