package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/orris-inc/subflow/internal/infrastructure/migration"
	"github.com/orris-inc/subflow/internal/interfaces/cli/appenv"
	httpRouter "github.com/orris-inc/subflow/internal/interfaces/http"
)

var (
	env         string
	configPath  string
	autoMigrate bool
	noJobs      bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server",
		Long:  `Start the webhook server. Queue workers and recurring triggers run in-process unless --no-jobs is given.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Apply pending migrations on startup")
	cmd.Flags().BoolVar(&noJobs, "no-jobs", false, "Serve webhooks only; run jobs with the worker command")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	e, err := appenv.Load(env, configPath)
	if err != nil {
		return err
	}
	log := e.Log
	cfg := e.Config

	log.Infow("starting server",
		"environment", e.Name,
		"auto_migrate", autoMigrate,
		"jobs", !noJobs)

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard
	gin.DebugPrintRouteFunc = func(httpMethod, absolutePath, handlerName string, nuHandlers int) {}

	if err := e.OpenDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer e.Close()

	if autoMigrate {
		if e.Name == "production" {
			log.Warnw("auto-migration is enabled in production environment")
		}
		strategy, err := migration.NewStrategy(cfg.Database.MigrationStrategy, log)
		if err != nil {
			return err
		}
		if err := migration.NewManager(strategy, log).Migrate(e.DB); err != nil {
			return err
		}
	}

	container, err := httpRouter.NewContainer(e.DB, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to wire application: %w", err)
	}
	container.SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if noJobs {
		log.Infow("background jobs disabled", "reason", "--no-jobs")
	} else {
		container.StartJobs(ctx)
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      container.GetEngine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("server starting",
			"address", cfg.Server.GetAddr(),
			"mode", cfg.Server.Mode)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			container.Shutdown(context.Background())
			return fmt.Errorf("failed to start server: %w", err)
		}
	}

	log.Infow("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	container.Shutdown(shutdownCtx)

	log.Infow("server exited gracefully")
	return nil
}
