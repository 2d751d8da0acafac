package worker

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/orris-inc/subflow/internal/interfaces/cli/appenv"
	httpRouter "github.com/orris-inc/subflow/internal/interfaces/http"
)

var (
	env        string
	configPath string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run queue workers and recurring triggers",
		Long:  `Run the job workers and the maintenance schedule without serving HTTP. Pair with "server --no-jobs".`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	e, err := appenv.Load(env, configPath)
	if err != nil {
		return err
	}
	log := e.Log

	if err := e.OpenDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer e.Close()

	container, err := httpRouter.NewContainer(e.DB, e.Config, log)
	if err != nil {
		return fmt.Errorf("failed to wire application: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container.StartJobs(ctx)
	if !container.JobsEnabled() {
		// a worker with nothing to run should be restarted by its supervisor
		return fmt.Errorf("background jobs could not be started")
	}

	log.Infow("worker started", "environment", e.Name)
	<-ctx.Done()
	log.Infow("received signal, shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	container.Shutdown(shutdownCtx)

	log.Infow("worker stopped")
	return nil
}
