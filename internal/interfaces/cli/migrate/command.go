package migrate

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/orris-inc/subflow/internal/infrastructure/migration"
	"github.com/orris-inc/subflow/internal/interfaces/cli/appenv"
)

var (
	env        string
	configPath string
	strategy   string
	name       string
	steps      int
)

const scriptsDir = "./internal/infrastructure/migration/scripts"

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Manage database migrations including running migrations, checking status, and creating new migration files.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.PersistentFlags().StringVarP(&strategy, "strategy", "s", "", "Migration strategy: goose, golang_migrate or auto (default: database.migration_strategy)")

	cmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newStatusCommand(),
		newCreateCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		Long:  `Apply all pending database migrations to bring the database schema up to date.`,
		RunE:  runUp,
	}
}

func newDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		Long:  `Rollback a specified number of database migrations.`,
		RunE:  runDown,
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Long:  `Display the current migration version and status of the database.`,
		RunE:  runStatus,
	}
}

func newCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new migration",
		Long:  `Create new migration files with the specified name.`,
		RunE:  runCreate,
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the migration (required)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// initEnv loads the environment and, when withDB is set, connects to the database.
func initEnv(withDB bool) (*appenv.Env, *migration.Manager, error) {
	e, err := appenv.Load(env, configPath)
	if err != nil {
		return nil, nil, err
	}

	strategyName := strategy
	if strategyName == "" {
		strategyName = e.Config.Database.MigrationStrategy
	}
	s, err := migration.NewStrategy(strategyName, e.Log)
	if err != nil {
		return nil, nil, err
	}

	if withDB {
		if err := e.OpenDatabase(); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}
	return e, migration.NewManager(s, e.Log), nil
}

func runUp(cmd *cobra.Command, args []string) error {
	e, manager, err := initEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	e.Log.Infow("running up migrations", "environment", e.Name)
	if err := manager.Migrate(e.DB); err != nil {
		return err
	}

	e.Log.Infow("migrations completed successfully")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	e, manager, err := initEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	e.Log.Infow("running down migrations", "environment", e.Name, "steps", steps)
	if err := manager.Rollback(e.DB, steps); err != nil {
		e.Log.Errorw("down migration failed", "error", err)
		return err
	}

	e.Log.Infow("down migration completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	e, manager, err := initEnv(true)
	if err != nil {
		return err
	}
	defer e.Close()

	status, err := manager.Status(e.DB)
	if err != nil {
		e.Log.Errorw("failed to get migration version", "error", err)
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nMigration Status:\n")
	fmt.Fprintf(out, "  Environment:     %s\n", e.Name)
	fmt.Fprintf(out, "  Strategy:        %s (%s)\n", status.Strategy, status.Description)
	fmt.Fprintf(out, "  Current Version: %d\n", status.Version)
	fmt.Fprintf(out, "  Dirty:           %t\n", status.Dirty)

	if goose, ok := manager.GetStrategy().(*migration.GooseStrategy); ok {
		if err := goose.Status(e.DB); err != nil {
			e.Log.Errorw("failed to get detailed status", "error", err)
			return err
		}
	}
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	e, manager, err := initEnv(false)
	if err != nil {
		return err
	}
	defer e.Close()

	scriptsPath, err := filepath.Abs(scriptsDir)
	if err != nil {
		return fmt.Errorf("failed to get scripts path: %w", err)
	}

	files, err := migration.NewGenerator(scriptsPath, e.Log).Create(manager.GetStrategy().GetName(), name)
	if err != nil {
		e.Log.Errorw("failed to create migration", "error", err)
		return err
	}

	for _, f := range files {
		fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", f)
	}
	return nil
}
