// Package appenv loads the configuration, logger, timezone and database
// shared by every subflow command.
package appenv

import (
	"fmt"
	"os"

	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/infrastructure/config"
	"github.com/orris-inc/subflow/internal/infrastructure/database"
	"github.com/orris-inc/subflow/internal/shared/biztime"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

// Env is the initialized process environment.
type Env struct {
	Name   string
	Config *config.Config
	Log    logger.Interface
	DB     *gorm.DB
}

// Load reads the config for env and initializes logging and the business
// timezone. The ENV variable overrides env.
func Load(env, configPath string) (*Env, error) {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	cfg, err := config.Load(env, configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Server.Mode = MapEnvToGinMode(env)

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Initialize business timezone for cron schedules and email dates
	if err := biztime.Init(cfg.Server.Timezone); err != nil {
		return nil, fmt.Errorf("failed to initialize business timezone: %w", err)
	}

	return &Env{
		Name:   env,
		Config: cfg,
		Log:    logger.NewLogger(),
	}, nil
}

// OpenDatabase connects to the configured database.
func (e *Env) OpenDatabase() error {
	db, err := database.Open(&e.Config.Database)
	if err != nil {
		return err
	}
	e.DB = db
	return nil
}

// Close releases the database and flushes the logger.
func (e *Env) Close() {
	if err := database.Close(e.DB); err != nil {
		e.Log.Errorw("failed to close database", "error", err)
	}
	_ = logger.Sync()
}

func MapEnvToGinMode(environment string) string {
	switch environment {
	case "production", "prod", "release":
		return "release"
	case "test", "testing":
		return "test"
	default:
		return "debug"
	}
}
