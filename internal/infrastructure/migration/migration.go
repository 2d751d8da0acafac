// Package migration manages the database schema with goose, golang-migrate
// or gorm AutoMigrate.
package migration

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/orris-inc/subflow/internal/shared/logger"
)

// NewStrategy returns the strategy configured by database.migration_strategy.
func NewStrategy(name string, log logger.Interface) (Strategy, error) {
	switch name {
	case "goose", "":
		return NewGooseStrategy(log), nil
	case "golang_migrate":
		return NewGolangMigrateStrategy(log), nil
	case "auto":
		return NewGormAutoMigrateStrategy(log), nil
	default:
		return nil, fmt.Errorf("unknown migration strategy %q", name)
	}
}

// Manager handles database migrations with different strategies
type Manager struct {
	strategy Strategy
	logger   logger.Interface
}

func NewManager(strategy Strategy, log logger.Interface) *Manager {
	return &Manager{
		strategy: strategy,
		logger:   log.With("component", "migration.manager"),
	}
}

// Migrate executes the configured migration strategy
func (m *Manager) Migrate(db *gorm.DB) error {
	m.logger.Infow("starting database migration", "strategy", m.strategy.GetName())

	if err := m.strategy.Migrate(db); err != nil {
		m.logger.Errorw("migration failed",
			"strategy", m.strategy.GetName(),
			"error", err)
		return fmt.Errorf("migration failed with strategy %s: %w", m.strategy.GetName(), err)
	}

	m.logger.Infow("database migration completed successfully", "strategy", m.strategy.GetName())
	return nil
}

func (m *Manager) Rollback(db *gorm.DB, steps int) error {
	if steps < 1 {
		return fmt.Errorf("steps must be positive, got %d", steps)
	}
	if err := m.strategy.MigrateDown(db, steps); err != nil {
		return fmt.Errorf("rollback failed with strategy %s: %w", m.strategy.GetName(), err)
	}
	return nil
}

// Status describes the applied schema version.
type Status struct {
	Strategy    string
	Version     int64
	Dirty       bool
	Description string
}

func (m *Manager) Status(db *gorm.DB) (Status, error) {
	version, dirty, err := m.strategy.Version(db)
	if err != nil {
		return Status{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return Status{
		Strategy:    m.strategy.GetName(),
		Version:     version,
		Dirty:       dirty,
		Description: getStrategyDescription(m.strategy.GetName()),
	}, nil
}

// GetStrategy returns the current migration strategy
func (m *Manager) GetStrategy() Strategy {
	return m.strategy
}

func getStrategyDescription(strategyName string) string {
	switch strategyName {
	case "auto":
		return "GORM AutoMigrate - Automatic schema migration based on struct definitions"
	case "golang_migrate":
		return "golang-migrate - Version-controlled SQL migration scripts"
	case "goose":
		return "goose - Annotated SQL migration scripts"
	default:
		return "Unknown migration strategy"
	}
}
