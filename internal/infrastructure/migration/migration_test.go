package migration

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/orris-inc/subflow/internal/shared/constants"
	"github.com/orris-inc/subflow/internal/shared/logger"
)

func TestNewStrategy(t *testing.T) {
	log := logger.NewNopLogger()
	for name, want := range map[string]string{
		"":               "goose",
		"goose":          "goose",
		"golang_migrate": "golang_migrate",
		"auto":           "auto",
	} {
		s, err := NewStrategy(name, log)
		require.NoError(t, err)
		assert.Equal(t, want, s.GetName())
	}

	_, err := NewStrategy("flyway", log)
	assert.Error(t, err)
}

func TestEmbeddedScriptsAgree(t *testing.T) {
	goose, err := fs.ReadFile(scriptsFS, gooseDir+"/00001_init_billing_schema.sql")
	require.NoError(t, err)
	up, err := fs.ReadFile(scriptsFS, migrateDir+"/000001_init_billing_schema.up.sql")
	require.NoError(t, err)
	down, err := fs.ReadFile(scriptsFS, migrateDir+"/000001_init_billing_schema.down.sql")
	require.NoError(t, err)

	gooseText := string(goose)
	require.Contains(t, gooseText, "-- +goose Up")
	require.Contains(t, gooseText, "-- +goose Down")
	gooseUp, gooseDown, _ := strings.Cut(gooseText, "-- +goose Down")

	for _, table := range []string{
		constants.TableUsers,
		constants.TablePlans,
		constants.TableSubscriptions,
		constants.TablePayments,
		constants.TableNotifications,
		constants.TableProcessedEvents,
		constants.TableJobs,
	} {
		create := "CREATE TABLE IF NOT EXISTS " + table + " ("
		drop := "DROP TABLE IF EXISTS " + table + ";"
		assert.Contains(t, gooseUp, create)
		assert.Contains(t, string(up), create)
		assert.Contains(t, gooseDown, drop)
		assert.Contains(t, string(down), drop)
	}

	assert.Contains(t, string(up), "UNIQUE KEY uk_live_user (live_user_id)")
	assert.Contains(t, string(up), "UNIQUE KEY uk_event_id (event_id)")
}

func TestGormAutoMigrateStrategy(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	m := NewManager(NewGormAutoMigrateStrategy(logger.NewNopLogger()), logger.NewNopLogger())
	require.NoError(t, m.Migrate(db))
	// idempotent
	require.NoError(t, m.Migrate(db))

	for _, table := range []string{constants.TableSubscriptions, constants.TableProcessedEvents, constants.TableJobs} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}

	status, err := m.Status(db)
	require.NoError(t, err)
	assert.Equal(t, "auto", status.Strategy)

	assert.ErrorIs(t, m.Rollback(db, 1), ErrUnsupported)
	assert.Error(t, m.Rollback(db, 0))
}

func TestGenerator_Create(t *testing.T) {
	dir := t.TempDir()
	g := NewGenerator(dir, logger.NewNopLogger())
	g.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	paths, err := g.Create("goose", "add_coupons")
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dir, "goose", "20260301120000_add_coupons.sql"), paths[0])
	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "-- +goose Up")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "migrate"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "migrate", "000007_existing.up.sql"), nil, 0644))

	paths, err = g.Create("golang_migrate", "add_coupons")
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "000008_add_coupons.up.sql", filepath.Base(paths[0]))
	assert.Equal(t, "000008_add_coupons.down.sql", filepath.Base(paths[1]))

	_, err = g.Create("goose", "add_coupons")
	assert.Error(t, err, "existing file must not be overwritten")

	_, err = g.Create("goose", "Bad Name")
	assert.Error(t, err)

	_, err = g.Create("auto", "anything")
	assert.ErrorIs(t, err, ErrUnsupported)
}
