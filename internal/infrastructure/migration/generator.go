package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/orris-inc/subflow/internal/shared/logger"
)

var (
	migrationNamePattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	sequencePattern      = regexp.MustCompile(`^(\d+)_.*\.up\.sql$`)
)

// Generator handles creation of new migration files on disk
type Generator struct {
	scriptsPath string
	logger      logger.Interface
	now         func() time.Time
}

// NewGenerator creates a generator rooted at the scripts directory, which
// holds the goose/ and migrate/ subdirectories.
func NewGenerator(scriptsPath string, log logger.Interface) *Generator {
	return &Generator{
		scriptsPath: scriptsPath,
		logger:      log.With("component", "migration.generator"),
		now:         time.Now,
	}
}

// Create writes an empty migration for the given strategy and returns the
// created file paths.
func (g *Generator) Create(strategy, name string) ([]string, error) {
	if !migrationNamePattern.MatchString(name) {
		return nil, fmt.Errorf("migration name must be snake_case, got %q", name)
	}

	switch strategy {
	case "goose":
		return g.createGoose(name)
	case "golang_migrate":
		return g.createMigratePair(name)
	default:
		return nil, fmt.Errorf("%w: create with %s", ErrUnsupported, strategy)
	}
}

func (g *Generator) createGoose(name string) ([]string, error) {
	dir := filepath.Join(g.scriptsPath, "goose")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scripts directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s.sql", g.now().UTC().Format("20060102150405"), name))
	content := fmt.Sprintf(`-- Migration: %s
-- Created: %s

-- +goose Up

-- +goose Down
`, name, g.now().UTC().Format("2006-01-02 15:04:05"))

	if err := g.writeFile(path, content); err != nil {
		return nil, fmt.Errorf("failed to create goose migration: %w", err)
	}

	g.logger.Infow("migration file created", "file", path)
	return []string{path}, nil
}

func (g *Generator) createMigratePair(name string) ([]string, error) {
	dir := filepath.Join(g.scriptsPath, "migrate")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create scripts directory: %w", err)
	}

	next, err := nextSequence(dir)
	if err != nil {
		return nil, err
	}

	created := g.now().UTC().Format("2006-01-02 15:04:05")
	upPath := filepath.Join(dir, fmt.Sprintf("%06d_%s.up.sql", next, name))
	downPath := filepath.Join(dir, fmt.Sprintf("%06d_%s.down.sql", next, name))

	if err := g.writeFile(upPath, fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n", name, created)); err != nil {
		return nil, fmt.Errorf("failed to create up migration file: %w", err)
	}
	if err := g.writeFile(downPath, fmt.Sprintf("-- Rollback Migration: %s\n-- Created: %s\n\n", name, created)); err != nil {
		return nil, fmt.Errorf("failed to create down migration file: %w", err)
	}

	g.logger.Infow("migration files created successfully",
		"up_file", upPath,
		"down_file", downPath)

	return []string{upPath, downPath}, nil
}

func nextSequence(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read scripts directory: %w", err)
	}

	highest := 0
	for _, e := range entries {
		m := sequencePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(strings.TrimLeft(m[1], "0"))
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest + 1, nil
}

// writeFile refuses to overwrite an existing migration
func (g *Generator) writeFile(filePath, content string) error {
	file, err := os.OpenFile(filePath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = file.WriteString(content)
	return err
}
