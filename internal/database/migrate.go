package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/HammerMeetNail/campussafe/internal/logging"
)

// Migrator applies the SQL files under migrations/ to the CampusSafe schema.
type Migrator struct {
	m *migrate.Migrate
}

func NewMigrator(dsn, migrationsPath string) (*Migrator, error) {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return &Migrator{m: m}, nil
}

// SetLogger routes golang-migrate's progress lines into the structured log.
func (m *Migrator) SetLogger(logger *logging.Logger) {
	m.m.Log = migrateLogger{logger: logger}
}

func (m *Migrator) Up() error {
	return ignoreNoChange(m.m.Up(), "running migrations")
}

func (m *Migrator) Down() error {
	return ignoreNoChange(m.m.Down(), "rolling back migrations")
}

// Steps applies n migrations forward, or rolls back -n when n is negative.
func (m *Migrator) Steps(n int) error {
	return ignoreNoChange(m.m.Steps(n), fmt.Sprintf("stepping migrations by %d", n))
}

// Force records version as applied and clears the dirty flag without running
// anything. It is the way out after a migration failed halfway.
func (m *Migrator) Force(version int) error {
	if err := m.m.Force(version); err != nil {
		return fmt.Errorf("forcing schema version %d: %w", version, err)
	}
	return nil
}

// Version returns migrate.ErrNilVersion before the first migration.
func (m *Migrator) Version() (uint, bool, error) {
	return m.m.Version()
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

func ignoreNoChange(err error, op string) error {
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

type migrateLogger struct {
	logger *logging.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.logger.Info("Migration", map[string]interface{}{
		"detail": strings.TrimSpace(fmt.Sprintf(format, v...)),
	})
}

func (l migrateLogger) Verbose() bool {
	return false
}
