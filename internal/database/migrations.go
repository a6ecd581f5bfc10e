package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/sirupsen/logrus"

	"github.com/clinimetric-scale-server/migrations"
)

// MigrationStatus is the schema version recorded in the database.
type MigrationStatus struct {
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
	Source  string `json:"source"`
}

// MigrationRunner applies the scale and assessment schema. With an empty
// path it uses the migrations compiled into the binary.
type MigrationRunner struct {
	migrate *migrate.Migrate
	source  string
	log     *logrus.Logger
}

// NewMigrationRunner creates a runner for databaseURL. migrationsPath may be a
// directory, a source URL, or empty for the embedded schema.
func NewMigrationRunner(databaseURL, migrationsPath string, logger *logrus.Logger) (*MigrationRunner, error) {
	var (
		m      *migrate.Migrate
		source string
		err    error
	)

	if migrationsPath == "" {
		source = "embedded"
		driver, srcErr := iofs.New(migrations.FS, ".")
		if srcErr != nil {
			return nil, fmt.Errorf("opening embedded migrations: %w", srcErr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", driver, databaseURL)
	} else {
		source = migrationsPath
		if !strings.Contains(source, "://") {
			source = "file://" + migrationsPath
		}
		m, err = migrate.New(source, databaseURL)
	}
	if err != nil {
		return nil, fmt.Errorf("creating migration instance: %w", err)
	}
	m.Log = migrateLogger{logger}

	logger.WithField("source", source).Debug("Migration runner created")

	return &MigrationRunner{migrate: m, source: source, log: logger}, nil
}

// Up applies every pending migration. Cancelling ctx stops after the
// migration in progress.
func (mr *MigrationRunner) Up(ctx context.Context) error {
	mr.log.Info("Running database migrations up")
	return mr.run(ctx, "up", mr.migrate.Up)
}

// Down rolls back one migration.
func (mr *MigrationRunner) Down(ctx context.Context) error {
	mr.log.Info("Rolling back one migration")
	return mr.run(ctx, "down", func() error { return mr.migrate.Steps(-1) })
}

func (mr *MigrationRunner) run(ctx context.Context, op string, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		mr.migrate.GracefulStop <- true
		<-done
		return fmt.Errorf("migrations %s interrupted: %w", op, ctx.Err())
	}

	if errors.Is(err, migrate.ErrNoChange) {
		mr.log.WithField("direction", op).Info("Schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("running migrations %s: %w", op, err)
	}

	status, err := mr.Status()
	if err != nil {
		mr.log.WithError(err).Warn("Could not read migration version")
		return nil
	}
	mr.log.WithFields(logrus.Fields{
		"direction": op,
		"version":   status.Version,
		"dirty":     status.Dirty,
	}).Info("Migrations applied")
	return nil
}

// Version returns the current migration version.
func (mr *MigrationRunner) Version() (uint, bool, error) {
	return mr.migrate.Version()
}

// Status reports the schema version. An unmigrated database is version 0.
func (mr *MigrationRunner) Status() (MigrationStatus, error) {
	status := MigrationStatus{Source: mr.source}
	version, dirty, err := mr.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return status, nil
	}
	if err != nil {
		return status, fmt.Errorf("reading migration version: %w", err)
	}
	status.Version = version
	status.Dirty = dirty
	return status, nil
}

// Close releases the source and database handles.
func (mr *MigrationRunner) Close() error {
	sourceErr, dbErr := mr.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("closing migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("closing migration database: %w", dbErr)
	}
	return nil
}

type migrateLogger struct {
	log *logrus.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.Debugf("migrate: "+strings.TrimSuffix(format, "\n"), v...)
}

func (l migrateLogger) Verbose() bool {
	return l.log.IsLevelEnabled(logrus.DebugLevel)
}
