package postgres

import (
	"errors"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/turtacn/regioflow/internal/config"
	"github.com/turtacn/regioflow/internal/infrastructure/monitoring/logging"
	appErrors "github.com/turtacn/regioflow/pkg/errors"
)

// Migrator applies the SQL migrations under the configured directory.
type Migrator struct {
	cfg config.DatabaseConfig
	log logging.Logger
}

// NewMigrator builds a Migrator.
func NewMigrator(cfg config.DatabaseConfig, log logging.Logger) *Migrator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Migrator{cfg: cfg, log: log.Named("migrator")}
}

// Up applies all pending migrations.  A database already at the latest
// version is not an error.
func (m *Migrator) Up() error {
	mig, err := migrate.New("file://"+m.cfg.MigrationsPath, m.cfg.URL())
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeMigrationFailed, "opening migration source")
	}
	defer mig.Close()

	if err := mig.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return appErrors.Wrap(err, appErrors.CodeMigrationFailed, "applying migrations")
	}

	version, dirty, err := mig.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return appErrors.Wrap(err, appErrors.CodeMigrationFailed, "reading schema version")
	}
	if dirty {
		return appErrors.Newf(appErrors.CodeMigrationFailed, "schema version %d is dirty", version)
	}

	m.log.Info("schema up to date", logging.Int64("version", int64(version)))
	return nil
}

// Down rolls back a single migration step.
func (m *Migrator) Down() error {
	mig, err := migrate.New("file://"+m.cfg.MigrationsPath, m.cfg.URL())
	if err != nil {
		return appErrors.Wrap(err, appErrors.CodeMigrationFailed, "opening migration source")
	}
	defer mig.Close()

	if err := mig.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return appErrors.Wrap(err, appErrors.CodeMigrationFailed, "rolling back migration")
	}
	return nil
}
