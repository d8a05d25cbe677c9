package db

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationURL rewrites a postgres DSN to the scheme of the pgx/v5 migrate driver
func migrationURL(dsn string) string {
	for _, prefix := range []string{"postgresql://", "postgres://"} {
		if strings.HasPrefix(dsn, prefix) {
			return "pgx5://" + strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

// NewMigrator opens a migrator over the embedded migrations. The caller closes it.
func NewMigrator(dsn string) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations: failed to open embedded source: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrationURL(dsn))
	if err != nil {
		return nil, fmt.Errorf("migrations: failed to initialise: %w", err)
	}
	return m, nil
}

// MigrateUp applies every pending migration
func MigrateUp(dsn string, log *logger.Logger) error {
	m, err := NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warnw("Failed to close migrator", "sourceError", sourceErr, "dbError", dbErr)
		}
	}()

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("Database schema is up to date")
			return nil
		}
		return fmt.Errorf("migrations: up failed: %w", err)
	}

	version, _, _ := m.Version()
	log.Infow("Migrations applied", "version", version)
	return nil
}
