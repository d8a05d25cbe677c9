package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/Dhoini/workshop-relay/internal/config"
	"github.com/Dhoini/workshop-relay/internal/db"
	"github.com/Dhoini/workshop-relay/pkg/logger"
	"github.com/golang-migrate/migrate/v4"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(".env")
	if err != nil {
		logger.New(logger.INFO).Fatalw("Failed to load configuration", "error", err)
	}
	log := logger.New(logger.ParseLevel(cfg.Log.Level))

	m, err := db.NewMigrator(cfg.Database.DSN)
	if err != nil {
		log.Fatalw("Failed to initialise migrations", "error", err)
	}
	defer func() {
		if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
			log.Warnw("Failed to close migrator", "sourceError", sourceErr, "dbError", dbErr)
		}
	}()

	switch os.Args[1] {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalw("Migration up failed", "error", err)
		}
		log.Infow("Database schema is up to date")

	case "down":
		// откатываем только последнюю миграцию
		if err := m.Steps(-1); err != nil {
			log.Fatalw("Rollback failed", "error", err)
		}
		log.Infow("Last migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatalw("Missing target version")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.Fatalw("Invalid version", "version", os.Args[2], "error", err)
		}
		if err := m.Migrate(uint(version)); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalw("Migration failed", "version", version, "error", err)
		}
		log.Infow("Migrated", "version", version)

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Infow("No migrations applied yet")
		case err != nil:
			log.Fatalw("Failed to read migration version", "error", err)
		default:
			log.Infow("Current migration version", "version", version, "dirty", dirty)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: migrate <command>")
	fmt.Println("Commands:")
	fmt.Println("  up         apply all pending migrations")
	fmt.Println("  down       roll back the last migration")
	fmt.Println("  goto <v>   migrate to version v")
	fmt.Println("  status     print the current version")
}
