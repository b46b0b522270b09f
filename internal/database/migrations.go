package database

import (
	"database/sql"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/taxvalor/api/internal/config"
	"github.com/taxvalor/api/internal/logger"
)

// RunMigrations executes pending schema migrations from the given directory.
// It is idempotent: only pending migrations run, a fully migrated database is
// a no-op. Uses its own short-lived database/sql connection because the
// migration driver does not speak the pgx pool interface.
func RunMigrations(cfg config.DatabaseConfig, migrationsPath string, log *logger.Logger) error {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres", driver)
	if err != nil {
		db.Close()
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil {
			log.Warn("Failed to close migration source", map[string]interface{}{"error": srcErr.Error()})
		}
		if dbErr != nil {
			log.Warn("Failed to close migration database", map[string]interface{}{"error": dbErr.Error()})
		}
	}()

	err = m.Up()
	if err == migrate.ErrNoChange {
		log.Info("No migrations to apply (database up-to-date)", nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.Version()
	log.Info("Applied migrations successfully", map[string]interface{}{
		"version": version,
		"path":    migrationsPath,
	})
	return nil
}
