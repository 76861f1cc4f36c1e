package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver used by golang-migrate
	"go.uber.org/zap"

	"github.com/hodlisma/hodlisma-engine/migrations"
)

// Migrate opens a short-lived database/sql handle on url, applies pending
// migrations and returns the resulting schema version.
func Migrate(url string, logger *zap.Logger) (uint, error) {
	sqlDB, err := sql.Open("pgx", url)
	if err != nil {
		return 0, fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer sqlDB.Close()

	return migrateUp(sqlDB, logger)
}

// RunMigrations applies the embedded migrations that have not run yet.
// Calling it on an up-to-date schema is a no-op.
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	_, err := migrateUp(db, logger)
	return err
}

func migrateUp(db *sql.DB, logger *zap.Logger) (uint, error) {
	m, err := newMigrator(db)
	if err != nil {
		return 0, err
	}
	defer func() {
		srcErr, dbErr := m.Close()
		if srcErr != nil || dbErr != nil {
			logger.Warn("Failed to close migrator", zap.NamedError("source", srcErr), zap.NamedError("database", dbErr))
		}
	}()

	upErr := m.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", upErr)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}

	if errors.Is(upErr, migrate.ErrNoChange) {
		logger.Info("Schema up to date", zap.Uint("version", version))
	} else {
		logger.Info("Applied migrations", zap.Uint("version", version))
	}
	return version, nil
}

func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}
