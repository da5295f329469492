// Package database manages the GORM connection and schema migrations.
// SQLite is the default store; Postgres is supported for deployments
// that outgrow a single file.
package database

import (
	"fmt"
	"time"

	"bonuspark/internal/config"
	"bonuspark/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Manager handles database operations
type Manager struct {
	db         *gorm.DB
	migrateURL string
	migrateSrc string
}

// NewManager opens the configured database and prepares the migration URL.
// Each driver gets its own DDL dialect under migrations/.
func NewManager(cfg *config.Config) (*Manager, error) {
	var (
		db         *gorm.DB
		err        error
		migrateURL string
		migrateSrc string
	)

	switch cfg.DBDriver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode)
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  dsn,
			PreferSimpleProtocol: true, // harmless for direct connections, required behind some poolers
		}), &gorm.Config{})
		migrateURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
			cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBSSLMode)
		migrateSrc = "file://migrations/postgres"
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
		migrateURL = "sqlite3://" + cfg.DBPath
		migrateSrc = "file://migrations/sqlite"
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return &Manager{db: db, migrateURL: migrateURL, migrateSrc: migrateSrc}, nil
}

// RunMigrations applies pending SQL migrations from the migrations/ directory.
func (m *Manager) RunMigrations() error {
	logger.Get().Info("Running database migrations...")

	mig, err := migrate.New(m.migrateSrc, m.migrateURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() {
		srcErr, dbErr := mig.Close()
		if srcErr != nil {
			logger.Get().Warnf("migrate source close error: %v", srcErr)
		}
		if dbErr != nil {
			logger.Get().Warnf("migrate database close error: %v", dbErr)
		}
	}()

	if err := mig.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Get().Info("Database migrations completed successfully")
	return nil
}

// MigrateURL returns the migration connection URL for the configured store.
func (m *Manager) MigrateURL() string {
	return m.migrateURL
}

// MigrateSource returns the file URL of the DDL directory matching the
// configured driver's dialect.
func (m *Manager) MigrateSource() string {
	return m.migrateSrc
}

// DB returns the underlying GORM database instance
func (m *Manager) DB() *gorm.DB {
	return m.db
}
