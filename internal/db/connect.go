package db

import (
	"fmt"           // DSN formatting
	"path/filepath" // SQLite file path

	"github.com/pkg/errors"   // Error wrapping
	"gorm.io/driver/mysql"    // MySQL driver for GORM
	"gorm.io/driver/postgres" // PostgreSQL driver for GORM
	"gorm.io/driver/sqlite"   // SQLite driver for GORM
	"gorm.io/gorm"            // GORM ORM library
	"gorm.io/gorm/logger"     // GORM logger levels

	"staff_store/internal/config" // Application configuration
)

// Supported database drivers
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DSN builds the connection string for the configured driver
func DSN(cfg config.DBConfig) (string, error) {
	if cfg.DSN != "" {
		return cfg.DSN, nil // Explicit DSN wins
	}
	switch cfg.Driver {
	case DriverMySQL:
		port := cfg.Port
		if port == "" {
			port = "3306"
		}
		// clientFoundRows makes RowsAffected count matched rows, as the other drivers do
		return cfg.User + ":" + cfg.Password + "@tcp(" + cfg.Host + ":" + port + ")/" + cfg.Name + "?charset=utf8mb4&parseTime=true&clientFoundRows=true", nil
	case DriverPostgres:
		port := cfg.Port
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
			cfg.Host, cfg.User, cfg.Password, cfg.Name, port), nil
	case DriverSQLite:
		return filepath.Clean(cfg.Name + ".db"), nil
	default:
		return "", errors.Errorf("unsupported database driver '%s'", cfg.Driver)
	}
}

// Connect opens the configured database
func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	}
	logMode := logger.Silent // Keep GORM quiet unless debugging
	if cfg.Debug {
		logMode = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logMode),
		TranslateError: true, // Surface unique violations as gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s database", cfg.Driver)
	}
	if cfg.Driver == DriverSQLite {
		// SQLite allows one writer; a single connection keeps transactions from failing with SQLITE_BUSY
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}
