package db

import (
	"staff_store/internal/domain" // Importing domain models

	"github.com/pkg/errors"      // Error wrapping
	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library
)

// Models lists every persisted model
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Item{},
		&domain.Order{},
		&domain.OrderLine{},
		&domain.Reservation{},
		&domain.CurrencyTransaction{},
		&domain.AuditEvent{},
		&domain.DirectoryConfig{},
	}
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(Models()...); err != nil {
		return errors.Wrap(err, "migration failed")
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}
