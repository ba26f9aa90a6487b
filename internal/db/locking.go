package db

import (
	"gorm.io/gorm"        // GORM ORM library
	"gorm.io/gorm/clause" // Locking clause
)

// ForUpdate adds SELECT ... FOR UPDATE where the dialect has row locks.
// SQLite has none and serializes writers instead.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == DriverSQLite {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}
