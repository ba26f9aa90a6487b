// Package dbtest opens throwaway SQLite databases for package tests.
package dbtest

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"staff_store/internal/config"
	"staff_store/internal/db"
	"staff_store/internal/domain"
)

// Open returns a migrated in-memory database that lives until the test ends
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := db.Connect(config.DBConfig{Driver: db.DriverSQLite, DSN: ":memory:"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// User inserts a local, active user; opts adjust the row before it is written
func User(t testing.TB, gdb *gorm.DB, username string, balance int64, opts ...func(*domain.User)) *domain.User {
	t.Helper()
	u := &domain.User{
		Username:    username,
		DisplayName: username,
		UserType:    domain.UserTypeLocal,
		Balance:     balance,
		IsActive:    true,
	}
	for _, opt := range opts {
		opt(u)
	}
	active := u.IsActive // Create writes the column default back into the struct
	if err := gdb.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	if !active {
		if err := gdb.Model(u).Update("is_active", false).Error; err != nil {
			t.Fatalf("deactivate user %s: %v", username, err)
		}
		u.IsActive = false
	}
	return u
}

// WithPassword stores a bcrypt hash of password
func WithPassword(password string) func(*domain.User) {
	return func(u *domain.User) {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		if err != nil {
			panic(err)
		}
		u.PasswordHash = string(hash)
	}
}

// Directory marks the user as directory-backed
func Directory(u *domain.User) {
	u.UserType = domain.UserTypeDirectory
}

// Admin grants the admin flag
func Admin(u *domain.User) {
	u.IsAdmin = true
}

// Inactive stores the user deactivated
func Inactive(u *domain.User) {
	u.IsActive = false
}

// Item inserts a listed item
func Item(t testing.TB, gdb *gorm.DB, name string, price, quantity int64) *domain.Item {
	t.Helper()
	item := &domain.Item{Name: name, Price: price, Quantity: quantity}
	if err := gdb.Create(item).Error; err != nil {
		t.Fatalf("create item %s: %v", name, err)
	}
	return item
}

// Reload re-reads a user row
func Reload(t testing.TB, gdb *gorm.DB, id uint) domain.User {
	t.Helper()
	var u domain.User
	if err := gdb.First(&u, id).Error; err != nil {
		t.Fatalf("reload user %d: %v", id, err)
	}
	return u
}

// ReloadItem re-reads an item row
func ReloadItem(t testing.TB, gdb *gorm.DB, id uint) domain.Item {
	t.Helper()
	var item domain.Item
	if err := gdb.First(&item, id).Error; err != nil {
		t.Fatalf("reload item %d: %v", id, err)
	}
	return item
}
