package dbtest

import (
	"os"
	"testing"

	"gorm.io/gorm"

	"staff_store/internal/config"
	"staff_store/internal/db"
	"staff_store/internal/domain"
)

// serverDSNVars names the environment variable holding the DSN for each server driver
var serverDSNVars = map[string]string{
	db.DriverMySQL:    "MYSQL_DSN",
	db.DriverPostgres: "POSTGRES_DSN",
}

// OpenServer connects to a real MySQL or PostgreSQL database for integration tests.
// The test is skipped unless RUN_INTEGRATION_TESTS=true and the driver's DSN variable is set.
// Every table is emptied before and after the test.
func OpenServer(t testing.TB, driver string) *gorm.DB {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run")
	}
	dsnVar := serverDSNVars[driver]
	dsn := os.Getenv(dsnVar)
	if dsn == "" {
		t.Skipf("Skipping %s test. Set %s environment variable", driver, dsnVar)
	}
	gdb, err := db.Connect(config.DBConfig{Driver: driver, DSN: dsn})
	if err != nil {
		t.Fatalf("connect to %s: %v", driver, err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate %s: %v", driver, err)
	}
	wipe(t, gdb)
	t.Cleanup(func() {
		wipe(t, gdb)
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gdb
}

// wipe deletes every row, children before parents
func wipe(t testing.TB, gdb *gorm.DB) {
	t.Helper()
	all := gdb.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, model := range []any{
		&domain.OrderLine{},
		&domain.Order{},
		&domain.Reservation{},
		&domain.CurrencyTransaction{},
		&domain.AuditEvent{},
		&domain.Item{},
		&domain.User{},
		&domain.DirectoryConfig{},
	} {
		if err := all.Unscoped().Delete(model).Error; err != nil {
			t.Fatalf("wipe %T: %v", model, err)
		}
	}
}
