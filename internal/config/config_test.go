package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("FALLBACK_ADMIN_PASSWORD", "emergency")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.AppPort != "8080" || cfg.SessionTTL != 24*time.Hour || cfg.DB.Driver != "mysql" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.FallbackAdmin.Username != "fallback_admin" || cfg.FallbackAdmin.Balance != 1000 {
		t.Fatalf("unexpected fallback admin defaults: %+v", cfg.FallbackAdmin)
	}
	if cfg.Login.MaxFailures != 3 || cfg.Login.Window != 5*time.Minute {
		t.Fatalf("unexpected login defaults: %+v", cfg.Login)
	}
	if cfg.LDAP.BindPattern != "{username}@{domain}" {
		t.Fatalf("unexpected bind pattern: %q", cfg.LDAP.BindPattern)
	}
}

func TestLoadConfig_RequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	os.Unsetenv("JWT_SECRET") // Restored by t.Setenv when the test ends
	t.Setenv("FALLBACK_ADMIN_PASSWORD", "emergency")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected an error without JWT_SECRET")
	}
}

func TestLoad_Section(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	var cfg struct{ DB DBConfig }
	if err := Load(&cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Name != "staff_store" {
		t.Fatalf("unexpected section: %+v", cfg.DB)
	}
}
