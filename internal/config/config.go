package config

import (
	"context" // Context for envconfig processing
	"time"    // Durations for sessions and rate limiting

	"github.com/joho/godotenv"          // For loading .env files
	"github.com/pkg/errors"             // Error wrapping
	"github.com/sethvargo/go-envconfig" // Environment to struct mapping
	"staff_store/internal/domain"       // Directory record type
)

// Config holds the application configuration
type Config struct {
	AppPort    string        `env:"APP_PORT, default=8080"`   // Application port
	IsProd     bool          `env:"IS_PROD, default=false"`   // Is production environment
	LogLevel   string        `env:"LOG_LEVEL, default=info"`  // Minimum log level
	JWTSecret  string        `env:"JWT_SECRET, required"`     // JWT secret key
	SessionTTL time.Duration `env:"SESSION_TTL, default=24h"` // Session token lifetime

	DB            DBConfig            // Database settings
	Redis         RedisConfig         // Redis settings
	FallbackAdmin FallbackAdminConfig // Emergency admin account
	Login         LoginConfig         // Login rate limiting
	LDAP          LDAPConfig          // Initial directory record
}

// DBConfig describes the database connection
type DBConfig struct {
	Driver   string `env:"DB_DRIVER, default=mysql"`     // mysql, postgres or sqlite
	User     string `env:"DB_USER"`                      // Database user
	Password string `env:"DB_PASSWORD"`                  // Database password
	Host     string `env:"DB_HOST, default=127.0.0.1"`   // Database host
	Port     string `env:"DB_PORT"`                      // Database port
	Name     string `env:"DB_NAME, default=staff_store"` // Database name
	DSN      string `env:"DB_DSN"`                       // Full DSN, or file path for sqlite
	Debug    bool   `env:"DB_DEBUG, default=false"`      // Log every SQL statement
}

// RedisConfig describes the Redis connection
type RedisConfig struct {
	Addr string `env:"REDIS_ADDR"`          // Redis server address, empty disables Redis
	Pass string `env:"REDIS_PASS"`          // Redis password
	DB   int    `env:"REDIS_DB, default=0"` // Redis database number
}

// FallbackAdminConfig describes the seeded emergency admin
type FallbackAdminConfig struct {
	Username string `env:"FALLBACK_ADMIN_USERNAME, default=fallback_admin"` // Reserved login key
	Password string `env:"FALLBACK_ADMIN_PASSWORD, required"`               // Initial password
	Balance  int64  `env:"FALLBACK_ADMIN_BALANCE, default=1000"`            // Initial balance
}

// LoginConfig controls failed login throttling
type LoginConfig struct {
	MaxFailures int           `env:"LOGIN_MAX_FAILURES, default=3"`    // Failures allowed per window
	Window      time.Duration `env:"LOGIN_FAILURE_WINDOW, default=5m"` // Window length
}

// LDAPConfig seeds the directory record when none is stored yet
type LDAPConfig struct {
	Enabled             bool   `env:"LDAP_ENABLED, default=false"`
	Mode                string `env:"LDAP_MODE, default=simple_bind"`
	Host                string `env:"LDAP_HOST"`
	Port                int    `env:"LDAP_PORT, default=0"`
	UseTLS              bool   `env:"LDAP_USE_TLS, default=true"`
	StartTLS            bool   `env:"LDAP_START_TLS, default=false"`
	InsecureSkipVerify  bool   `env:"LDAP_INSECURE_SKIP_VERIFY, default=false"`
	TimeoutSeconds      int    `env:"LDAP_TIMEOUT_SECONDS, default=5"`
	Domain              string `env:"LDAP_DOMAIN"`
	BindPattern         string `env:"LDAP_BIND_PATTERN, default={username}@{domain}"`
	UserBaseDN          string `env:"LDAP_USER_BASE_DN"`
	ServiceBindDN       string `env:"LDAP_SERVICE_BIND_DN"`
	ServiceBindPassword string `env:"LDAP_SERVICE_BIND_PASSWORD"`
	SearchBaseDN        string `env:"LDAP_SEARCH_BASE_DN"`
	UserFilter          string `env:"LDAP_USER_FILTER, default=(objectClass=user)"`
	UsernameAttribute   string `env:"LDAP_USERNAME_ATTRIBUTE, default=sAMAccountName"`
}

// LoadConfig loads configuration from the environment and an optional .env file
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := Load(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load fills any struct built from this package's sections, so tools can ask for
// only the settings they need
func Load(target any) error {
	_ = godotenv.Load() // Load .env file if present
	if err := envconfig.Process(context.Background(), target); err != nil {
		return errors.Wrap(err, "config: failed to load configuration")
	}
	return nil
}

// DirectoryRecord converts the LDAP settings into the persisted directory record
func (c LDAPConfig) DirectoryRecord() domain.DirectoryConfig {
	return domain.DirectoryConfig{
		Enabled:              c.Enabled,
		Mode:                 c.Mode,
		Host:                 c.Host,
		Port:                 c.Port,
		UseTLS:               c.UseTLS,
		StartTLS:             c.StartTLS,
		InsecureSkipVerify:   c.InsecureSkipVerify,
		TimeoutSeconds:       c.TimeoutSeconds,
		Domain:               c.Domain,
		BindPattern:          c.BindPattern,
		UserBaseDN:           c.UserBaseDN,
		ServiceBindDN:        c.ServiceBindDN,
		ServiceBindPassword:  c.ServiceBindPassword,
		SearchBaseDN:         c.SearchBaseDN,
		UserFilter:           c.UserFilter,
		UsernameAttribute:    c.UsernameAttribute,
		DisplayNameAttribute: "displayName",
		EmailAttribute:       "mail",
	}
}
