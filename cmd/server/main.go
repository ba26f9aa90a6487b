package main

import (
	"context"   // Context for startup and shutdown
	"errors"    // Server close detection
	"net/http"  // HTTP server
	"os"        // Signals
	"os/signal" // Signal notification
	"syscall"   // SIGTERM
	"time"      // Timeouts

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging

	"staff_store/internal/admin"     // Admin operations
	"staff_store/internal/api"       // HTTP handlers and router
	"staff_store/internal/checkout"  // Checkout manager
	"staff_store/internal/config"    // Configuration
	"staff_store/internal/db"        // Database setup
	"staff_store/internal/directory" // Directory client
	"staff_store/internal/identity"  // Identity resolution
	"staff_store/internal/ledger"    // Balance and inventory ledger
	"staff_store/internal/session"   // Session tokens
	"staff_store/internal/utils"     // Rate limiter
)

// setupLogging configures logrus from the environment
func setupLogging(cfg *config.Config) {
	if cfg.IsProd {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logrus.WithField("level", cfg.LogLevel).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}

// connectRedis returns nil when Redis is not configured
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		logrus.Warn("REDIS_ADDR not set, running without catalog cache, login throttling or shared revocation")
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr, // Redis server address
		Password: cfg.Pass, // Redis password
		DB:       cfg.DB,   // Redis database number
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

// Main function to set up and run the server
func main() {
	cfg, err := config.LoadConfig() // Load configuration
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	setupLogging(cfg)
	ctx := context.Background()

	gdb, err := db.Connect(cfg.DB) // Connect to the database
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		logrus.Fatalf("failed to migrate DB: %v", err)
	}
	if _, err := db.SeedFallbackAdmin(ctx, gdb, cfg.FallbackAdmin.Username, cfg.FallbackAdmin.Password, cfg.FallbackAdmin.Balance); err != nil {
		logrus.Fatalf("failed to seed fallback admin: %v", err)
	}
	if err := db.SeedDirectoryConfig(ctx, gdb, cfg.LDAP.DirectoryRecord()); err != nil {
		logrus.Fatalf("failed to seed directory config: %v", err)
	}

	rdb, err := connectRedis(ctx, cfg.Redis)
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}
	var revocations session.RevocationStore // In-memory unless Redis is available
	if rdb != nil {
		revocations = session.NewRedisRevocationStore(rdb)
	}

	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode) // Set Mode to Release if in production
	}

	dir := directory.NewConfigured(db.NewDirectoryConfigStore(gdb), nil)
	router, err := api.NewRouter(api.Deps{
		DB:             gdb,
		Redis:          rdb,
		Resolver:       identity.NewResolver(gdb, dir, cfg.FallbackAdmin.Username),
		Sessions:       session.NewIssuer(cfg.JWTSecret, cfg.SessionTTL, revocations),
		Limiter:        utils.NewLoginLimiter(rdb, cfg.Login.MaxFailures, cfg.Login.Window),
		Checkout:       checkout.NewManager(gdb, ledger.New(gdb), rdb),
		Admin:          admin.NewService(gdb, dir, rdb),
		TrustedProxies: []string{"127.0.0.1"},
	})
	if err != nil {
		logrus.Fatalf("failed to build router: %v", err)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logrus.WithField("port", cfg.AppPort).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logrus.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("graceful shutdown failed: %v", err)
	}
}
