package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"staff_store/internal/admin"
	"staff_store/internal/middleware"
)

// Sessions issues, verifies and revokes session tokens
type Sessions interface {
	TokenIssuer
	middleware.TokenParser
}

// Deps are the collaborators the router wires into handlers
type Deps struct {
	DB             *gorm.DB
	Redis          *redis.Client // Optional
	Resolver       Authenticator
	Sessions       Sessions
	Limiter        Limiter
	Checkout       CheckoutRunner
	Admin          *admin.Service
	TrustedProxies []string
}

// NewRouter builds the gin engine with every route registered
func NewRouter(d Deps) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())
	if err := r.SetTrustedProxies(d.TrustedProxies); err != nil {
		return nil, err
	}

	// Operations
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/healthz/ready", ReadinessHandler(d.DB, d.Redis))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public routes
	r.POST("/auth/login", LoginHandler(d.Resolver, d.Sessions, d.Limiter))
	r.GET("/items", ListItemsHandler(d.DB, d.Redis))

	// Authenticated routes
	authed := r.Group("/")
	authed.Use(middleware.JWTAuthMiddleware(d.Sessions))
	authed.POST("/auth/logout", LogoutHandler(d.Sessions))
	authed.GET("/me", MeHandler(d.DB))
	authed.POST("/checkout", CheckoutHandler(d.Checkout))
	authed.GET("/orders", ListOrdersHandler(d.DB))

	// Admin routes, each operation re-checks admin status again in the service
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(d.Sessions), middleware.AdminOnlyMiddleware(d.DB))
	adminGroup.GET("/users", ListUsersHandler(d.Admin))
	adminGroup.POST("/users", CreateUserHandler(d.Admin))
	adminGroup.POST("/users/grant", GrantAllHandler(d.Admin))
	adminGroup.PUT("/users/:username/admin", SetAdminHandler(d.Admin))
	adminGroup.PUT("/users/:username/balance", SetBalanceHandler(d.Admin))
	adminGroup.PUT("/users/:username/password", SetPasswordHandler(d.Admin))
	adminGroup.DELETE("/users/:username", DeleteUserHandler(d.Admin))
	adminGroup.GET("/items", AdminListItemsHandler(d.Admin))
	adminGroup.POST("/items", CreateItemHandler(d.Admin))
	adminGroup.PUT("/items/:id", UpdateItemHandler(d.Admin))
	adminGroup.PUT("/items/:id/quantity", SetItemQuantityHandler(d.Admin))
	adminGroup.DELETE("/items/:id", DeleteItemHandler(d.Admin))
	adminGroup.GET("/orders", AdminListOrdersHandler(d.Admin))
	adminGroup.GET("/directory", GetDirectoryHandler(d.Admin))
	adminGroup.PUT("/directory", UpdateDirectoryHandler(d.Admin))
	adminGroup.POST("/directory/test", CheckDirectoryHandler(d.Admin))
	adminGroup.POST("/reconcile", ReconcileHandler(d.Admin))

	return r, nil
}

// ReadinessHandler reports whether the database and, when configured, Redis answer
func ReadinessHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		checks := gin.H{"database": "ok"}
		healthy := true
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			checks["database"] = "unavailable"
			healthy = false
		}
		if rdb != nil {
			checks["redis"] = "ok"
			if err := rdb.Ping(ctx).Err(); err != nil {
				checks["redis"] = "unavailable"
				healthy = false
			}
		}
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"checks": checks})
	}
}
