package api

import (
	"context"  // Context for downstream calls
	"net/http" // HTTP status codes
	"time"     // Token expiry

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/pkg/errors"      // Error matching
	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library

	"staff_store/internal/domain"     // Importing domain models
	"staff_store/internal/identity"   // Identity resolution
	"staff_store/internal/middleware" // Context keys
	"staff_store/internal/username"   // Username normalization
)

// Authenticator resolves a login form to a principal
type Authenticator interface {
	Resolve(ctx context.Context, rawUsername, password string) (*identity.Principal, error)
}

// TokenIssuer creates and revokes session tokens
type TokenIssuer interface {
	Issue(p identity.Principal) (string, time.Time, error)
	Revoke(ctx context.Context, token string) error
}

// Limiter throttles failed logins per username
type Limiter interface {
	Blocked(ctx context.Context, key string) bool
	RecordFailure(ctx context.Context, key string)
	Reset(ctx context.Context, key string)
}

// LoginRequest is the login form
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username in any accepted spelling
	Password string `json:"password" binding:"required"` // Password must be provided
}

// LoginResponse carries the session token
type LoginResponse struct {
	Token     string              `json:"token"`      // Signed session token
	ExpiresAt time.Time           `json:"expires_at"` // Token expiry
	User      *identity.Principal `json:"user"`       // Authenticated user
}

// LoginHandler authenticates a user and returns a session token
func LoginHandler(auth Authenticator, tokens TokenIssuer, limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		ctx := c.Request.Context()
		key := username.Normalize(req.Username) // Throttle per identity, not per spelling
		if limiter.Blocked(ctx, key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Error: "too many failed attempts, try again later",
				Code:  "RATE_LIMITED",
			})
			return
		}
		principal, err := auth.Resolve(ctx, req.Username, req.Password)
		if err != nil {
			if errors.Is(err, identity.ErrAuthenticationRejected) {
				limiter.RecordFailure(ctx, key) // Only verdicts on the credentials count
			}
			respondError(c, err)
			return
		}
		limiter.Reset(ctx, key)
		token, expiresAt, err := tokens.Issue(*principal)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt, User: principal})
	}
}

// LogoutHandler revokes the caller's token
func LogoutHandler(tokens TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := tokens.Revoke(c.Request.Context(), c.GetString(middleware.ContextToken)); err != nil {
			respondError(c, err)
			return
		}
		logrus.WithField("username", c.GetString(middleware.ContextUsername)).Info("Logged out")
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
	}
}

// MeHandler returns the caller's current row
func MeHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user domain.User // Fetch user from database
		err := db.WithContext(c.Request.Context()).
			Where("username = ?", c.GetString(middleware.ContextUsername)).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.IsActive) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "account no longer available"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
