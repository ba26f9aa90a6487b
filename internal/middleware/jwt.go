package middleware

import (
	"context"  // Context for revocation lookups
	"net/http" // HTTP status codes
	"strings"  // String manipulation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/pkg/errors"      // Error matching
	"github.com/sirupsen/logrus" // Logging

	"staff_store/internal/session" // Session tokens
)

// Context keys set by JWTAuthMiddleware
const (
	ContextUserID   = "userID"   // uint id of the caller's row
	ContextUsername = "username" // Normalized username of the caller
	ContextToken    = "token"    // Raw bearer token, used by logout
)

// TokenParser verifies session tokens
type TokenParser interface {
	Parse(ctx context.Context, token string) (*session.Claims, error)
}

// JWTAuthMiddleware validates the bearer token and stores the caller identity in the context
func JWTAuthMiddleware(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization") // Get Authorization header
		parts := strings.SplitN(authHeader, " ", 2)
		// Check if the Authorization header is present and properly formatted
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		claims, err := tokens.Parse(c.Request.Context(), parts[1]) // Verify signature, expiry and revocation
		switch {
		case err == nil:
		case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrRevoked):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		default:
			logrus.WithError(err).Error("Session verification failed")
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Session store unavailable, please retry"})
			return
		}
		c.Set(ContextUserID, claims.UserID)     // Store userID in context
		c.Set(ContextUsername, claims.Username) // Store username in context
		c.Set(ContextToken, parts[1])           // Store token for logout
		c.Next()                                // Proceed to the next handler
	}
}
