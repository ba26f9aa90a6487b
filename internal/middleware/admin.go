package middleware

import (
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/pkg/errors"      // Error matching
	"github.com/sirupsen/logrus" // Logging
	"gorm.io/gorm"               // GORM ORM library

	"staff_store/internal/authz" // Admin predicate
)

// AdminOnlyMiddleware checks the caller's admin flag in the database on each request
func AdminOnlyMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := c.GetString(ContextUsername) // Get username from context
		// Check if username exists in context
		if caller == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		_, err := authz.RequireAdmin(c.Request.Context(), db, caller) // Re-read the durable admin flag
		if errors.Is(err, authz.ErrForbidden) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}
		if err != nil {
			logrus.WithError(err).WithField("username", caller).Error("Admin check failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.Next() // If admin, proceed to the next handler
	}
}
