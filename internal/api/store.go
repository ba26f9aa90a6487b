package api

import (
	"context"  // Context for downstream calls
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging
	"gorm.io/gorm"                 // GORM ORM library

	"staff_store/internal/checkout"   // Checkout manager
	"staff_store/internal/domain"     // Importing domain models
	"staff_store/internal/middleware" // Context keys
	"staff_store/internal/utils"      // Cache helpers
)

// CheckoutRunner buys a cart for a user
type CheckoutRunner interface {
	Checkout(ctx context.Context, userID uint, cart []checkout.CartItem) (*domain.Order, error)
}

// CheckoutRequest is the cart sent by the client. Prices are never accepted from it.
type CheckoutRequest struct {
	Items []checkout.CartItem `json:"items" binding:"required,dive"` // Cart entries
}

// ListItemsHandler returns the listed catalog, served from Redis when cached
func ListItemsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var items []domain.Item
		found, err := utils.GetCache(ctx, rdb, utils.CatalogCacheKey, &items)
		if err != nil {
			logrus.WithError(err).Warn("Catalog cache read failed") // Fall through to the database
		}
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{"items": items, "cached": true})
			return
		}
		if err := db.WithContext(ctx).Where("unlisted = ?", false).Order("name").Find(&items).Error; err != nil {
			respondError(c, err)
			return
		}
		if err := utils.SetCache(ctx, rdb, utils.CatalogCacheKey, items, utils.CatalogCacheTTL); err != nil {
			logrus.WithError(err).Warn("Catalog cache write failed")
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "cached": false})
	}
}

// CheckoutHandler buys the cart for the caller
func CheckoutHandler(runner CheckoutRunner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		order, err := runner.Checkout(c.Request.Context(), c.GetUint(middleware.ContextUserID), req.Items)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"order": order})
	}
}

// ListOrdersHandler returns the caller's orders, newest first
func ListOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var orders []domain.Order
		err := db.WithContext(c.Request.Context()).Preload("Lines").
			Where("user_id = ?", c.GetUint(middleware.ContextUserID)).
			Order("id desc").Find(&orders).Error
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}
