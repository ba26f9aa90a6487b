package api

import (
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"github.com/gin-gonic/gin" // Gin web framework

	"staff_store/internal/admin"      // Admin operations
	"staff_store/internal/domain"     // Importing domain models
	"staff_store/internal/middleware" // Context keys
)

// SetAdminRequest grants or revokes the admin flag
type SetAdminRequest struct {
	IsAdmin *bool `json:"is_admin" binding:"required"` // Pointer so false is distinguishable from missing
}

// SetBalanceRequest overwrites a balance
type SetBalanceRequest struct {
	Balance *int64 `json:"balance" binding:"required"` // New balance in minor units
	Note    string `json:"note"`                       // Reason recorded with the change
}

// SetPasswordRequest replaces a local password
type SetPasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// GrantRequest adds currency to every active user
type GrantRequest struct {
	Amount int64  `json:"amount" binding:"required"` // Amount in minor units
	Note   string `json:"note"`                      // Reason recorded with the change
}

// SetQuantityRequest overwrites the stock of an item
type SetQuantityRequest struct {
	Quantity *int64 `json:"quantity" binding:"required"`
}

// DirectoryRequest replaces the directory record. An empty service password keeps the stored one.
type DirectoryRequest struct {
	domain.DirectoryConfig
	ServiceBindPassword string `json:"service_bind_password"`
}

// caller returns the username the JWT middleware stored
func caller(c *gin.Context) string {
	return c.GetString(middleware.ContextUsername)
}

// itemID parses the :id path parameter
func itemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid item id")
		return 0, false
	}
	return uint(id), true
}

// ListUsersHandler returns every user
func ListUsersHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := svc.ListUsers(c.Request.Context(), caller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

// CreateUserHandler creates a local user
func CreateUserHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req admin.NewUser // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		user, err := svc.CreateUser(c.Request.Context(), caller(c), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"user": user})
	}
}

// SetAdminHandler grants or revokes the admin flag
func SetAdminHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetAdminRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		user, err := svc.SetAdmin(c.Request.Context(), caller(c), c.Param("username"), *req.IsAdmin)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// SetBalanceHandler overwrites a user's balance
func SetBalanceHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetBalanceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		user, err := svc.SetBalance(c.Request.Context(), caller(c), c.Param("username"), *req.Balance, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}

// SetPasswordHandler replaces a local user's password
func SetPasswordHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SetPasswordRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		if err := svc.SetPassword(c.Request.Context(), caller(c), c.Param("username"), req.Password); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
	}
}

// DeleteUserHandler deletes or deactivates a user
func DeleteUserHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		deactivated, err := svc.DeleteUser(c.Request.Context(), caller(c), c.Param("username"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deactivated": deactivated})
	}
}

// GrantAllHandler adds currency to every active user
func GrantAllHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GrantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		updated, err := svc.GrantAll(c.Request.Context(), caller(c), req.Amount, req.Note)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"updated": updated})
	}
}

// AdminListItemsHandler returns every item including unlisted ones
func AdminListItemsHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := svc.ListItems(c.Request.Context(), caller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// CreateItemHandler adds an item
func CreateItemHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req admin.ItemInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		item, err := svc.CreateItem(c.Request.Context(), caller(c), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"item": item})
	}
}

// UpdateItemHandler replaces an item's editable fields
func UpdateItemHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok {
			return
		}
		var req admin.ItemInput
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		item, err := svc.UpdateItem(c.Request.Context(), caller(c), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item})
	}
}

// SetItemQuantityHandler overwrites an item's stock
func SetItemQuantityHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok {
			return
		}
		var req SetQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		item, err := svc.SetItemQuantity(c.Request.Context(), caller(c), id, *req.Quantity)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"item": item})
	}
}

// DeleteItemHandler removes an item
func DeleteItemHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok {
			return
		}
		if err := svc.DeleteItem(c.Request.Context(), caller(c), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Item deleted"})
	}
}

// AdminListOrdersHandler returns every order
func AdminListOrdersHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orders, err := svc.ListOrders(c.Request.Context(), caller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	}
}

// GetDirectoryHandler returns the directory record without its service password
func GetDirectoryHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		cfg, err := svc.DirectoryConfig(c.Request.Context(), caller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"directory":                cfg,
			"service_password_present": cfg.ServiceBindPassword != "",
		})
	}
}

// UpdateDirectoryHandler replaces the directory record
func UpdateDirectoryHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DirectoryRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		cfg := req.DirectoryConfig
		cfg.ServiceBindPassword = req.ServiceBindPassword
		saved, err := svc.UpdateDirectoryConfig(c.Request.Context(), caller(c), cfg)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"directory": saved})
	}
}

// CheckDirectoryHandler checks that the directory answers
func CheckDirectoryHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.TestDirectory(c.Request.Context(), caller(c)); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Directory reachable"})
	}
}

// ReconcileHandler merges usernames that collide after normalization
func ReconcileHandler(svc *admin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		reports, err := svc.Reconcile(c.Request.Context(), caller(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"merged": reports})
	}
}
