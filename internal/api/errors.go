package api

import (
	"net/http" // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/pkg/errors"      // Error matching
	"github.com/sirupsen/logrus" // Logging

	"staff_store/internal/admin"     // Admin errors
	"staff_store/internal/authz"     // Forbidden
	"staff_store/internal/checkout"  // Cart errors
	"staff_store/internal/directory" // Directory errors
	"staff_store/internal/identity"  // Login errors
	"staff_store/internal/ledger"    // Purchase errors
	"staff_store/internal/session"   // Token errors
)

// errorResponse is the error envelope of every API error
type errorResponse struct {
	Error string             `json:"error"`           // Human readable message
	Code  string             `json:"code,omitempty"`  // Stable machine readable code
	Items []ledger.Shortfall `json:"items,omitempty"` // Short items for INSUFFICIENT_INVENTORY
}

// resolveError maps known errors to their status codes. Anything else is logged
// and reported as a generic failure without details.
func resolveError(c *gin.Context, err error) (int, errorResponse) {
	var short *ledger.InsufficientInventoryError
	switch {
	case errors.As(err, &short):
		return http.StatusConflict, errorResponse{Error: "insufficient inventory", Code: "INSUFFICIENT_INVENTORY", Items: short.Items}
	case errors.Is(err, ledger.ErrInsufficientInventory):
		return http.StatusConflict, errorResponse{Error: "insufficient inventory", Code: "INSUFFICIENT_INVENTORY"}
	case errors.Is(err, ledger.ErrItemUnavailable):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "ITEM_UNAVAILABLE"}
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, errorResponse{Error: "insufficient balance", Code: "INSUFFICIENT_BALANCE"}
	case errors.Is(err, ledger.ErrAccountUnavailable):
		return http.StatusForbidden, errorResponse{Error: "account unavailable", Code: "ACCOUNT_UNAVAILABLE"}
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrEmptyReservation):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "INVALID_CART"}

	case errors.Is(err, identity.ErrAuthenticationRejected):
		return http.StatusUnauthorized, errorResponse{Error: "invalid credentials", Code: "AUTHENTICATION_REJECTED"}
	case errors.Is(err, session.ErrInvalidToken), errors.Is(err, session.ErrRevoked):
		return http.StatusUnauthorized, errorResponse{Error: "invalid or expired token", Code: "INVALID_TOKEN"}
	case errors.Is(err, identity.ErrDirectoryUnavailable), directory.IsInfrastructure(err):
		return http.StatusServiceUnavailable, errorResponse{Error: "directory unavailable, please retry", Code: "DIRECTORY_UNAVAILABLE"}
	case errors.Is(err, identity.ErrDuplicateIdentity):
		return http.StatusConflict, errorResponse{Error: "account needs reconciliation, contact an administrator", Code: "DUPLICATE_IDENTITY"}
	case errors.Is(err, directory.ErrDisabled):
		return http.StatusBadRequest, errorResponse{Error: "directory authentication is disabled", Code: "DIRECTORY_DISABLED"}

	case errors.Is(err, authz.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "admin access required", Code: "FORBIDDEN"}
	case errors.Is(err, admin.ErrFallbackProtected):
		return http.StatusForbidden, errorResponse{Error: "the fallback admin cannot be deleted or demoted", Code: "FALLBACK_PROTECTED"}
	case errors.Is(err, admin.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error(), Code: "NOT_FOUND"}
	case errors.Is(err, admin.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "ALREADY_EXISTS"}
	case errors.Is(err, admin.ErrInvalidInput):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "INVALID_INPUT"}
	}

	logrus.WithError(err).WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.FullPath(),
	}).Error("Unhandled error")
	return http.StatusInternalServerError, errorResponse{Error: "internal server error, please retry"}
}

// respondError aborts the request with the mapped error
func respondError(c *gin.Context, err error) {
	status, body := resolveError(c, err)
	c.AbortWithStatusJSON(status, body)
}

// badRequest reports a malformed body or parameter
func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "INVALID_REQUEST"})
}
