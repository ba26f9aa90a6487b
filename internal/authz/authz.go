// Package authz holds the single admin check used by every privileged operation.
package authz

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"staff_store/internal/domain"
	"staff_store/internal/username"
)

// ErrForbidden means the caller is not an active admin.
var ErrForbidden = errors.New("authz: admin privileges required")

// RequireAdmin re-reads the caller's row and returns it if the caller is an active admin.
// Session claims are never trusted for this; a demotion takes effect on the next request.
func RequireAdmin(ctx context.Context, db *gorm.DB, caller string) (*domain.User, error) {
	key := username.Normalize(caller)
	if key == "" {
		return nil, ErrForbidden
	}
	var user domain.User
	err := db.WithContext(ctx).Where("username = ?", key).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrForbidden
	}
	if err != nil {
		return nil, errors.Wrap(err, "load caller")
	}
	if !user.IsActive || !user.IsAdmin {
		return nil, ErrForbidden
	}
	return &user, nil
}
