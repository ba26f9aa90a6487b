package domain

import "time"

// User types
const (
	UserTypeLocal     = "local"     // Credential is stored and verified locally
	UserTypeDirectory = "directory" // Credential is verified by the directory service
)

// User Model
type User struct {
	ID                uint       `gorm:"primaryKey" json:"id"`                            // Primary key
	Username          string     `gorm:"uniqueIndex;size:191;not null" json:"username"`   // Normalized username
	DisplayName       string     `gorm:"size:255" json:"display_name"`                    // Name shown in the store
	Email             string     `gorm:"size:255" json:"email,omitempty"`                 // Mail address from the directory
	UserType          string     `gorm:"size:16;not null;default:local" json:"user_type"` // local or directory
	PasswordHash      string     `gorm:"size:255" json:"-"`                               // bcrypt hash, local accounts only
	Balance           int64      `gorm:"not null;default:0" json:"balance"`               // Balance in minor units, never negative
	IsAdmin           bool       `gorm:"not null;default:false" json:"is_admin"`          // Managed locally, never synced
	IsFallback        bool       `gorm:"not null;default:false;index" json:"is_fallback"` // The emergency admin account
	IsActive          bool       `gorm:"not null;default:true" json:"is_active"`          // Deactivated users cannot log in or buy
	CreatedAt         time.Time  `json:"created_at"`                                      // Creation time
	UpdatedAt         time.Time  `json:"updated_at"`                                      // Last modification
	LastLogin         *time.Time `json:"last_login,omitempty"`                            // Last successful login
	LastDirectorySync *time.Time `json:"last_directory_sync,omitempty"`                   // Last successful directory bind
}

// IsDirectory reports whether the account authenticates against the directory
func (u *User) IsDirectory() bool {
	return u.UserType == UserTypeDirectory
}
