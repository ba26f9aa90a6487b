package domain

import "time"

// Audit actions
const (
	AuditLoginSuccess       = "login_success"
	AuditLoginFailed        = "login_failed"
	AuditLoginError         = "login_error"
	AuditUserProvisioned    = "user_provisioned"
	AuditDuplicateKey       = "duplicate_identity"
	AuditUsernameNormalized = "username_normalized"
)

// AuditEvent records the outcome of an identity resolution
type AuditEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"index;size:191;not null" json:"username"`
	Action    string    `gorm:"size:32;not null" json:"action"`
	Detail    string    `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
