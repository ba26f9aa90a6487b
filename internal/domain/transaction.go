package domain

// Currency transaction types
const (
	CurrencyAdminSet   = "admin_set"   // Balance overwritten by an admin
	CurrencyAdminGrant = "admin_grant" // Amount added to every active user
	CurrencyPurchase   = "purchase"    // Debit for a committed order
)

// CurrencyTransaction Model, an append-only record of balance changes
type CurrencyTransaction struct {
	ID        uint   `gorm:"primaryKey" json:"id"`                  // Primary key
	UserID    uint   `gorm:"index;not null" json:"user_id"`         // Account whose balance changed
	Amount    int64  `gorm:"not null" json:"amount"`                // Signed change in minor units
	Type      string `gorm:"size:32;not null" json:"type"`          // Transaction type
	Note      string `gorm:"size:255" json:"note,omitempty"`        // Free text note
	Actor     string `gorm:"size:191;not null" json:"actor"`        // Username that caused the change
	CreatedAt int64  `gorm:"autoCreateTime:milli" json:"created_at"` // Timestamp of creation in milliseconds
}
