package domain

import "time"

// Item Model
type Item struct {
	ID          uint      `gorm:"primaryKey" json:"id"`                      // Primary key
	Name        string    `gorm:"uniqueIndex;size:191;not null" json:"name"` // Unique item name
	Description string    `gorm:"type:text" json:"description"`              // Free text description
	Price       int64     `gorm:"not null;default:0" json:"price"`           // Price in minor units
	Quantity    int64     `gorm:"not null;default:0" json:"quantity"`        // Units in stock
	SoldOut     bool      `gorm:"not null;default:false" json:"sold_out"`    // Manually marked sold out
	Unlisted    bool      `gorm:"not null;default:false" json:"unlisted"`    // Hidden from the catalog
	CreatedAt   time.Time `json:"created_at"`                                // Creation time
	UpdatedAt   time.Time `json:"updated_at"`                                // Last modification
}

// Purchasable reports whether the item can be bought at all.
// Stock sufficiency for a given quantity is decided by the ledger.
func (i *Item) Purchasable() bool {
	return !i.SoldOut && !i.Unlisted && i.Quantity > 0
}
