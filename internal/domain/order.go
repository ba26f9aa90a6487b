package domain

import "time"

// Order Model, immutable once created
type Order struct {
	ID               uint        `gorm:"primaryKey" json:"id"`                                        // Primary key
	UserID           uint        `gorm:"index;not null" json:"user_id"`                               // Buyer
	ReservationToken string      `gorm:"uniqueIndex;size:36;not null" json:"-"`                       // One order per reservation
	Total            int64       `gorm:"not null" json:"total"`                                       // Sum of all lines
	Lines            []OrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lines"` // Purchased lines
	CreatedAt        time.Time   `json:"created_at"`                                                  // Purchase time
}

// OrderLine captures item and price at purchase time
type OrderLine struct {
	ID        uint   `gorm:"primaryKey" json:"-"`        // Primary key
	OrderID   uint   `gorm:"index;not null" json:"-"`    // Owning order
	ItemID    uint   `gorm:"not null" json:"item_id"`    // Item reference, not a foreign key
	ItemName  string `gorm:"size:191" json:"item_name"`  // Item name when purchased
	UnitPrice int64  `gorm:"not null" json:"unit_price"` // Price when purchased
	Quantity  int64  `gorm:"not null" json:"quantity"`   // Units purchased
}
