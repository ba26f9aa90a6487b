package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Reservation states
const (
	ReservationPending   = "pending"
	ReservationCommitted = "committed"
	ReservationReleased  = "released"
)

// ReservedLine is one line held by a reservation, priced when reserved
type ReservedLine struct {
	ItemID    uint   `json:"item_id"`
	ItemName  string `json:"item_name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

// Reservation holds funds and stock between reserve and commit
type Reservation struct {
	ID        uint                              `gorm:"primaryKey"`
	Token     string                            `gorm:"uniqueIndex;size:36;not null"`
	UserID    uint                              `gorm:"index;not null"`
	Status    string                            `gorm:"size:16;not null"`
	Total     int64                             `gorm:"not null"`
	Lines     datatypes.JSONSlice[ReservedLine] `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
