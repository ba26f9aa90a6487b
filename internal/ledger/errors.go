package ledger

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrInsufficientBalance means the buyer cannot pay the reservation total.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	// ErrInsufficientInventory means at least one item has fewer units than requested.
	ErrInsufficientInventory = errors.New("ledger: insufficient inventory")
	// ErrItemUnavailable means an item is unknown, sold out or unlisted.
	ErrItemUnavailable = errors.New("ledger: item unavailable")
	// ErrAccountUnavailable means the buyer does not exist or is deactivated.
	ErrAccountUnavailable = errors.New("ledger: account unavailable")
	// ErrInvalidQuantity means a line asks for zero, negative or overflowing amounts.
	ErrInvalidQuantity = errors.New("ledger: invalid quantity")
	// ErrEmptyReservation means no lines were given.
	ErrEmptyReservation = errors.New("ledger: empty reservation")
	// ErrReservationNotFound means the token is unknown.
	ErrReservationNotFound = errors.New("ledger: reservation not found")
	// ErrReservationReleased means the reservation was released and cannot be committed.
	ErrReservationReleased = errors.New("ledger: reservation released")
	// ErrReservationCommitted means the reservation already produced an order and cannot be released.
	ErrReservationCommitted = errors.New("ledger: reservation committed")
)

// Shortfall describes one item that cannot cover the requested quantity
type Shortfall struct {
	ItemID    uint   `json:"item_id"`
	Name      string `json:"name"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

// InsufficientInventoryError lists every short item of a cart, not only the first
type InsufficientInventoryError struct {
	Items []Shortfall
}

func (e *InsufficientInventoryError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, s := range e.Items {
		parts = append(parts, fmt.Sprintf("%s (id %d): requested %d, available %d", s.Name, s.ItemID, s.Requested, s.Available))
	}
	return "ledger: insufficient inventory: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrInsufficientInventory) hold
func (e *InsufficientInventoryError) Is(target error) bool {
	return target == ErrInsufficientInventory
}
