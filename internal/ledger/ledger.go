// Package ledger moves balance and stock for purchases.
//
// A purchase is a Reserve that debits the buyer and decrements stock, followed by a
// Commit that turns the reservation into an immutable Order. Release undoes a pending
// reservation. Every step runs in one database transaction guarded by row locks and
// conditional updates, so concurrent buyers can never overdraw a balance or oversell
// an item.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"staff_store/internal/db"
	"staff_store/internal/domain"
)

// Line requests Quantity units of one item
type Line struct {
	ItemID   uint
	Quantity int64
}

// Ledger is the only writer of balances and stock during checkout
type Ledger struct {
	db *gorm.DB
}

// New returns a Ledger over db
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// mergeLines folds duplicate items together and orders lines by item id,
// so every transaction locks rows in the same order
func mergeLines(lines []Line) ([]Line, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyReservation
	}
	totals := make(map[uint]int64, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "item %d: quantity %d", line.ItemID, line.Quantity)
		}
		if totals[line.ItemID] > math.MaxInt64-line.Quantity {
			return nil, errors.Wrapf(ErrInvalidQuantity, "item %d: quantity overflows", line.ItemID)
		}
		totals[line.ItemID] += line.Quantity
	}
	merged := make([]Line, 0, len(totals))
	for id, qty := range totals {
		merged = append(merged, Line{ItemID: id, Quantity: qty})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ItemID < merged[j].ItemID })
	return merged, nil
}

// Reserve debits the buyer and takes the requested stock, all or nothing.
// Prices are read from the item rows, never from the caller.
func (l *Ledger) Reserve(ctx context.Context, userID uint, lines []Line) (*domain.Reservation, error) {
	merged, err := mergeLines(lines)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(merged))
	for i, line := range merged {
		ids[i] = line.ItemID
	}

	var reservation domain.Reservation
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []domain.Item
		if err := db.ForUpdate(tx).Where("id IN ?", ids).Order("id").Find(&items).Error; err != nil {
			return errors.Wrap(err, "lock items")
		}
		byID := make(map[uint]domain.Item, len(items))
		for _, item := range items {
			byID[item.ID] = item
		}

		var (
			reserved []domain.ReservedLine
			short    []Shortfall
			total    int64
		)
		for _, line := range merged {
			item, ok := byID[line.ItemID]
			if !ok || item.SoldOut || item.Unlisted {
				return errors.Wrapf(ErrItemUnavailable, "item %d", line.ItemID)
			}
			if item.Quantity < line.Quantity {
				short = append(short, Shortfall{
					ItemID:    item.ID,
					Name:      item.Name,
					Requested: line.Quantity,
					Available: item.Quantity,
				})
				continue
			}
			if item.Price > 0 && line.Quantity > (math.MaxInt64-total)/item.Price {
				return errors.Wrapf(ErrInvalidQuantity, "item %d: total overflows", line.ItemID)
			}
			total += item.Price * line.Quantity
			reserved = append(reserved, domain.ReservedLine{
				ItemID:    item.ID,
				ItemName:  item.Name,
				UnitPrice: item.Price,
				Quantity:  line.Quantity,
			})
		}
		if len(short) > 0 {
			return &InsufficientInventoryError{Items: short}
		}

		if total == 0 {
			// Nothing to debit; an unchanged row would not count as affected on every driver
			if err := requireActive(tx, userID); err != nil {
				return err
			}
		} else {
			// Compare-and-debit: the balance check and the write are one statement
			debit := tx.Model(&domain.User{}).
				Where("id = ? AND is_active = ? AND balance >= ?", userID, true, total).
				Update("balance", gorm.Expr("balance - ?", total))
			if debit.Error != nil {
				return errors.Wrap(debit.Error, "debit balance")
			}
			if debit.RowsAffected == 0 {
				return balanceFailure(tx, userID)
			}
		}

		for _, line := range reserved {
			take := tx.Model(&domain.Item{}).
				Where("id = ? AND quantity >= ? AND sold_out = ? AND unlisted = ?", line.ItemID, line.Quantity, false, false).
				Update("quantity", gorm.Expr("quantity - ?", line.Quantity))
			if take.Error != nil {
				return errors.Wrap(take.Error, "decrement stock")
			}
			if take.RowsAffected == 0 {
				return &InsufficientInventoryError{Items: []Shortfall{{
					ItemID:    line.ItemID,
					Name:      line.ItemName,
					Requested: line.Quantity,
					Available: byID[line.ItemID].Quantity,
				}}}
			}
		}

		reservation = domain.Reservation{
			Token:  uuid.NewString(),
			UserID: userID,
			Status: domain.ReservationPending,
			Total:  total,
			Lines:  reserved,
		}
		return errors.Wrap(tx.Create(&reservation).Error, "create reservation")
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"token":   reservation.Token,
		"total":   reservation.Total,
	}).Debug("Reservation created")
	return &reservation, nil
}

// requireActive fails with ErrAccountUnavailable unless userID names an active account
func requireActive(tx *gorm.DB, userID uint) error {
	var user domain.User
	err := db.ForUpdate(tx).Select("id", "is_active").Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAccountUnavailable
	}
	if err != nil {
		return errors.Wrap(err, "load account")
	}
	if !user.IsActive {
		return ErrAccountUnavailable
	}
	return nil
}

// balanceFailure tells an empty wallet apart from a missing or deactivated account
func balanceFailure(tx *gorm.DB, userID uint) error {
	if err := requireActive(tx, userID); err != nil {
		return err
	}
	return ErrInsufficientBalance
}

// lockReservation reads the reservation for token under a row lock
func lockReservation(tx *gorm.DB, token string) (*domain.Reservation, error) {
	var res domain.Reservation
	err := db.ForUpdate(tx).Where("token = ?", token).First(&res).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock reservation")
	}
	return &res, nil
}

// transition moves a pending reservation to status; it fails if someone else moved it first
func transition(tx *gorm.DB, res *domain.Reservation, status string) error {
	upd := tx.Model(&domain.Reservation{}).
		Where("id = ? AND status = ?", res.ID, domain.ReservationPending).
		Update("status", status)
	if upd.Error != nil {
		return errors.Wrap(upd.Error, "update reservation status")
	}
	if upd.RowsAffected == 0 {
		return errors.Errorf("reservation %s changed concurrently", res.Token)
	}
	res.Status = status
	return nil
}

// Commit turns a pending reservation into an Order. Committing the same token
// again returns the order created the first time.
func (l *Ledger) Commit(ctx context.Context, token string) (*domain.Order, error) {
	var order domain.Order
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := lockReservation(tx, token)
		if err != nil {
			return err
		}
		switch res.Status {
		case domain.ReservationCommitted:
			return errors.Wrap(tx.Preload("Lines").Where("reservation_token = ?", token).First(&order).Error, "load committed order")
		case domain.ReservationReleased:
			return ErrReservationReleased
		}

		order = domain.Order{
			UserID:           res.UserID,
			ReservationToken: res.Token,
			Total:            res.Total,
		}
		for _, line := range res.Lines {
			order.Lines = append(order.Lines, domain.OrderLine{
				ItemID:    line.ItemID,
				ItemName:  line.ItemName,
				UnitPrice: line.UnitPrice,
				Quantity:  line.Quantity,
			})
		}
		if err := tx.Create(&order).Error; err != nil {
			return errors.Wrap(err, "create order")
		}

		var buyer []string
		if err := tx.Model(&domain.User{}).Where("id = ?", res.UserID).Pluck("username", &buyer).Error; err != nil {
			return errors.Wrap(err, "load buyer")
		}
		entry := domain.CurrencyTransaction{
			UserID: res.UserID,
			Amount: -res.Total,
			Type:   domain.CurrencyPurchase,
			Note:   fmt.Sprintf("order %d", order.ID),
		}
		if len(buyer) > 0 {
			entry.Actor = buyer[0]
		}
		if err := tx.Create(&entry).Error; err != nil {
			return errors.Wrap(err, "record purchase")
		}
		return transition(tx, res, domain.ReservationCommitted)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// Release gives back the funds and stock held by a pending reservation.
// Releasing twice is a no-op; a committed reservation cannot be released.
func (l *Ledger) Release(ctx context.Context, token string) error {
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := lockReservation(tx, token)
		if err != nil {
			return err
		}
		switch res.Status {
		case domain.ReservationReleased:
			return nil
		case domain.ReservationCommitted:
			return ErrReservationCommitted
		}
		if err := tx.Model(&domain.User{}).Where("id = ?", res.UserID).
			Update("balance", gorm.Expr("balance + ?", res.Total)).Error; err != nil {
			return errors.Wrap(err, "restore balance")
		}
		for _, line := range res.Lines {
			if err := tx.Model(&domain.Item{}).Where("id = ?", line.ItemID).
				Update("quantity", gorm.Expr("quantity + ?", line.Quantity)).Error; err != nil {
				return errors.Wrap(err, "restore stock")
			}
		}
		return transition(tx, res, domain.ReservationReleased)
	})
}
