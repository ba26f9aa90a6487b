// Package checkout runs a cart through the ledger as one purchase.
package checkout

import (
	"context"
	"math"
	"sort"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"staff_store/internal/domain"
	"staff_store/internal/ledger"
	"staff_store/internal/metrics"
	"staff_store/internal/utils"
)

var (
	// ErrEmptyCart means the cart has no entries.
	ErrEmptyCart = errors.New("checkout: empty cart")
	// ErrInvalidQuantity means an entry asks for a negative or overflowing quantity.
	ErrInvalidQuantity = errors.New("checkout: invalid quantity")
)

// CartItem is one cart entry as sent by the client. Quantity 0 means 1.
type CartItem struct {
	ItemID   uint  `json:"item_id" binding:"required"`
	Quantity int64 `json:"quantity"`
}

// Ledger is the part of ledger.Ledger a checkout needs
type Ledger interface {
	Reserve(ctx context.Context, userID uint, lines []ledger.Line) (*domain.Reservation, error)
	Commit(ctx context.Context, token string) (*domain.Order, error)
	Release(ctx context.Context, token string) error
}

// Manager performs checkouts
type Manager struct {
	db     *gorm.DB
	ledger Ledger
	cache  *redis.Client // Catalog cache, may be nil
}

// NewManager returns a Manager. rdb may be nil when caching is disabled.
func NewManager(db *gorm.DB, l Ledger, rdb *redis.Client) *Manager {
	return &Manager{db: db, ledger: l, cache: rdb}
}

// normalizeCart merges duplicate entries and applies the default quantity
func normalizeCart(cart []CartItem) ([]ledger.Line, error) {
	if len(cart) == 0 {
		return nil, ErrEmptyCart
	}
	totals := make(map[uint]int64, len(cart))
	for _, entry := range cart {
		qty := entry.Quantity
		if qty < 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "item %d: quantity %d", entry.ItemID, qty)
		}
		if qty == 0 {
			qty = 1
		}
		if totals[entry.ItemID] > math.MaxInt64-qty {
			return nil, errors.Wrapf(ErrInvalidQuantity, "item %d: quantity overflows", entry.ItemID)
		}
		totals[entry.ItemID] += qty
	}
	lines := make([]ledger.Line, 0, len(totals))
	for id, qty := range totals {
		lines = append(lines, ledger.Line{ItemID: id, Quantity: qty})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ItemID < lines[j].ItemID })
	return lines, nil
}

// precheck reads the authoritative item rows so obviously doomed carts never open a
// transaction. The ledger repeats every check under lock.
func (m *Manager) precheck(ctx context.Context, lines []ledger.Line) error {
	ids := make([]uint, len(lines))
	for i, line := range lines {
		ids[i] = line.ItemID
	}
	var items []domain.Item
	if err := m.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return errors.Wrap(err, "load cart items")
	}
	byID := make(map[uint]domain.Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	var short []ledger.Shortfall
	for _, line := range lines {
		item, ok := byID[line.ItemID]
		if !ok || item.SoldOut || item.Unlisted {
			return errors.Wrapf(ledger.ErrItemUnavailable, "item %d", line.ItemID)
		}
		if item.Quantity < line.Quantity {
			short = append(short, ledger.Shortfall{
				ItemID:    item.ID,
				Name:      item.Name,
				Requested: line.Quantity,
				Available: item.Quantity,
			})
		}
	}
	if len(short) > 0 {
		return &ledger.InsufficientInventoryError{Items: short}
	}
	return nil
}

// Checkout buys cart for userID. Either the order exists and balance and stock
// moved, or nothing changed.
func (m *Manager) Checkout(ctx context.Context, userID uint, cart []CartItem) (*domain.Order, error) {
	order, err := m.checkout(ctx, userID, cart)
	metrics.CheckoutsTotal.WithLabelValues(result(err)).Inc()
	if err != nil {
		return nil, err
	}
	metrics.CurrencySpentTotal.Add(float64(order.Total))
	if err := utils.DeleteCache(ctx, m.cache, utils.CatalogCacheKey); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate catalog cache")
	}
	logrus.WithFields(logrus.Fields{
		"user_id":  userID,
		"order_id": order.ID,
		"total":    order.Total,
	}).Info("Checkout completed")
	return order, nil
}

func (m *Manager) checkout(ctx context.Context, userID uint, cart []CartItem) (*domain.Order, error) {
	lines, err := normalizeCart(cart)
	if err != nil {
		return nil, err
	}
	if err := m.precheck(ctx, lines); err != nil {
		return nil, err
	}
	reservation, err := m.ledger.Reserve(ctx, userID, lines)
	if err != nil {
		return nil, err
	}
	order, err := m.ledger.Commit(ctx, reservation.Token)
	if err != nil {
		// The request context may already be done; the compensation must still run
		if relErr := m.ledger.Release(context.WithoutCancel(ctx), reservation.Token); relErr != nil {
			logrus.WithError(relErr).WithField("token", reservation.Token).Error("Failed to release reservation after commit error")
		}
		return nil, errors.Wrap(err, "commit reservation")
	}
	return order, nil
}

// result is the metrics label for a checkout outcome
func result(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ledger.ErrInsufficientInventory):
		return "insufficient_inventory"
	case errors.Is(err, ledger.ErrItemUnavailable):
		return "item_unavailable"
	case errors.Is(err, ErrEmptyCart), errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidQuantity), errors.Is(err, ledger.ErrAccountUnavailable):
		return "invalid"
	default:
		return "error"
	}
}
