package admin

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"staff_store/internal/domain"
)

// ItemInput is the editable part of an item
type ItemInput struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
	Quantity    int64  `json:"quantity"`
	SoldOut     bool   `json:"sold_out"`
	Unlisted    bool   `json:"unlisted"`
}

func (in *ItemInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return invalid("item name is required")
	case in.Price < 0:
		return invalid("price must not be negative")
	case in.Quantity < 0:
		return invalid("quantity must not be negative")
	}
	return nil
}

func findItem(tx *gorm.DB, id uint) (*domain.Item, error) {
	var item domain.Item
	err := tx.First(&item, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "item %d", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load item")
	}
	return &item, nil
}

// nameTaken reports whether another item already uses name
func nameTaken(tx *gorm.DB, name string, exceptID uint) (bool, error) {
	var count int64
	err := tx.Model(&domain.Item{}).Where("name = ? AND id <> ?", name, exceptID).Count(&count).Error
	return count > 0, err
}

// ListItems returns every item, including unlisted and sold out ones
func (s *Service) ListItems(ctx context.Context, caller string) ([]domain.Item, error) {
	if _, err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	var items []domain.Item
	if err := s.db.WithContext(ctx).Order("name").Find(&items).Error; err != nil {
		return nil, errors.Wrap(err, "list items")
	}
	return items, nil
}

// CreateItem adds an item to the catalog
func (s *Service) CreateItem(ctx context.Context, caller string, in ItemInput) (*domain.Item, error) {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	item := domain.Item{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Quantity:    in.Quantity,
		SoldOut:     in.SoldOut,
		Unlisted:    in.Unlisted,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, in.Name, 0)
		if err != nil {
			return err
		}
		if taken {
			return errors.Wrapf(ErrAlreadyExists, "item %s", in.Name)
		}
		return tx.Create(&item).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, errors.Wrapf(ErrAlreadyExists, "item %s", in.Name)
	}
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	logrus.WithFields(logrus.Fields{"actor": actor.Username, "item_id": item.ID}).Info("Item created")
	return &item, nil
}

// UpdateItem replaces every editable field of an item
func (s *Service) UpdateItem(ctx context.Context, caller string, id uint, in ItemInput) (*domain.Item, error) {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	var item *domain.Item
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if item, err = findItem(tx, id); err != nil {
			return err
		}
		taken, err := nameTaken(tx, in.Name, id)
		if err != nil {
			return err
		}
		if taken {
			return errors.Wrapf(ErrAlreadyExists, "item %s", in.Name)
		}
		// A map writes false and zero values too
		return tx.Model(item).Updates(map[string]any{
			"name":        in.Name,
			"description": in.Description,
			"price":       in.Price,
			"quantity":    in.Quantity,
			"sold_out":    in.SoldOut,
			"unlisted":    in.Unlisted,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	item.Name, item.Description, item.Price = in.Name, in.Description, in.Price
	item.Quantity, item.SoldOut, item.Unlisted = in.Quantity, in.SoldOut, in.Unlisted
	s.invalidateCatalog(ctx)
	logrus.WithFields(logrus.Fields{"actor": actor.Username, "item_id": id}).Info("Item updated")
	return item, nil
}

// SetItemQuantity overwrites the stock of one item
func (s *Service) SetItemQuantity(ctx context.Context, caller string, id uint, quantity int64) (*domain.Item, error) {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return nil, err
	}
	if quantity < 0 {
		return nil, invalid("quantity must not be negative")
	}
	res := s.db.WithContext(ctx).Model(&domain.Item{}).Where("id = ?", id).Update("quantity", quantity)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update quantity")
	}
	// Zero rows also means "already at that quantity" on MySQL, so existence decides
	item, err := findItem(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	s.invalidateCatalog(ctx)
	logrus.WithFields(logrus.Fields{
		"actor":    actor.Username,
		"item_id":  id,
		"quantity": quantity,
	}).Info("Item quantity set")
	return item, nil
}

// DeleteItem removes an item. Past orders keep their own copy of name and price.
func (s *Service) DeleteItem(ctx context.Context, caller string, id uint) error {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Delete(&domain.Item{}, id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete item")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "item %d", id)
	}
	s.invalidateCatalog(ctx)
	logrus.WithFields(logrus.Fields{"actor": actor.Username, "item_id": id}).Info("Item deleted")
	return nil
}
