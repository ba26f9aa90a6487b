package db

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"staff_store/internal/domain"
)

// DirectoryConfigStore reads and replaces the single directory configuration record
type DirectoryConfigStore struct {
	db *gorm.DB
}

// NewDirectoryConfigStore returns a DirectoryConfigStore
func NewDirectoryConfigStore(db *gorm.DB) *DirectoryConfigStore {
	return &DirectoryConfigStore{db: db}
}

// DirectoryConfig returns the stored record, or nil when none exists
func (s *DirectoryConfigStore) DirectoryConfig(ctx context.Context) (*domain.DirectoryConfig, error) {
	var cfg domain.DirectoryConfig
	err := s.db.WithContext(ctx).Order("id").First(&cfg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "load directory config")
	}
	return &cfg, nil
}

// Save replaces the stored record. An empty service password keeps the stored one.
func (s *DirectoryConfigStore) Save(ctx context.Context, cfg domain.DirectoryConfig) (*domain.DirectoryConfig, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current domain.DirectoryConfig
		err := tx.Order("id").First(&current).Error
		switch {
		case err == nil:
			cfg.ID = current.ID
			if cfg.ServiceBindPassword == "" {
				cfg.ServiceBindPassword = current.ServiceBindPassword
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			cfg.ID = 0
		default:
			return err
		}
		return tx.Save(&cfg).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "save directory config")
	}
	return &cfg, nil
}
