package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"staff_store/internal/domain"
	"staff_store/internal/username"
)

// SeedFallbackAdmin creates the emergency admin account exactly once.
// An existing fallback row is left untouched so password changes survive restarts.
func SeedFallbackAdmin(ctx context.Context, db *gorm.DB, name, password string, balance int64) (*domain.User, error) {
	key := username.Normalize(name)
	if key == "" || password == "" {
		return nil, errors.New("fallback admin username and password are required")
	}
	var existing domain.User
	err := db.WithContext(ctx).Where("is_fallback = ?", true).First(&existing).Error
	if err == nil {
		if existing.Username != key {
			logrus.WithFields(logrus.Fields{
				"stored":     existing.Username,
				"configured": key,
			}).Warn("Fallback admin username differs from configuration, keeping stored account")
		}
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "look up fallback admin")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash fallback admin password")
	}

	var user domain.User
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lookup := tx.Where("username = ?", key).First(&user)
		if lookup.Error == nil {
			// A row already holds the reserved key, promote it instead of duplicating it
			return tx.Model(&user).Updates(map[string]any{
				"is_fallback":   true,
				"is_admin":      true,
				"is_active":     true,
				"user_type":     domain.UserTypeLocal,
				"password_hash": string(hash),
			}).Error
		}
		if !errors.Is(lookup.Error, gorm.ErrRecordNotFound) {
			return lookup.Error
		}
		user = domain.User{
			Username:     key,
			DisplayName:  "Fallback Administrator",
			UserType:     domain.UserTypeLocal,
			PasswordHash: string(hash),
			Balance:      balance,
			IsAdmin:      true,
			IsFallback:   true,
			IsActive:     true,
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, errors.Wrap(err, "seed fallback admin")
	}
	logrus.WithField("username", key).Info("Fallback admin seeded")
	return &user, nil
}

// SeedDirectoryConfig stores record as the directory configuration if none exists yet.
func SeedDirectoryConfig(ctx context.Context, db *gorm.DB, record domain.DirectoryConfig) error {
	var count int64
	if err := db.WithContext(ctx).Model(&domain.DirectoryConfig{}).Count(&count).Error; err != nil {
		return errors.Wrap(err, "count directory configs")
	}
	if count > 0 {
		return nil
	}
	record.ID = 0
	if err := db.WithContext(ctx).Create(&record).Error; err != nil {
		return errors.Wrap(err, "seed directory config")
	}
	logrus.WithFields(logrus.Fields{
		"enabled": record.Enabled,
		"mode":    record.Mode,
	}).Info("Directory configuration seeded")
	return nil
}
