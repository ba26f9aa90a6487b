package db

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"staff_store/internal/domain"
	"staff_store/internal/username"
)

// MergeReport describes one reconciled identity
type MergeReport struct {
	Username string   `json:"username"` // Normalized key that was kept
	KeptID   uint     `json:"kept_id"`  // Surviving row
	Merged   []string `json:"merged"`   // Stored spellings folded into it
}

// ReconcileUsernames folds rows whose usernames normalize to the same key into one row.
// The survivor keeps the highest balance, is admin if any row was, and owns every order,
// reservation and currency transaction of the merged rows. Running it again is a no-op.
func ReconcileUsernames(ctx context.Context, db *gorm.DB) ([]MergeReport, error) {
	var users []domain.User
	if err := db.WithContext(ctx).Order("id").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "load users")
	}
	groups := make(map[string][]domain.User)
	for _, u := range users {
		key := username.Normalize(u.Username)
		groups[key] = append(groups[key], u)
	}
	keys := make([]string, 0, len(groups))
	for key, rows := range groups {
		if len(rows) == 1 && rows[0].Username == key {
			continue // Already canonical
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	reports := make([]MergeReport, 0, len(keys))
	for _, key := range keys {
		var report MergeReport
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var err error
			report, err = mergeGroup(tx, key, groups[key])
			return err
		})
		if err != nil {
			return reports, errors.Wrapf(err, "merge users for %s", key)
		}
		logrus.WithFields(logrus.Fields{
			"username": report.Username,
			"kept_id":  report.KeptID,
			"merged":   report.Merged,
		}).Info("Reconciled duplicate users")
		reports = append(reports, report)
	}
	return reports, nil
}

// survivor picks the row to keep: the fallback admin, then an already canonical row, then the oldest.
func survivor(key string, rows []domain.User) int {
	for i, u := range rows {
		if u.IsFallback {
			return i
		}
	}
	for i, u := range rows {
		if u.Username == key {
			return i
		}
	}
	return 0 // rows are ordered by id
}

func latest(a, b *time.Time) *time.Time {
	if a == nil || (b != nil && b.After(*a)) {
		return b
	}
	return a
}

func mergeGroup(tx *gorm.DB, key string, rows []domain.User) (MergeReport, error) {
	keep := rows[survivor(key, rows)]
	report := MergeReport{Username: key, KeptID: keep.ID}

	balance, isAdmin, isActive := keep.Balance, keep.IsAdmin, keep.IsActive
	createdAt, lastLogin, lastSync := keep.CreatedAt, keep.LastLogin, keep.LastDirectorySync
	var others []uint
	for _, u := range rows {
		report.Merged = append(report.Merged, u.Username)
		if u.ID == keep.ID {
			continue
		}
		others = append(others, u.ID)
		if u.Balance > balance {
			balance = u.Balance
		}
		isAdmin = isAdmin || u.IsAdmin
		isActive = isActive || u.IsActive
		if !u.CreatedAt.IsZero() && u.CreatedAt.Before(createdAt) {
			createdAt = u.CreatedAt
		}
		lastLogin = latest(lastLogin, u.LastLogin)
		lastSync = latest(lastSync, u.LastDirectorySync)
	}

	if len(others) > 0 {
		// Re-point history before the duplicate rows disappear
		for _, model := range []any{&domain.Order{}, &domain.Reservation{}, &domain.CurrencyTransaction{}} {
			if err := tx.Model(model).Where("user_id IN ?", others).Update("user_id", keep.ID).Error; err != nil {
				return report, err
			}
		}
		if err := tx.Where("id IN ?", others).Delete(&domain.User{}).Error; err != nil {
			return report, err
		}
	}

	// Renaming is last so the unique index never sees two rows with the same key
	err := tx.Model(&domain.User{}).Where("id = ?", keep.ID).Updates(map[string]any{
		"username":            key,
		"balance":             balance,
		"is_admin":            isAdmin,
		"is_active":           isActive,
		"created_at":          createdAt,
		"last_login":          lastLogin,
		"last_directory_sync": lastSync,
	}).Error
	return report, err
}
