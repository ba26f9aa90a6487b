package admin

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"staff_store/internal/db"
	"staff_store/internal/domain"
	"staff_store/internal/username"
)

// NewUser describes a local account created by an admin
type NewUser struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
	Balance     int64  `json:"balance"`
	IsAdmin     bool   `json:"is_admin"`
}

// findUser loads the row for a target username, normalized the same way logins are
func findUser(tx *gorm.DB, target string) (*domain.User, error) {
	key := username.Normalize(target)
	var user domain.User
	err := tx.Where("username = ?", key).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrapf(ErrNotFound, "user %s", key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "load user")
	}
	return &user, nil
}

// ListUsers returns every user ordered by username
func (s *Service) ListUsers(ctx context.Context, caller string) ([]domain.User, error) {
	if _, err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	var users []domain.User
	if err := s.db.WithContext(ctx).Order("username").Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return users, nil
}

// CreateUser adds a local account under the normalized username
func (s *Service) CreateUser(ctx context.Context, caller string, in NewUser) (*domain.User, error) {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return nil, err
	}
	key := username.Normalize(in.Username)
	if key == "" || in.Password == "" {
		return nil, invalid("username and password are required")
	}
	if in.Balance < 0 {
		return nil, invalid("balance must not be negative")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	user := domain.User{
		Username:     key,
		DisplayName:  in.DisplayName,
		UserType:     domain.UserTypeLocal,
		PasswordHash: string(hash),
		Balance:      in.Balance,
		IsAdmin:      in.IsAdmin,
		IsActive:     true,
	}
	if user.DisplayName == "" {
		user.DisplayName = key
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&domain.User{}).Where("username = ?", key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return errors.Wrapf(ErrAlreadyExists, "user %s", key)
		}
		if err := tx.Create(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errors.Wrapf(ErrAlreadyExists, "user %s", key)
			}
			return err
		}
		if user.Balance == 0 {
			return nil
		}
		return tx.Create(&domain.CurrencyTransaction{
			UserID: user.ID,
			Amount: user.Balance,
			Type:   domain.CurrencyAdminSet,
			Note:   "initial balance",
			Actor:  actor.Username,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"actor":    actor.Username,
		"username": key,
		"is_admin": user.IsAdmin,
	}).Info("Local user created")
	return &user, nil
}

// SetAdmin grants or revokes the admin flag. The fallback admin cannot be demoted.
func (s *Service) SetAdmin(ctx context.Context, caller, target string, isAdmin bool) (*domain.User, error) {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return nil, err
	}
	user, err := findUser(s.db.WithContext(ctx), target)
	if err != nil {
		return nil, err
	}
	if user.IsFallback && !isAdmin {
		return nil, ErrFallbackProtected
	}
	if err := s.db.WithContext(ctx).Model(user).Update("is_admin", isAdmin).Error; err != nil {
		return nil, errors.Wrap(err, "update admin flag")
	}
	user.IsAdmin = isAdmin
	logrus.WithFields(logrus.Fields{
		"actor":    actor.Username,
		"username": user.Username,
		"is_admin": isAdmin,
	}).Info("Admin flag changed")
	return user, nil
}

// SetBalance overwrites a user's balance and records the difference
func (s *Service) SetBalance(ctx context.Context, caller, target string, balance int64, note string) (*domain.User, error) {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return nil, err
	}
	if balance < 0 {
		return nil, invalid("balance must not be negative")
	}
	var user *domain.User
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if user, err = findUser(db.ForUpdate(tx), target); err != nil {
			return err
		}
		delta := balance - user.Balance
		if err := tx.Model(user).Update("balance", balance).Error; err != nil {
			return err
		}
		user.Balance = balance
		if delta == 0 {
			return nil
		}
		return tx.Create(&domain.CurrencyTransaction{
			UserID: user.ID,
			Amount: delta,
			Type:   domain.CurrencyAdminSet,
			Note:   note,
			Actor:  actor.Username,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"actor":    actor.Username,
		"username": user.Username,
		"balance":  balance,
	}).Info("Balance set")
	return user, nil
}

// SetPassword replaces the credential of a local account
func (s *Service) SetPassword(ctx context.Context, caller, target, password string) error {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return err
	}
	if password == "" {
		return invalid("password is required")
	}
	user, err := findUser(s.db.WithContext(ctx), target)
	if err != nil {
		return err
	}
	if user.IsDirectory() {
		return invalid("directory users authenticate against the directory")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return errors.Wrap(err, "hash password")
	}
	if err := s.db.WithContext(ctx).Model(user).Update("password_hash", string(hash)).Error; err != nil {
		return errors.Wrap(err, "update password")
	}
	logrus.WithFields(logrus.Fields{
		"actor":    actor.Username,
		"username": user.Username,
	}).Info("Password changed")
	return nil
}

// GrantAll adds amount to every active user and returns how many were credited
func (s *Service) GrantAll(ctx context.Context, caller string, amount int64, note string) (int64, error) {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, invalid("amount must be positive")
	}
	var updated int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []uint
		if err := tx.Model(&domain.User{}).Where("is_active = ?", true).Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		res := tx.Model(&domain.User{}).Where("id IN ?", ids).Update("balance", gorm.Expr("balance + ?", amount))
		if res.Error != nil {
			return res.Error
		}
		updated = res.RowsAffected
		entries := make([]domain.CurrencyTransaction, 0, len(ids))
		for _, id := range ids {
			entries = append(entries, domain.CurrencyTransaction{
				UserID: id,
				Amount: amount,
				Type:   domain.CurrencyAdminGrant,
				Note:   note,
				Actor:  actor.Username,
			})
		}
		return tx.CreateInBatches(entries, 200).Error
	})
	if err != nil {
		return 0, errors.Wrap(err, "grant currency")
	}
	logrus.WithFields(logrus.Fields{
		"actor":   actor.Username,
		"amount":  amount,
		"updated": updated,
	}).Info("Currency granted to all active users")
	return updated, nil
}

// DeleteUser removes a user. Directory users and users with orders are only
// deactivated so their history keeps an owner. It reports whether the row was kept.
func (s *Service) DeleteUser(ctx context.Context, caller, target string) (deactivated bool, err error) {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return false, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := findUser(tx, target)
		if err != nil {
			return err
		}
		if user.IsFallback {
			return ErrFallbackProtected
		}
		if user.ID == actor.ID {
			return invalid("admins cannot delete their own account")
		}
		var orders int64
		if err := tx.Model(&domain.Order{}).Where("user_id = ?", user.ID).Count(&orders).Error; err != nil {
			return err
		}
		if user.IsDirectory() || orders > 0 {
			deactivated = true
			return tx.Model(user).Update("is_active", false).Error
		}
		for _, model := range []any{&domain.CurrencyTransaction{}, &domain.Reservation{}} {
			if err := tx.Where("user_id = ?", user.ID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		return false, err
	}
	logrus.WithFields(logrus.Fields{
		"actor":       actor.Username,
		"username":    username.Normalize(target),
		"deactivated": deactivated,
	}).Info("User removed")
	return deactivated, nil
}
