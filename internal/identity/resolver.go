// Package identity reconciles the fallback admin, local accounts and the directory
// into one local User record per login.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staff_store/internal/directory"
	"staff_store/internal/domain"
	"staff_store/internal/metrics"
	"staff_store/internal/username"
)

var (
	// ErrAuthenticationRejected covers wrong passwords, unknown users and disabled accounts alike.
	ErrAuthenticationRejected = errors.New("identity: authentication rejected")
	// ErrDirectoryUnavailable means the directory could not give a verdict; the caller may retry.
	ErrDirectoryUnavailable = errors.New("identity: directory unavailable")
	// ErrDuplicateIdentity means stored rows spell the same user differently and need reconciling.
	ErrDuplicateIdentity = errors.New("identity: duplicate identity")
)

// Resolution paths, used as metric labels
const (
	pathFallback  = "fallback"
	pathLocal     = "local"
	pathDirectory = "directory"
)

// Principal is an authenticated user
type Principal struct {
	UserID      uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	UserType    string `json:"user_type"`
	IsAdmin     bool   `json:"is_admin"`
}

func principalOf(u *domain.User) *Principal {
	return &Principal{
		UserID:      u.ID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		UserType:    u.UserType,
		IsAdmin:     u.IsAdmin,
	}
}

// Resolver turns a login form into a Principal
type Resolver struct {
	db          *gorm.DB
	directory   directory.Authenticator
	fallbackKey string
	now         func() time.Time
}

// NewResolver returns a Resolver. fallbackUsername is normalized before use.
func NewResolver(db *gorm.DB, dir directory.Authenticator, fallbackUsername string) *Resolver {
	return &Resolver{
		db:          db,
		directory:   dir,
		fallbackKey: username.Normalize(fallbackUsername),
		now:         time.Now,
	}
}

// Resolve authenticates rawUsername and returns the matching Principal.
// The directory is consulted with the username exactly as typed; only the local key is normalized.
func (r *Resolver) Resolve(ctx context.Context, rawUsername, password string) (*Principal, error) {
	key := username.Normalize(rawUsername)
	if key == "" || password == "" {
		return nil, r.reject(ctx, key, pathLocal, "missing credentials")
	}
	if key == r.fallbackKey {
		return r.resolveFallback(ctx, key, password)
	}

	var user domain.User
	err := r.db.WithContext(ctx).Where("username = ?", key).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.provision(ctx, key, rawUsername, password)
	}
	if err != nil {
		return nil, r.fail(ctx, key, pathLocal, errors.Wrap(err, "look up user"))
	}
	return r.resolveStored(ctx, &user, rawUsername, password)
}

// resolveStored authenticates against an existing row according to its user type
func (r *Resolver) resolveStored(ctx context.Context, user *domain.User, rawUsername, password string) (*Principal, error) {
	if !user.IsActive {
		return nil, r.reject(ctx, user.Username, pathLocal, "account deactivated")
	}
	if user.IsDirectory() {
		return r.resolveDirectoryUser(ctx, user, rawUsername, password)
	}
	return r.resolveLocalUser(ctx, user, password)
}

// resolveFallback never consults the directory, so the admin can log in while it is down
func (r *Resolver) resolveFallback(ctx context.Context, key, password string) (*Principal, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("username = ? AND is_fallback = ?", key, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		logrus.WithField("username", key).Error("Fallback admin login attempted but no fallback account is seeded")
		return nil, r.reject(ctx, key, pathFallback, "fallback account missing")
	}
	if err != nil {
		return nil, r.fail(ctx, key, pathFallback, errors.Wrap(err, "look up fallback admin"))
	}
	if !checkPassword(user.PasswordHash, password) {
		return nil, r.reject(ctx, key, pathFallback, "invalid password")
	}
	return r.succeed(ctx, &user, pathFallback, map[string]any{"last_login": r.now()})
}

func (r *Resolver) resolveLocalUser(ctx context.Context, user *domain.User, password string) (*Principal, error) {
	if !checkPassword(user.PasswordHash, password) {
		return nil, r.reject(ctx, user.Username, pathLocal, "invalid password")
	}
	return r.succeed(ctx, user, pathLocal, map[string]any{"last_login": r.now()})
}

// resolveDirectoryUser never falls back to a local password, and never touches is_admin
func (r *Resolver) resolveDirectoryUser(ctx context.Context, user *domain.User, rawUsername, password string) (*Principal, error) {
	result, err := r.directory.AttemptBind(ctx, rawUsername, password)
	if err != nil {
		return nil, r.directoryFailure(ctx, user.Username, err)
	}
	now := r.now()
	updates := map[string]any{
		"last_login":          now,
		"last_directory_sync": now,
	}
	if result.DisplayName != "" {
		updates["display_name"] = result.DisplayName
		user.DisplayName = result.DisplayName
	}
	if result.Email != "" {
		updates["email"] = result.Email
	}
	return r.succeed(ctx, user, pathDirectory, updates)
}

// provision handles a key with no local row: legacy spellings first, then the directory
func (r *Resolver) provision(ctx context.Context, key, rawUsername, password string) (*Principal, error) {
	legacy, err := r.legacySpellings(ctx, key)
	if err != nil {
		return nil, r.fail(ctx, key, pathDirectory, err)
	}
	switch {
	case len(legacy) == 1:
		user, err := r.adoptLegacy(ctx, key, &legacy[0])
		if err != nil {
			return nil, r.fail(ctx, key, pathLocal, err)
		}
		return r.resolveStored(ctx, user, rawUsername, password)
	case len(legacy) > 1:
		spellings := make([]string, len(legacy))
		for i, u := range legacy {
			spellings[i] = u.Username
		}
		logrus.WithFields(logrus.Fields{
			"username": key,
			"stored":   spellings,
		}).Error("Stored usernames collide after normalization, run reconciliation")
		metrics.LoginAttemptsTotal.WithLabelValues(pathDirectory, "duplicate").Inc()
		r.audit(ctx, key, domain.AuditDuplicateKey, fmt.Sprintf("stored spellings: %v", spellings))
		return nil, ErrDuplicateIdentity
	}

	result, err := r.directory.AttemptBind(ctx, rawUsername, password)
	if err != nil {
		return nil, r.directoryFailure(ctx, key, err)
	}

	now := r.now()
	user := domain.User{
		Username:          key,
		DisplayName:       result.DisplayName,
		Email:             result.Email,
		UserType:          domain.UserTypeDirectory,
		IsActive:          true,
		LastLogin:         &now,
		LastDirectorySync: &now,
	}
	if user.DisplayName == "" {
		user.DisplayName = key
	}
	// Two first logins can race; the unique key decides and both re-read the winner
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "username"}}, DoNothing: true}).
		Create(&user)
	if res.Error != nil {
		return nil, r.fail(ctx, key, pathDirectory, errors.Wrap(res.Error, "create directory user"))
	}
	if res.RowsAffected == 1 {
		metrics.UsersProvisionedTotal.Inc()
		r.audit(ctx, key, domain.AuditUserProvisioned, "created from directory login")
		logrus.WithField("username", key).Info("Directory user provisioned")
	}

	var stored domain.User
	if err := r.db.WithContext(ctx).Where("username = ?", key).First(&stored).Error; err != nil {
		return nil, r.fail(ctx, key, pathDirectory, errors.Wrap(err, "re-read provisioned user"))
	}
	if !stored.IsActive {
		return nil, r.reject(ctx, key, pathDirectory, "account deactivated")
	}
	metrics.LoginAttemptsTotal.WithLabelValues(pathDirectory, "authenticated").Inc()
	r.audit(ctx, key, domain.AuditLoginSuccess, pathDirectory)
	return principalOf(&stored), nil
}

// legacySpellings lists stored usernames that normalize to key without being equal to it
func (r *Resolver) legacySpellings(ctx context.Context, key string) ([]domain.User, error) {
	var candidates []domain.User
	err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ?", "%"+key+"%").
		Find(&candidates).Error
	if err != nil {
		return nil, errors.Wrap(err, "look up legacy usernames")
	}
	var legacy []domain.User
	for _, stored := range candidates {
		if stored.Username != key && username.Normalize(stored.Username) == key {
			legacy = append(legacy, stored)
		}
	}
	return legacy, nil
}

// adoptLegacy renames the only row stored under an old spelling of key to key itself
func (r *Resolver) adoptLegacy(ctx context.Context, key string, stored *domain.User) (*domain.User, error) {
	res := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ? AND username = ?", stored.ID, stored.Username).
		Update("username", key)
	if res.Error != nil && !errors.Is(res.Error, gorm.ErrDuplicatedKey) {
		return nil, errors.Wrap(res.Error, "normalize stored username")
	}
	if res.Error == nil && res.RowsAffected == 1 {
		r.audit(ctx, key, domain.AuditUsernameNormalized, fmt.Sprintf("renamed from %q", stored.Username))
		logrus.WithFields(logrus.Fields{
			"username": key,
			"stored":   stored.Username,
		}).Info("Stored username normalized at login")
	}
	// A concurrent login may have renamed it first; the canonical row is authoritative either way
	var user domain.User
	if err := r.db.WithContext(ctx).Where("username = ?", key).First(&user).Error; err != nil {
		return nil, errors.Wrap(err, "re-read normalized user")
	}
	return &user, nil
}

func (r *Resolver) directoryFailure(ctx context.Context, key string, err error) error {
	switch {
	case directory.IsInfrastructure(err):
		logrus.WithError(err).WithField("username", key).Error("Directory unavailable during login")
		metrics.LoginAttemptsTotal.WithLabelValues(pathDirectory, "unavailable").Inc()
		r.audit(ctx, key, domain.AuditLoginError, err.Error())
		return fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
	case errors.Is(err, directory.ErrInvalidCredentials),
		errors.Is(err, directory.ErrUserNotFound),
		errors.Is(err, directory.ErrDisabled):
		return r.reject(ctx, key, pathDirectory, err.Error())
	default:
		return r.fail(ctx, key, pathDirectory, err)
	}
}

func (r *Resolver) succeed(ctx context.Context, user *domain.User, path string, updates map[string]any) (*Principal, error) {
	err := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", user.ID).Updates(updates).Error
	if err != nil {
		return nil, r.fail(ctx, user.Username, path, errors.Wrap(err, "record login"))
	}
	metrics.LoginAttemptsTotal.WithLabelValues(path, "authenticated").Inc()
	r.audit(ctx, user.Username, domain.AuditLoginSuccess, path)
	logrus.WithFields(logrus.Fields{
		"username": user.Username,
		"path":     path,
	}).Info("Login succeeded")
	return principalOf(user), nil
}

func (r *Resolver) reject(ctx context.Context, key, path, reason string) error {
	metrics.LoginAttemptsTotal.WithLabelValues(path, "rejected").Inc()
	r.audit(ctx, key, domain.AuditLoginFailed, reason)
	logrus.WithFields(logrus.Fields{
		"username": key,
		"path":     path,
		"reason":   reason,
	}).Warn("Login rejected")
	return ErrAuthenticationRejected
}

func (r *Resolver) fail(ctx context.Context, key, path string, err error) error {
	metrics.LoginAttemptsTotal.WithLabelValues(path, "error").Inc()
	r.audit(ctx, key, domain.AuditLoginError, err.Error())
	logrus.WithError(err).WithField("username", key).Error("Login failed")
	return err
}

// audit is best effort; a lost audit row never fails a login
func (r *Resolver) audit(ctx context.Context, key, action, detail string) {
	event := domain.AuditEvent{Username: key, Action: action, Detail: detail}
	if err := r.db.WithContext(ctx).Create(&event).Error; err != nil {
		logrus.WithError(err).WithField("action", action).Warn("Failed to write audit event")
	}
}

func checkPassword(hash, password string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
