// Package admin implements the store's privileged operations. Every method takes the
// caller's username and re-checks admin status through authz before touching data.
package admin

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"staff_store/internal/authz"
	"staff_store/internal/db"
	"staff_store/internal/domain"
	"staff_store/internal/utils"
)

var (
	// ErrNotFound means the target user or item does not exist.
	ErrNotFound = errors.New("admin: not found")
	// ErrAlreadyExists means a user or item with that key already exists.
	ErrAlreadyExists = errors.New("admin: already exists")
	// ErrFallbackProtected means the operation would delete or demote the fallback admin.
	ErrFallbackProtected = errors.New("admin: fallback admin is protected")
	// ErrInvalidInput means the request values are out of range.
	ErrInvalidInput = errors.New("admin: invalid input")
)

// ConnectionTester checks that the directory is reachable
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// Service performs admin operations
type Service struct {
	db        *gorm.DB
	directory *db.DirectoryConfigStore
	tester    ConnectionTester
	cache     *redis.Client
}

// NewService returns a Service. rdb may be nil when caching is disabled.
func NewService(gdb *gorm.DB, tester ConnectionTester, rdb *redis.Client) *Service {
	return &Service{
		db:        gdb,
		directory: db.NewDirectoryConfigStore(gdb),
		tester:    tester,
		cache:     rdb,
	}
}

// authorize is the first call of every exported method
func (s *Service) authorize(ctx context.Context, caller string) (*domain.User, error) {
	return authz.RequireAdmin(ctx, s.db, caller)
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := utils.DeleteCache(ctx, s.cache, utils.CatalogCacheKey); err != nil {
		logrus.WithError(err).Warn("Failed to invalidate catalog cache")
	}
}

func invalid(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidInput, format, args...)
}

// ListOrders returns every order, newest first
func (s *Service) ListOrders(ctx context.Context, caller string) ([]domain.Order, error) {
	if _, err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	var orders []domain.Order
	if err := s.db.WithContext(ctx).Preload("Lines").Order("id desc").Find(&orders).Error; err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// Reconcile merges stored usernames that collide after normalization
func (s *Service) Reconcile(ctx context.Context, caller string) ([]db.MergeReport, error) {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return nil, err
	}
	reports, err := db.ReconcileUsernames(ctx, s.db)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"actor":  actor.Username,
		"merged": len(reports),
	}).Info("Username reconciliation finished")
	return reports, nil
}
