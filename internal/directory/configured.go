package directory

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"staff_store/internal/domain"
	"staff_store/internal/metrics"
)

// ConfigSource loads the persisted directory record.
type ConfigSource interface {
	DirectoryConfig(ctx context.Context) (*domain.DirectoryConfig, error)
}

// New returns the variant selected by cfg.Mode.
func New(cfg *domain.DirectoryConfig, dial Dialer) Authenticator {
	if cfg.Mode == domain.DirectoryModeServiceAccount {
		return NewServiceAccount(cfg, dial)
	}
	return NewSimpleBind(cfg, dial)
}

// Configured reads the directory record on each call and delegates to the matching variant.
type Configured struct {
	source ConfigSource
	dial   Dialer
}

// NewConfigured creates a Configured authenticator; dial defaults to DialLDAP.
func NewConfigured(source ConfigSource, dial Dialer) *Configured {
	if dial == nil {
		dial = DialLDAP
	}
	return &Configured{source: source, dial: dial}
}

func (c *Configured) load(ctx context.Context) (*domain.DirectoryConfig, error) {
	cfg, err := c.source.DirectoryConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load directory config")
	}
	if cfg == nil || !cfg.Enabled {
		return nil, ErrDisabled
	}
	return cfg, nil
}

// AttemptBind implements Authenticator.
func (c *Configured) AttemptBind(ctx context.Context, rawUsername, password string) (*BindResult, error) {
	cfg, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	result, err := New(cfg, c.dial).AttemptBind(ctx, rawUsername, password)
	metrics.DirectoryBindDuration.WithLabelValues(cfg.Mode, outcome(err)).Observe(time.Since(start).Seconds())
	return result, err
}

// TestConnection dials the directory and, in service-account mode, binds as the service identity.
func (c *Configured) TestConnection(ctx context.Context) error {
	cfg, err := c.load(ctx)
	if err != nil {
		return err
	}
	session, err := c.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer session.Close()
	if cfg.Mode == domain.DirectoryModeServiceAccount {
		return NewServiceAccount(cfg, c.dial).bindService(session)
	}
	return nil
}
