package admin

import (
	"context"

	"github.com/sirupsen/logrus"

	"staff_store/internal/domain"
)

// DirectoryConfig returns the stored directory record; the service password is never serialized
func (s *Service) DirectoryConfig(ctx context.Context, caller string) (*domain.DirectoryConfig, error) {
	if _, err := s.authorize(ctx, caller); err != nil {
		return nil, err
	}
	cfg, err := s.directory.DirectoryConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &domain.DirectoryConfig{Mode: domain.DirectoryModeSimpleBind}
	}
	return cfg, nil
}

func validateDirectory(cfg *domain.DirectoryConfig) error {
	if cfg.Mode == "" {
		cfg.Mode = domain.DirectoryModeSimpleBind
	}
	if cfg.Mode != domain.DirectoryModeSimpleBind && cfg.Mode != domain.DirectoryModeServiceAccount {
		return invalid("unknown directory mode %q", cfg.Mode)
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return invalid("port out of range")
	}
	if cfg.TimeoutSeconds < 0 {
		return invalid("timeout must not be negative")
	}
	if cfg.UseTLS && cfg.StartTLS {
		return invalid("use_tls and start_tls are exclusive")
	}
	if !cfg.Enabled {
		return nil
	}
	if cfg.Host == "" {
		return invalid("host is required when the directory is enabled")
	}
	if cfg.Mode == domain.DirectoryModeServiceAccount && (cfg.ServiceBindDN == "" || cfg.SearchBaseDN == "") {
		return invalid("service account mode needs service_bind_dn and search_base_dn")
	}
	return nil
}

// UpdateDirectoryConfig replaces the directory record. It applies to the next login.
func (s *Service) UpdateDirectoryConfig(ctx context.Context, caller string, cfg domain.DirectoryConfig) (*domain.DirectoryConfig, error) {
	actor, err := s.authorize(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := validateDirectory(&cfg); err != nil {
		return nil, err
	}
	saved, err := s.directory.Save(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"actor":   actor.Username,
		"enabled": saved.Enabled,
		"mode":    saved.Mode,
		"host":    saved.Host,
	}).Info("Directory configuration updated")
	return saved, nil
}

// TestDirectory checks that the configured directory answers
func (s *Service) TestDirectory(ctx context.Context, caller string) error {
	if _, err := s.authorize(ctx, caller); err != nil {
		return err
	}
	return s.tester.TestConnection(ctx)
}
