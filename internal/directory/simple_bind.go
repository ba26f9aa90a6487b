package directory

import (
	"context"
	"strings"

	"staff_store/internal/domain"
	"staff_store/internal/username"
)

// DefaultBindPattern is used when the record does not configure one.
const DefaultBindPattern = "{username}@{domain}"

// dnSpecial are characters that would change the structure of a bind DN.
const dnSpecial = `,=+<>#;"`

// SimpleBind authenticates by binding directly with an identity built from a pattern.
type SimpleBind struct {
	cfg  *domain.DirectoryConfig
	dial Dialer
}

// NewSimpleBind creates a SimpleBind authenticator
func NewSimpleBind(cfg *domain.DirectoryConfig, dial Dialer) *SimpleBind {
	return &SimpleBind{cfg: cfg, dial: dial}
}

// BindIdentity substitutes the user into the configured pattern.
// Supported placeholders: {username}, {domain}, {user_base_dn}.
func BindIdentity(cfg *domain.DirectoryConfig, rawUsername string) string {
	pattern := cfg.BindPattern
	if pattern == "" {
		pattern = DefaultBindPattern
	}
	return strings.NewReplacer(
		"{username}", username.Local(rawUsername),
		"{domain}", cfg.Domain,
		"{user_base_dn}", cfg.UserBaseDN,
	).Replace(pattern)
}

// AttemptBind binds as the user; a successful bind is the authentication.
func (s *SimpleBind) AttemptBind(ctx context.Context, rawUsername, password string) (*BindResult, error) {
	local := username.Local(rawUsername)
	// An empty password would be an unauthenticated bind, which servers accept
	if password == "" || local == "" || strings.ContainsAny(local, dnSpecial) {
		return nil, ErrInvalidCredentials
	}
	identity := BindIdentity(s.cfg, rawUsername)
	session, err := s.dial(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	if err := session.Bind(identity, password); err != nil {
		return nil, classify(err)
	}
	email := ""
	if s.cfg.Domain != "" {
		email = local + "@" + s.cfg.Domain
	}
	return &BindResult{
		DN:       identity,
		Username: username.Normalize(rawUsername),
		Email:    email,
	}, nil
}
