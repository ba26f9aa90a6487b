package directory

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"staff_store/internal/domain"
	"staff_store/internal/username"
)

// Attribute defaults for Active Directory
const (
	DefaultUsernameAttribute    = "sAMAccountName"
	DefaultDisplayNameAttribute = "displayName"
	DefaultEmailAttribute       = "mail"
)

// ServiceAccount binds as a service identity, searches for the user, then rebinds as the user.
type ServiceAccount struct {
	cfg  *domain.DirectoryConfig
	dial Dialer
}

// NewServiceAccount creates a ServiceAccount authenticator
func NewServiceAccount(cfg *domain.DirectoryConfig, dial Dialer) *ServiceAccount {
	return &ServiceAccount{cfg: cfg, dial: dial}
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// SearchFilter returns the filter used to find key under the search root.
func SearchFilter(cfg *domain.DirectoryConfig, key string) string {
	attr := orDefault(cfg.UsernameAttribute, DefaultUsernameAttribute)
	return fmt.Sprintf("(&(%s=%s)%s)", attr, ldap.EscapeFilter(key), cfg.UserFilter)
}

// bindService binds with the configured service identity.
// A rejected service credential is a configuration fault, never a verdict on the user.
func (s *ServiceAccount) bindService(session Session) error {
	if err := session.Bind(s.cfg.ServiceBindDN, s.cfg.ServiceBindPassword); err != nil {
		classified := classify(err)
		if errors.Is(classified, ErrInvalidCredentials) {
			return errors.Wrap(ErrUnreachable, "service account bind rejected")
		}
		return classified
	}
	return nil
}

// AttemptBind searches for the user by normalized key and rebinds as the found entry.
func (s *ServiceAccount) AttemptBind(ctx context.Context, rawUsername, password string) (*BindResult, error) {
	key := username.Normalize(rawUsername)
	if password == "" || key == "" {
		return nil, ErrInvalidCredentials
	}
	session, err := s.dial(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	defer session.Close()
	if err := s.bindService(session); err != nil {
		return nil, err
	}

	displayAttr := orDefault(s.cfg.DisplayNameAttribute, DefaultDisplayNameAttribute)
	emailAttr := orDefault(s.cfg.EmailAttribute, DefaultEmailAttribute)
	base := orDefault(s.cfg.SearchBaseDN, s.cfg.UserBaseDN)
	timeLimit := int(effectiveTimeout(ctx, s.cfg).Seconds())
	req := ldap.NewSearchRequest(
		base,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		2, // two entries are enough to detect ambiguity
		timeLimit,
		false,
		SearchFilter(s.cfg, key),
		[]string{displayAttr, emailAttr},
		nil,
	)
	result, err := session.Search(req)
	if err != nil && !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) {
		classified := classify(err)
		if errors.Is(classified, ErrInvalidCredentials) {
			// No such object and friends: the search root does not hold this user
			return nil, ErrUserNotFound
		}
		return nil, classified
	}
	if result == nil || len(result.Entries) != 1 {
		count := 0
		if result != nil {
			count = len(result.Entries)
		}
		if count > 1 {
			logrus.WithFields(logrus.Fields{
				"username": key,
				"entries":  count,
			}).Warn("Directory search is ambiguous")
		}
		return nil, ErrUserNotFound
	}

	entry := result.Entries[0]
	if err := session.Bind(entry.DN, password); err != nil {
		return nil, classify(err)
	}
	attributes := make(map[string][]string, len(entry.Attributes))
	for _, attr := range entry.Attributes {
		attributes[attr.Name] = attr.Values
	}
	return &BindResult{
		DN:          entry.DN,
		Username:    key,
		DisplayName: entry.GetAttributeValue(displayAttr),
		Email:       entry.GetAttributeValue(emailAttr),
		Attributes:  attributes,
	}, nil
}
