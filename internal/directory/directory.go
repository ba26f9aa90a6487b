// Package directory authenticates users against an external LDAP directory.
//
// Two variants implement Authenticator: SimpleBind, where the bind itself is the
// authentication, and ServiceAccount, which searches for the user with a fixed
// service identity before rebinding as the user. Configured picks the variant from
// the persisted directory record on every call.
package directory

import (
	"context"
	stderrors "errors"
	"net"
	"strings"

	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidCredentials means the directory rejected the user's password.
	ErrInvalidCredentials = errors.New("directory: invalid credentials")
	// ErrUserNotFound means the service-account search found no unique entry.
	ErrUserNotFound = errors.New("directory: user not found")
	// ErrUnreachable means the directory could not be reached or refused to serve.
	ErrUnreachable = errors.New("directory: server unreachable")
	// ErrTimeout means the directory did not answer within the configured timeout.
	ErrTimeout = errors.New("directory: timeout")
	// ErrDisabled means directory authentication is switched off.
	ErrDisabled = errors.New("directory: disabled")
)

// BindResult describes a successful directory authentication.
type BindResult struct {
	DN          string              // Distinguished name (or bind identity) that was accepted
	Username    string              // Normalized username
	DisplayName string              // Display name attribute, if known
	Email       string              // Mail attribute, if known
	Attributes  map[string][]string // Raw attributes returned by a search
}

// Authenticator performs one bind round trip for a user.
type Authenticator interface {
	AttemptBind(ctx context.Context, rawUsername, password string) (*BindResult, error)
}

// IsInfrastructure reports whether err is a network fault rather than a verdict on the credentials.
func IsInfrastructure(err error) bool {
	return errors.Is(err, ErrUnreachable) || errors.Is(err, ErrTimeout)
}

// outcome is the metrics label for a bind result.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrUserNotFound):
		return "not_found"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "unreachable"
	}
}

// classify maps an LDAP or network error onto the package's failure taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(ErrTimeout, err.Error())
	}
	var ldapErr *ldap.Error
	if !stderrors.As(err, &ldapErr) {
		return errors.Wrap(ErrUnreachable, err.Error())
	}
	switch ldapErr.ResultCode {
	case ldap.LDAPResultInvalidCredentials:
		return ErrInvalidCredentials
	case ldap.LDAPResultTimeLimitExceeded, ldap.LDAPResultTimeout:
		return errors.Wrap(ErrTimeout, err.Error())
	case ldap.LDAPResultBusy, ldap.LDAPResultUnavailable, ldap.LDAPResultServerDown, ldap.ErrorNetwork:
		if msg := strings.ToLower(err.Error()); strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout") {
			return errors.Wrap(ErrTimeout, err.Error())
		}
		return errors.Wrap(ErrUnreachable, err.Error())
	}
	if ldapErr.ResultCode > ldap.LDAPResultServerDown {
		// Client side failures (decoding, filter compile, closed connection)
		return errors.Wrap(ErrUnreachable, err.Error())
	}
	// Any other server verdict on the bind (locked, expired, unwilling) is a rejection
	return errors.Wrap(ErrInvalidCredentials, err.Error())
}
