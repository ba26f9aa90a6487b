package directory

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/pkg/errors"

	"staff_store/internal/domain"
)

// Session is one open directory connection.
type Session interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close()
}

// Dialer opens a Session for the given configuration.
type Dialer func(ctx context.Context, cfg *domain.DirectoryConfig) (Session, error)

type ldapSession struct {
	conn *ldap.Conn
}

func (s *ldapSession) Bind(username, password string) error {
	return s.conn.Bind(username, password)
}

func (s *ldapSession) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	return s.conn.Search(req)
}

func (s *ldapSession) Close() {
	s.conn.Close()
}

// effectiveTimeout bounds the configured timeout by the context deadline.
func effectiveTimeout(ctx context.Context, cfg *domain.DirectoryConfig) time.Duration {
	timeout := cfg.Timeout()
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	return timeout
}

// DialLDAP connects to the configured directory over TCP, TLS or StartTLS.
func DialLDAP(ctx context.Context, cfg *domain.DirectoryConfig) (Session, error) {
	if cfg.Host == "" {
		return nil, errors.Wrap(ErrUnreachable, "no directory host configured")
	}
	timeout := effectiveTimeout(ctx, cfg)
	if timeout <= 0 {
		return nil, errors.Wrap(ErrTimeout, "deadline exceeded before dial")
	}
	tlsConfig := &tls.Config{
		ServerName:         cfg.Host,
		InsecureSkipVerify: cfg.InsecureSkipVerify, // #nosec G402 -- operator controlled
		MinVersion:         tls.VersionTLS12,
	}
	conn, err := ldap.DialURL(
		cfg.Address(),
		ldap.DialWithDialer(&net.Dialer{Timeout: timeout}),
		ldap.DialWithTLSConfig(tlsConfig),
	)
	if err != nil {
		return nil, classify(err)
	}
	conn.SetTimeout(timeout)
	if cfg.StartTLS && !cfg.UseTLS {
		if err := conn.StartTLS(tlsConfig); err != nil {
			conn.Close()
			return nil, classify(err)
		}
	}
	return &ldapSession{conn: conn}, nil
}
