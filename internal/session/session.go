// Package session issues and verifies signed login sessions.
package session

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"staff_store/internal/identity"
)

var (
	// ErrInvalidToken covers malformed, tampered and expired tokens.
	ErrInvalidToken = errors.New("session: invalid token")
	// ErrRevoked means the token was logged out before it expired.
	ErrRevoked = errors.New("session: token revoked")
)

// Claims carried by a session token. IsAdmin is informational; privileged
// operations always re-read the user row.
type Claims struct {
	UserID   uint   `json:"uid"`       // User row id
	Username string `json:"username"`  // Normalized username
	IsAdmin  bool   `json:"is_admin"`  // Admin flag at issue time
	UserType string `json:"user_type"` // local or directory
	jwt.RegisteredClaims
}

// RevocationStore remembers revoked token ids until they would have expired anyway
type RevocationStore interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Issuer signs and verifies HS256 session tokens
type Issuer struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationStore
	now     func() time.Time
}

// NewIssuer returns an Issuer. A nil store keeps revocations in memory.
func NewIssuer(secret string, ttl time.Duration, store RevocationStore) *Issuer {
	if store == nil {
		store = NewMemoryRevocationStore()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, revoked: store, now: time.Now}
}

// Issue creates a token for p and returns it with its expiry
func (i *Issuer) Issue(p identity.Principal) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := Claims{
		UserID:   p.UserID,
		Username: p.Username,
		IsAdmin:  p.IsAdmin,
		UserType: p.UserType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "sign session token")
	}
	return signed, expiresAt, nil
}

// Parse verifies signature, algorithm, expiry and revocation
func (i *Issuer) Parse(ctx context.Context, tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.ID == "" || claims.Username == "" {
		return nil, ErrInvalidToken
	}
	revoked, err := i.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, errors.Wrap(err, "check token revocation")
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

// Revoke invalidates a valid token for the rest of its lifetime
func (i *Issuer) Revoke(ctx context.Context, tokenStr string) error {
	claims, err := i.Parse(ctx, tokenStr)
	if errors.Is(err, ErrRevoked) {
		return nil
	}
	if err != nil {
		return err
	}
	ttl := claims.ExpiresAt.Time.Sub(i.now())
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(i.revoked.Revoke(ctx, claims.ID, ttl), "revoke session token")
}
