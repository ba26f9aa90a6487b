package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"staff_store/internal/identity"
)

func testPrincipal() identity.Principal {
	return identity.Principal{UserID: 7, Username: "alice", UserType: "directory", IsAdmin: true}
}

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, nil)
	token, expiresAt, err := issuer.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}
	claims, err := issuer.Parse(context.Background(), token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Username != "alice" || claims.UserID != 7 || !claims.IsAdmin || claims.UserType != "directory" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if claims.ID == "" {
		t.Fatalf("expected a token id")
	}
}

func TestParse_Expired(t *testing.T) {
	issuer := NewIssuer("secret", time.Minute, nil)
	issued := time.Now().Add(-2 * time.Hour)
	issuer.now = func() time.Time { return issued }
	token, _, err := issuer.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	issuer.now = time.Now
	if _, err := issuer.Parse(context.Background(), token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParse_WrongSecret(t *testing.T) {
	token, _, err := NewIssuer("secret", time.Hour, nil).Issue(testPrincipal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewIssuer("other", time.Hour, nil).Parse(context.Background(), token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParse_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		Username: "alice",
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "x",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := NewIssuer("secret", time.Hour, nil).Parse(context.Background(), token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestParse_Garbage(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, nil)
	for _, token := range []string{"", "abc", strings.Repeat("a.", 3)} {
		if _, err := issuer.Parse(context.Background(), token); err != ErrInvalidToken {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestRevoke(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, nil)
	ctx := context.Background()
	token, _, err := issuer.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	other, _, err := issuer.Issue(testPrincipal())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := issuer.Revoke(ctx, token); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := issuer.Parse(ctx, token); err != ErrRevoked {
		t.Fatalf("expected ErrRevoked, got %v", err)
	}
	if err := issuer.Revoke(ctx, token); err != nil {
		t.Fatalf("second revoke should be a no-op, got %v", err)
	}
	if _, err := issuer.Parse(ctx, other); err != nil {
		t.Fatalf("other sessions must stay valid, got %v", err)
	}
}

func TestMemoryRevocationStore_Expires(t *testing.T) {
	store := NewMemoryRevocationStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()
	if err := store.Revoke(ctx, "jti", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if revoked, _ := store.IsRevoked(ctx, "jti"); !revoked {
		t.Fatalf("expected jti to be revoked")
	}
	now = now.Add(2 * time.Minute)
	if revoked, _ := store.IsRevoked(ctx, "jti"); revoked {
		t.Fatalf("expected revocation to lapse")
	}
}
