package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"staff_store/internal/db/dbtest"
	"staff_store/internal/identity"
	"staff_store/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubParser struct {
	claims *session.Claims
	err    error
}

func (s stubParser) Parse(context.Context, string) (*session.Claims, error) {
	return s.claims, s.err
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuthMiddleware_ValidToken(t *testing.T) {
	issuer := session.NewIssuer("secret", time.Hour, nil)
	token, _, err := issuer.Issue(identity.Principal{UserID: 3, Username: "alice"})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	r := gin.New()
	r.GET("/", JWTAuthMiddleware(issuer), func(c *gin.Context) {
		if c.GetString(ContextUsername) != "alice" || c.GetUint(ContextUserID) != 3 || c.GetString(ContextToken) != token {
			t.Fatalf("identity not set in context")
		}
		c.Status(http.StatusOK)
	})

	if rec := serve(r, "Bearer "+token); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestJWTAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
		parser stubParser
		want   int
	}{
		{"missing header", "", stubParser{}, http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", stubParser{}, http.StatusUnauthorized},
		{"invalid token", "Bearer abc", stubParser{err: session.ErrInvalidToken}, http.StatusUnauthorized},
		{"revoked token", "Bearer abc", stubParser{err: session.ErrRevoked}, http.StatusUnauthorized},
		{"store down", "Bearer abc", stubParser{err: errors.New("redis down")}, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		r := gin.New()
		r.GET("/", JWTAuthMiddleware(tt.parser), func(c *gin.Context) {
			t.Fatalf("%s: handler must not run", tt.name)
		})
		if rec := serve(r, tt.header); rec.Code != tt.want {
			t.Fatalf("%s: expected %d, got %d", tt.name, tt.want, rec.Code)
		}
	}
}

func TestAdminOnlyMiddleware(t *testing.T) {
	gdb := dbtest.Open(t)
	dbtest.User(t, gdb, "boss", 0, dbtest.Admin)
	dbtest.User(t, gdb, "staff", 0)

	tests := []struct {
		caller string
		want   int
	}{
		{"boss", http.StatusOK},
		{"staff", http.StatusForbidden},
		{"", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		r := gin.New()
		r.GET("/", func(c *gin.Context) {
			if tt.caller != "" {
				c.Set(ContextUsername, tt.caller)
			}
		}, AdminOnlyMiddleware(gdb), func(c *gin.Context) {
			c.Status(http.StatusOK)
		})
		if rec := serve(r, ""); rec.Code != tt.want {
			t.Fatalf("%q: expected %d, got %d", tt.caller, tt.want, rec.Code)
		}
	}
}
