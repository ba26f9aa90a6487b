package authz

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"staff_store/internal/db/dbtest"
)

func TestRequireAdmin(t *testing.T) {
	gdb := dbtest.Open(t)
	dbtest.User(t, gdb, "boss", 0, dbtest.Admin)
	dbtest.User(t, gdb, "staff", 0)
	dbtest.User(t, gdb, "retired", 0, dbtest.Admin, dbtest.Inactive)

	tests := []struct {
		caller string
		ok     bool
	}{
		{"boss", true},
		{"BOSS@corp.com", true},
		{"staff", false},
		{"retired", false},
		{"nobody", false},
		{"", false},
	}
	for _, tt := range tests {
		user, err := RequireAdmin(context.Background(), gdb, tt.caller)
		if tt.ok {
			if err != nil || user.Username != "boss" {
				t.Fatalf("%q: expected admin, got %v", tt.caller, err)
			}
			continue
		}
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("%q: expected ErrForbidden, got %v", tt.caller, err)
		}
	}
}

func TestRequireAdmin_ReadsCurrentRow(t *testing.T) {
	gdb := dbtest.Open(t)
	boss := dbtest.User(t, gdb, "boss", 0, dbtest.Admin)
	if _, err := RequireAdmin(context.Background(), gdb, "boss"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gdb.Model(boss).Update("is_admin", false)
	if _, err := RequireAdmin(context.Background(), gdb, "boss"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected demotion to apply immediately, got %v", err)
	}
}
