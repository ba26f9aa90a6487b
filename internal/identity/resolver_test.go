package identity

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"staff_store/internal/db"
	"staff_store/internal/db/dbtest"
	"staff_store/internal/directory"
	"staff_store/internal/domain"
)

// stubDirectory answers every bind with the same result
type stubDirectory struct {
	result  *directory.BindResult
	err     error
	calls   int
	lastRaw string
}

func (s *stubDirectory) AttemptBind(_ context.Context, rawUsername, _ string) (*directory.BindResult, error) {
	s.calls++
	s.lastRaw = rawUsername
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func okDirectory(name string) *stubDirectory {
	return &stubDirectory{result: &directory.BindResult{Username: name, DisplayName: "Alice Example", Email: "alice@corp.com"}}
}

func setup(t *testing.T, dir directory.Authenticator) (*Resolver, *gorm.DB) {
	t.Helper()
	gdb := dbtest.Open(t)
	if _, err := db.SeedFallbackAdmin(context.Background(), gdb, "fallback_admin", "emergency", 1000); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return NewResolver(gdb, dir, "fallback_admin"), gdb
}

func TestResolve_FallbackIgnoresDirectory(t *testing.T) {
	dir := &stubDirectory{err: directory.ErrUnreachable}
	r, _ := setup(t, dir)

	p, err := r.Resolve(context.Background(), "FALLBACK_ADMIN", "emergency")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !p.IsAdmin || p.Username != "fallback_admin" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if _, err := r.Resolve(context.Background(), "fallback_admin", "wrong"); !errors.Is(err, ErrAuthenticationRejected) {
		t.Fatalf("expected ErrAuthenticationRejected, got %v", err)
	}
	if dir.calls != 0 {
		t.Fatalf("directory must never be consulted for the fallback admin, got %d calls", dir.calls)
	}
}

func TestResolve_LocalUser(t *testing.T) {
	dir := &stubDirectory{err: directory.ErrUnreachable}
	r, gdb := setup(t, dir)
	lou := dbtest.User(t, gdb, "lou", 0, dbtest.WithPassword("pw"))

	p, err := r.Resolve(context.Background(), "Lou@corp.com", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != lou.ID || p.UserType != domain.UserTypeLocal {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if dbtest.Reload(t, gdb, lou.ID).LastLogin == nil {
		t.Fatalf("expected last_login to be recorded")
	}
	if _, err := r.Resolve(context.Background(), "lou", "bad"); !errors.Is(err, ErrAuthenticationRejected) {
		t.Fatalf("expected ErrAuthenticationRejected, got %v", err)
	}
	if dir.calls != 0 {
		t.Fatalf("local users never reach the directory")
	}
}

func TestResolve_RejectsEmptyAndInactive(t *testing.T) {
	dir := okDirectory("gone")
	r, gdb := setup(t, dir)
	dbtest.User(t, gdb, "gone", 0, dbtest.Directory, dbtest.Inactive)

	for _, tc := range [][2]string{{"", "pw"}, {"jo", ""}, {"gone", "pw"}} {
		if _, err := r.Resolve(context.Background(), tc[0], tc[1]); !errors.Is(err, ErrAuthenticationRejected) {
			t.Fatalf("%q: expected ErrAuthenticationRejected, got %v", tc[0], err)
		}
	}
	if dir.calls != 0 {
		t.Fatalf("expected no directory calls, got %d", dir.calls)
	}
}

func TestResolve_ProvisionsDirectoryUser(t *testing.T) {
	dir := okDirectory("alice")
	r, gdb := setup(t, dir)

	p, err := r.Resolve(context.Background(), "alice@corp.com", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Username != "alice" || p.IsAdmin || p.UserType != domain.UserTypeDirectory {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if dir.lastRaw != "alice@corp.com" {
		t.Fatalf("directory must receive the username as typed, got %q", dir.lastRaw)
	}
	var stored domain.User
	gdb.Where("username = ?", "alice").First(&stored)
	if stored.Balance != 0 || stored.Email != "alice@corp.com" || stored.DisplayName != "Alice Example" {
		t.Fatalf("unexpected stored user: %+v", stored)
	}
	var audits int64
	gdb.Model(&domain.AuditEvent{}).Where("username = ? AND action = ?", "alice", domain.AuditUserProvisioned).Count(&audits)
	if audits != 1 {
		t.Fatalf("expected one provisioning audit event, got %d", audits)
	}
}

func TestResolve_AdminFlagSurvivesDirectoryLogin(t *testing.T) {
	dir := okDirectory("alice")
	r, gdb := setup(t, dir)
	ctx := context.Background()

	first, err := r.Resolve(ctx, "alice@corp.com", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gdb.Model(&domain.User{}).Where("id = ?", first.UserID).Update("is_admin", true)

	second, err := r.Resolve(ctx, "ALICE", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.UserID != first.UserID || !second.IsAdmin {
		t.Fatalf("expected the same admin row, got %+v", second)
	}
	var count int64
	gdb.Model(&domain.User{}).Where("username = ?", "alice").Count(&count)
	if count != 1 {
		t.Fatalf("expected one row for alice, got %d", count)
	}
	if !dbtest.Reload(t, gdb, first.UserID).IsAdmin {
		t.Fatalf("directory sync must not reset is_admin")
	}
}

func TestResolve_DirectoryUnavailable(t *testing.T) {
	for _, cause := range []error{directory.ErrUnreachable, directory.ErrTimeout} {
		dir := &stubDirectory{err: cause}
		r, gdb := setup(t, dir)

		_, err := r.Resolve(context.Background(), "newbie", "pw")
		if !errors.Is(err, ErrDirectoryUnavailable) || !errors.Is(err, cause) {
			t.Fatalf("expected ErrDirectoryUnavailable wrapping %v, got %v", cause, err)
		}
		var count int64
		gdb.Model(&domain.User{}).Where("username = ?", "newbie").Count(&count)
		if count != 0 {
			t.Fatalf("no account may be created while the directory is down")
		}
		if dir.calls != 1 {
			t.Fatalf("expected exactly one bind attempt, got %d", dir.calls)
		}
	}
}

func TestResolve_DirectoryUserNoLocalFallback(t *testing.T) {
	dir := &stubDirectory{err: directory.ErrUnreachable}
	r, gdb := setup(t, dir)
	// A stale local hash on a directory user must never be consulted
	dbtest.User(t, gdb, "dana", 0, dbtest.Directory, dbtest.WithPassword("pw"))

	if _, err := r.Resolve(context.Background(), "dana", "pw"); !errors.Is(err, ErrDirectoryUnavailable) {
		t.Fatalf("expected ErrDirectoryUnavailable, got %v", err)
	}
	dir.err = directory.ErrInvalidCredentials
	if _, err := r.Resolve(context.Background(), "dana", "pw"); !errors.Is(err, ErrAuthenticationRejected) {
		t.Fatalf("expected ErrAuthenticationRejected, got %v", err)
	}
}

func TestResolve_RejectedVerdicts(t *testing.T) {
	for _, cause := range []error{directory.ErrInvalidCredentials, directory.ErrUserNotFound, directory.ErrDisabled} {
		r, gdb := setup(t, &stubDirectory{err: cause})
		if _, err := r.Resolve(context.Background(), "newbie", "pw"); !errors.Is(err, ErrAuthenticationRejected) {
			t.Fatalf("%v: expected ErrAuthenticationRejected, got %v", cause, err)
		}
		var count int64
		gdb.Model(&domain.User{}).Count(&count)
		if count != 1 { // only the fallback admin
			t.Fatalf("%v: expected no new rows, got %d users", cause, count)
		}
	}
}

func TestResolve_AdoptsSingleLegacySpelling(t *testing.T) {
	dir := okDirectory("carol")
	r, gdb := setup(t, dir)
	carol := dbtest.User(t, gdb, "Carol", 40, dbtest.Directory, dbtest.Admin)

	p, err := r.Resolve(context.Background(), "carol", "pw")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.UserID != carol.ID || p.Username != "carol" || !p.IsAdmin {
		t.Fatalf("expected the stored row to be reused, got %+v", p)
	}
	if dir.calls != 1 {
		t.Fatalf("expected one bind, got %d", dir.calls)
	}
	stored := dbtest.Reload(t, gdb, carol.ID)
	if stored.Username != "carol" || stored.Balance != 40 {
		t.Fatalf("unexpected stored row: %+v", stored)
	}
	var count int64
	gdb.Model(&domain.User{}).Count(&count)
	if count != 2 { // fallback admin and carol
		t.Fatalf("expected no new rows, got %d users", count)
	}
}

func TestResolve_AdoptedLocalUserChecksPassword(t *testing.T) {
	dir := okDirectory("dave")
	r, gdb := setup(t, dir)
	dbtest.User(t, gdb, "DAVE", 0, dbtest.WithPassword("secret"))

	if _, err := r.Resolve(context.Background(), "dave", "wrong"); !errors.Is(err, ErrAuthenticationRejected) {
		t.Fatalf("expected ErrAuthenticationRejected, got %v", err)
	}
	if _, err := r.Resolve(context.Background(), "Dave", "secret"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir.calls != 0 {
		t.Fatalf("local users never reach the directory")
	}
}

func TestResolve_DuplicateIdentity(t *testing.T) {
	dir := okDirectory("bob")
	r, gdb := setup(t, dir)
	dbtest.User(t, gdb, "Bob@corp.com", 10, dbtest.Directory)
	dbtest.User(t, gdb, "CORP\\Bob", 3, dbtest.Directory)

	if _, err := r.Resolve(context.Background(), "bob", "pw"); !errors.Is(err, ErrDuplicateIdentity) {
		t.Fatalf("expected ErrDuplicateIdentity, got %v", err)
	}
	if dir.calls != 0 {
		t.Fatalf("expected no bind before reconciliation")
	}

	if _, err := db.ReconcileUsernames(context.Background(), gdb); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, err := r.Resolve(context.Background(), "bob", "pw")
	if err != nil {
		t.Fatalf("unexpected error after reconciliation: %v", err)
	}
	if dbtest.Reload(t, gdb, p.UserID).Balance != 10 {
		t.Fatalf("expected the reconciled row to keep its balance")
	}
}
