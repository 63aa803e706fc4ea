package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

type fakeStore struct {
	users       map[string]AuthUser
	sessions    map[string]string
	revoked     map[string]bool
	resets      map[string]string
	rolePerms   map[string][]string
	permLookups int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    map[string]AuthUser{},
		sessions: map[string]string{},
		revoked:  map[string]bool{},
		resets:   map[string]string{},
	}
}

func (f *fakeStore) FindActiveUserByLogin(ctx context.Context, login string) (AuthUser, error) {
	u, ok := f.users[login]
	if !ok {
		return AuthUser{}, pgx.ErrNoRows
	}
	return u, nil
}

func (f *fakeStore) FindActiveUserByID(ctx context.Context, tenantID, userID string) (AuthUser, error) {
	for _, u := range f.users {
		if u.ID == userID && u.TenantID == tenantID {
			return u, nil
		}
	}
	return AuthUser{}, pgx.ErrNoRows
}

func (f *fakeStore) RolePermissions(ctx context.Context, roleID string) ([]string, error) {
	f.permLookups++
	return f.rolePerms[roleID], nil
}

func (f *fakeStore) CreateSession(ctx context.Context, userID, hash string, expires time.Time) error {
	f.sessions[hash] = userID
	return nil
}

func (f *fakeStore) TouchLastLogin(ctx context.Context, userID string) error { return nil }

func (f *fakeStore) SessionValid(ctx context.Context, userID, hash string) (bool, error) {
	owner, ok := f.sessions[hash]
	return ok && owner == userID && !f.revoked[hash], nil
}

func (f *fakeStore) RotateSession(ctx context.Context, userID, oldHash, newHash string, expires time.Time) error {
	if owner, ok := f.sessions[oldHash]; !ok || owner != userID || f.revoked[oldHash] {
		return pgx.ErrNoRows
	}
	delete(f.sessions, oldHash)
	f.sessions[newHash] = userID
	return nil
}

func (f *fakeStore) RevokeSession(ctx context.Context, userID, hash string) error {
	f.revoked[hash] = true
	return nil
}

func (f *fakeStore) StoreMFASecret(ctx context.Context, userID string, sealed []byte) error {
	return nil
}

func (f *fakeStore) MFASecret(ctx context.Context, userID string) ([]byte, error) {
	return nil, nil
}

func (f *fakeStore) SetMFAEnabled(ctx context.Context, userID string, enabled bool) error {
	return nil
}

func (f *fakeStore) CreatePasswordReset(ctx context.Context, email, tokenHash string, expires time.Time) (bool, error) {
	u, ok := f.users[email]
	if !ok {
		return false, nil
	}
	f.resets[tokenHash] = u.ID
	return true, nil
}

func (f *fakeStore) ConsumePasswordReset(ctx context.Context, tokenHash, passwordHash string) error {
	userID, ok := f.resets[tokenHash]
	if !ok {
		return pgx.ErrNoRows
	}
	delete(f.resets, tokenHash)
	for email, u := range f.users {
		if u.ID == userID {
			u.Password = passwordHash
			f.users[email] = u
		}
	}
	for hash, owner := range f.sessions {
		if owner == userID {
			f.revoked[hash] = true
		}
	}
	return nil
}

func seedUser(t *testing.T, store *fakeStore, id, email, role, password string) AuthUser {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	u := AuthUser{ID: id, TenantID: "t1", RoleID: "r-" + role, RoleName: role, Password: hash}
	store.users[email] = u
	return u
}

func TestAuthenticate(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "u1", "hr@example.com", RoleHR, "Secret123")
	svc := NewService(store, nil, "secret")

	if _, err := svc.Authenticate(context.Background(), "hr@example.com", "Secret123", ""); err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "hr@example.com", "nope", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "ghost@example.com", "Secret123", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
}

func TestAuthenticateRequiresMFACode(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, "u1", "hr@example.com", RoleHR, "Secret123")
	u.MFAEnabled = true
	store.users["hr@example.com"] = u
	svc := NewService(store, nil, "secret")

	if _, err := svc.Authenticate(context.Background(), "hr@example.com", "Secret123", ""); !errors.Is(err, ErrMFARequired) {
		t.Fatalf("expected mfa required, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	store := newFakeStore()
	u := seedUser(t, store, "u1", "emp@example.com", RoleEmployee, "Secret123")
	svc := NewService(store, nil, "secret")
	ctx := context.Background()

	session, err := svc.IssueSession(ctx, u, "")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	claims, err := ParseToken("secret", session.Token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	active, err := svc.SessionActive(ctx, claims)
	if err != nil || !active {
		t.Fatalf("expected active session, got %v %v", active, err)
	}

	refreshed, err := svc.Refresh(ctx, claims)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if active, _ := svc.SessionActive(ctx, claims); active {
		t.Fatal("expected rotated session to be inactive")
	}
	next, err := ParseToken("secret", refreshed)
	if err != nil {
		t.Fatalf("parse refreshed: %v", err)
	}
	if err := svc.Logout(ctx, next.Context()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if active, _ := svc.SessionActive(ctx, next); active {
		t.Fatal("expected session revoked after logout")
	}
}

func TestImpersonationRoundTrip(t *testing.T) {
	store := newFakeStore()
	admin := seedUser(t, store, "admin", "admin@example.com", RoleSystemAdmin, "Secret123")
	seedUser(t, store, "emp", "emp@example.com", RoleEmployee, "Secret123")
	svc := NewService(store, nil, "secret")
	ctx := context.Background()

	adminSession, err := svc.IssueSession(ctx, admin, "")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	adminClaims, _ := ParseToken("secret", adminSession.Token)

	if _, err := svc.StartImpersonation(ctx, adminClaims.Context(), "admin"); !errors.Is(err, ErrImpersonateSelf) {
		t.Fatalf("expected self impersonation refused, got %v", err)
	}

	asEmp, err := svc.StartImpersonation(ctx, adminClaims.Context(), "emp")
	if err != nil {
		t.Fatalf("start impersonation: %v", err)
	}
	empClaims, _ := ParseToken("secret", asEmp.Token)
	if empClaims.UserID != "emp" || empClaims.ImpersonatorID != "admin" || empClaims.RoleName != RoleEmployee {
		t.Fatalf("unexpected impersonated claims: %+v", empClaims)
	}

	if _, err := svc.StartImpersonation(ctx, empClaims.Context(), "admin"); !errors.Is(err, ErrImpersonateNested) {
		t.Fatalf("expected nested impersonation refused, got %v", err)
	}

	back, err := svc.StopImpersonation(ctx, empClaims.Context())
	if err != nil {
		t.Fatalf("stop impersonation: %v", err)
	}
	backClaims, _ := ParseToken("secret", back.Token)
	if backClaims.UserID != "admin" || backClaims.ImpersonatorID != "" {
		t.Fatalf("expected original admin token, got %+v", backClaims)
	}
	if _, err := svc.StopImpersonation(ctx, backClaims.Context()); !errors.Is(err, ErrNotImpersonating) {
		t.Fatalf("expected not impersonating, got %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	store := newFakeStore()
	seedUser(t, store, "u1", "emp@example.com", RoleEmployee, "Secret123")
	svc := NewService(store, nil, "secret")
	ctx := context.Background()

	token, err := svc.RequestPasswordReset(ctx, "emp@example.com")
	if err != nil || token == "" {
		t.Fatalf("expected reset token, got %q %v", token, err)
	}
	if unknown, err := svc.RequestPasswordReset(ctx, "nobody@example.com"); err != nil || unknown != "" {
		t.Fatalf("expected silent no-op for unknown email, got %q %v", unknown, err)
	}
	if err := svc.ResetPassword(ctx, token, "short"); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("expected weak password error, got %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "Stronger123"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "emp@example.com", "Stronger123", ""); err != nil {
		t.Fatalf("expected new password to work, got %v", err)
	}
	if err := svc.ResetPassword(ctx, token, "Another456"); !errors.Is(err, ErrResetTokenInvalid) {
		t.Fatalf("expected spent token to be refused, got %v", err)
	}
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "valid password", password: "Stronger123"},
		{name: "too short", password: "S1hort", wantErr: true},
		{name: "missing uppercase", password: "longpassword1", wantErr: true},
		{name: "missing lowercase", password: "LONGPASSWORD1", wantErr: true},
		{name: "missing number", password: "LongPassword", wantErr: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			if tc.wantErr && err == nil {
				t.Fatal("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestHasPermissionCachesRoleSet(t *testing.T) {
	store := newFakeStore()
	store.rolePerms = map[string][]string{"role-hr": {PermAgreementsRead, PermUsersWrite}}
	svc := NewService(store, nil, "secret")
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	ok, err := svc.HasPermission(context.Background(), "role-hr", PermUsersWrite)
	if err != nil || !ok {
		t.Fatalf("expected users.write to be granted, got %v %v", ok, err)
	}
	ok, err = svc.HasPermission(context.Background(), "role-hr", PermAuditRead)
	if err != nil || ok {
		t.Fatalf("expected audit.read to be denied, got %v %v", ok, err)
	}
	if store.permLookups != 1 {
		t.Fatalf("expected one store lookup while cached, got %d", store.permLookups)
	}

	now = now.Add(permissionTTL + time.Second)
	if _, err := svc.HasPermission(context.Background(), "role-hr", PermUsersWrite); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.permLookups != 2 {
		t.Fatalf("expected cache refresh after ttl, got %d lookups", store.permLookups)
	}

	perms, err := svc.Permissions(context.Background(), "role-hr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(perms) != 2 || perms[0] > perms[1] {
		t.Fatalf("expected sorted permissions, got %v", perms)
	}
}
