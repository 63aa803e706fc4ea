package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pmds/internal/domain/auth"
)

const testSecret = "test-secret"

type stubSessions struct {
	active bool
	err    error
	calls  int
}

func (s *stubSessions) SessionActive(_ context.Context, _ *auth.Claims) (bool, error) {
	s.calls++
	return s.active, s.err
}

func signedToken(t *testing.T, claims auth.Claims) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, claims, time.Hour)
	if err != nil {
		t.Fatalf("token error: %v", err)
	}
	return token
}

// authenticate runs Auth and reports the user the downstream handler saw.
func authenticate(t *testing.T, sessions SessionChecker, header string) (auth.UserContext, bool, int) {
	t.Helper()
	var (
		seen auth.UserContext
		ok   bool
	)
	handler := Auth(testSecret, sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, ok = GetUser(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return seen, ok, rec.Code
}

func TestAuthMiddlewareSetsUser(t *testing.T) {
	token := signedToken(t, auth.Claims{UserID: "u1", TenantID: "t1", RoleID: "r1", RoleName: auth.RoleHR})
	user, ok, _ := authenticate(t, nil, "bearer "+token)
	if !ok || user.UserID != "u1" || user.RoleName != auth.RoleHR {
		t.Fatalf("unexpected user: %+v ok=%v", user, ok)
	}
}

func TestAuthMiddlewareLeavesAnonymous(t *testing.T) {
	token := signedToken(t, auth.Claims{UserID: "u1"})
	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer not-a-jwt", "Token " + token} {
		if _, ok, code := authenticate(t, nil, header); ok || code != http.StatusNoContent {
			t.Fatalf("header %q: expected anonymous pass-through, got ok=%v code=%d", header, ok, code)
		}
	}
}

func TestAuthMiddlewareIgnoresRevokedSession(t *testing.T) {
	sessions := &stubSessions{active: false}
	token := signedToken(t, auth.Claims{UserID: "u1", TenantID: "t1", SessionID: "s1"})
	if _, ok, _ := authenticate(t, sessions, "Bearer "+token); ok {
		t.Fatal("revoked session must not authenticate")
	}
	if sessions.calls != 1 {
		t.Fatalf("expected one session lookup, got %d", sessions.calls)
	}
}

func TestAuthMiddlewareSessionLookupFailure(t *testing.T) {
	token := signedToken(t, auth.Claims{UserID: "u1", TenantID: "t1", SessionID: "s1"})
	if _, _, code := authenticate(t, &stubSessions{err: errors.New("db down")}, "Bearer "+token); code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", code)
	}
}

func TestAuthMiddlewareCarriesImpersonator(t *testing.T) {
	token := signedToken(t, auth.Claims{UserID: "u2", TenantID: "t1", SessionID: "s1", ImpersonatorID: "admin"})
	user, ok, _ := authenticate(t, &stubSessions{active: true}, "Bearer "+token)
	if !ok || !user.Impersonating() || user.ImpersonatorID != "admin" {
		t.Fatalf("expected impersonated user, got %+v", user)
	}
}
