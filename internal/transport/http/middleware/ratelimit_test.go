package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"pmds/internal/domain/auth"
)

type call struct {
	method string
	path   string
	ip     string
	userID string
	body   string
}

func noContent(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func (p call) send(h http.Handler) *httptest.ResponseRecorder {
	method := p.method
	if method == "" {
		method = http.MethodPost
	}
	req := httptest.NewRequest(method, p.path, strings.NewReader(p.body))
	if p.body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if p.ip != "" {
		req.RemoteAddr = p.ip + ":4000"
	}
	if p.userID != "" {
		req = req.WithContext(WithUser(req.Context(), auth.UserContext{TenantID: "tenant-1", UserID: p.userID}))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func expectCodes(t *testing.T, h http.Handler, calls []call, want []int) {
	t.Helper()
	for i, p := range calls {
		if got := p.send(h).Code; got != want[i] {
			t.Fatalf("request %d (%s %s): expected %d, got %d", i+1, p.method, p.path, want[i], got)
		}
	}
}

func TestRateLimitKeysOnActorAcrossAddresses(t *testing.T) {
	limited := RateLimit(1, time.Minute)(http.HandlerFunc(noContent))
	submit := "/api/v1/agreements/a1/transitions/submit"
	expectCodes(t, limited, []call{
		{path: submit, ip: "198.51.100.11", userID: "user-1"},
		{path: submit, ip: "198.51.100.12", userID: "user-1"},
		{path: submit, ip: "198.51.100.12", userID: "user-2"},
	}, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusNoContent})
}

func TestRateLimitAnonymousUsesAddress(t *testing.T) {
	limited := RateLimit(1, time.Minute)(http.HandlerFunc(noContent))
	expectCodes(t, limited, []call{
		{path: "/api/v1/auth/request-reset", ip: "203.0.113.10", body: `{"email":"a@example.com"}`},
		{path: "/api/v1/auth/request-reset", ip: "203.0.113.10", body: `{"email":"b@example.com"}`},
		{path: "/api/v1/auth/request-reset", ip: "203.0.113.99", body: `{"email":"a@example.com"}`},
	}, []int{http.StatusNoContent, http.StatusTooManyRequests, http.StatusNoContent})
}

func TestRateLimitWindowExpires(t *testing.T) {
	limited := RateLimit(1, 40*time.Millisecond)(http.HandlerFunc(noContent))
	login := call{path: "/api/v1/auth/login", ip: "192.0.2.20", body: `{"email":"a@example.com"}`}

	expectCodes(t, limited, []call{login, login}, []int{http.StatusNoContent, http.StatusTooManyRequests})
	time.Sleep(50 * time.Millisecond)
	expectCodes(t, limited, []call{login}, []int{http.StatusNoContent})
}

func TestRateLimitReturnsRetryMetadata(t *testing.T) {
	limited := RateLimit(1, time.Minute)(http.HandlerFunc(noContent))
	login := call{path: "/api/v1/auth/login", ip: "192.0.2.30", body: `{"email":"a@example.com"}`}
	login.send(limited)

	rec := login.send(limited)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected throttled response, got %d", rec.Code)
	}
	for _, header := range []string{"Retry-After", "X-RateLimit-Reset"} {
		if rec.Header().Get(header) == "" {
			t.Fatalf("expected %s header", header)
		}
	}
}

func TestSensitiveRateLimitIgnoresPlainReads(t *testing.T) {
	limited := SensitiveMutationRateLimit(4, time.Minute)(http.HandlerFunc(noContent))
	dashboard := call{method: http.MethodGet, path: "/api/v1/dashboard", ip: "198.51.100.40"}
	for i := 0; i < 6; i++ {
		if got := dashboard.send(limited).Code; got != http.StatusNoContent {
			t.Fatalf("read %d should bypass sensitive limits, got %d", i+1, got)
		}
	}

	submit := call{path: "/api/v1/agreements/a1/transitions/submit", ip: "198.51.100.41", userID: "hr-1"}
	expectCodes(t, limited, []call{submit, submit, submit},
		[]int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests})
}

func TestExportsShareLowerLimit(t *testing.T) {
	limited := SensitiveMutationRateLimit(6, time.Minute)(http.HandlerFunc(noContent))
	expectCodes(t, limited, []call{
		{method: http.MethodGet, path: "/api/v1/agreements/export.xlsx", userID: "hr-1"},
		{method: http.MethodGet, path: "/api/v1/agreements/a1/export.pdf", userID: "hr-1"},
	}, []int{http.StatusNoContent, http.StatusTooManyRequests})
}

func TestRateLimitSweepsExpiredBuckets(t *testing.T) {
	rl := newRateLimiter(5, time.Minute, clientIPKey)
	past := time.Now().Add(-time.Second)
	for i := 0; i < sweepThreshold; i++ {
		rl.clients["stale-"+strconv.Itoa(i)] = &rateBucket{count: 1, reset: past}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
	req.RemoteAddr = "192.0.2.50:1000"
	if !rl.enforce(httptest.NewRecorder(), req) {
		t.Fatal("expected request to pass")
	}
	if len(rl.clients) != 1 {
		t.Fatalf("expected stale buckets to be swept, %d remain", len(rl.clients))
	}
}

func TestLoginKeyPrefersSubmittedIdentity(t *testing.T) {
	key := LoginKey()
	cases := []struct {
		body string
		want string
	}{
		{`{"email":" HR@Example.org ","password":"x"}`, "login:hr@example.org"},
		{`{"username":"tmabunda"}`, "login:tmabunda"},
		{`{"email":"","username":"tmabunda"}`, "login:tmabunda"},
		{`{"password":"x"}`, "192.0.2.60"},
		{`not json`, "192.0.2.60"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tc.body))
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "192.0.2.60:1000"
		if got := key(req); got != tc.want {
			t.Fatalf("body %s: expected %q, got %q", tc.body, tc.want, got)
		}
	}
}
