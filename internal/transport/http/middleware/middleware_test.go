package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pmds/internal/platform/requestctx"
)

func TestRequestIDGeneratesAndEchoes(t *testing.T) {
	var seen string
	var client requestctx.Client
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		client = requestctx.GetClient(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.5:1234"
	req.Header.Set("User-Agent", "pmds-test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen == "" {
		t.Fatal("expected generated request id")
	}
	if rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected header %q, got %q", seen, rec.Header().Get(RequestIDHeader))
	}
	if client.IP != "203.0.113.5" || client.UserAgent != "pmds-test" {
		t.Fatalf("unexpected client info: %+v", client)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if seen != "abc-123" {
		t.Fatalf("expected inbound id to be kept, got %q", seen)
	}
}

func TestRecovererReturnsEnvelope(t *testing.T) {
	handler := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

type countingRecorder struct {
	status []int
}

func (c *countingRecorder) Record(status int, _ time.Duration) {
	c.status = append(c.status, status)
}

func TestLoggerRecordsStatus(t *testing.T) {
	metrics := &countingRecorder{}
	handler := Logger(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))
	if len(metrics.status) != 1 || metrics.status[0] != http.StatusConflict {
		t.Fatalf("expected recorded 409, got %v", metrics.status)
	}
}

func TestBodyLimitRejectsLargeBodies(t *testing.T) {
	var readErr error
	handler := BodyLimit(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789abcdef"))
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if readErr == nil {
		t.Fatal("expected body limit error")
	}

	upload := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789abcdef"))
	upload.Header.Set("Content-Type", "multipart/form-data; boundary=x")
	handler.ServeHTTP(httptest.NewRecorder(), upload)
	if readErr != nil {
		t.Fatalf("multipart bodies should be left to the upload handler: %v", readErr)
	}
}

func TestRouteScope(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   rateScope
	}{
		{http.MethodPost, "/api/v1/auth/login", scopeAuth},
		{http.MethodPost, "/api/v1/agreements/a1/transitions/hr_verify", scopeActor},
		{http.MethodPost, "/api/v1/reviews/r1/transitions/reject", scopeActor},
		{http.MethodPost, "/api/v1/auth/impersonate/u2", scopeActor},
		{http.MethodPost, "/api/v1/agreements/a1/kras/k1/evidence", scopeActor},
		{http.MethodPost, "/api/v1/notifications/reminders/run", scopeActor},
		{http.MethodGet, "/api/v1/agreements/a1/export.pdf", scopeExport},
		{http.MethodGet, "/api/v1/agreements/export.xlsx", scopeExport},
		{http.MethodGet, "/api/v1/audit/events/export", scopeExport},
		{http.MethodGet, "/api/v1/agreements/a1", scopeNone},
		{http.MethodPut, "/api/v1/agreements/a1", scopeNone},
		{http.MethodGet, "/api/v1/auth/login", scopeNone},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if got := routeScope(req); got != tc.want {
				t.Fatalf("expected scope %d, got %d", tc.want, got)
			}
		})
	}
}

func TestSecureHeadersAllowNotificationStream(t *testing.T) {
	handler := SecureHeaders(SecurityOptions{ConnectOrigins: []string{WebsocketOrigin("https://pmds.example.org/")}})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/agreements", nil))
	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "connect-src 'self' wss://pmds.example.org") {
		t.Fatalf("expected websocket origin in connect-src, got %q", csp)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("expected api responses to be uncacheable")
	}
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Fatalf("expected no HSTS outside production")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	if rec.Header().Get("Cache-Control") != "" {
		t.Fatalf("expected static assets to keep default caching")
	}
}
