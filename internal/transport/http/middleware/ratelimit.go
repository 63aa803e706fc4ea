package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"pmds/internal/platform/requestctx"
	"pmds/internal/transport/http/api"
)

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*rateLimiter)

type rateBucket struct {
	count int
	reset time.Time
}

// rateLimiter is a fixed-window counter per key. Expired buckets are swept
// once the map passes sweepThreshold entries.
type rateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	keyFn   RateLimitKeyFunc
	clients map[string]*rateBucket
}

const sweepThreshold = 4096

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(rl *rateLimiter) {
		if fn != nil {
			rl.keyFn = fn
		}
	}
}

func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	rl := newRateLimiter(limit, window, actorOrIPKey)
	for _, opt := range opts {
		opt(rl)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.enforce(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type rateScope int

const (
	scopeNone rateScope = iota
	scopeAuth
	scopeActor
	scopeExport
)

type routeRule struct {
	methods []string
	match   func(path string) bool
	scope   rateScope
}

func exact(paths ...string) func(string) bool {
	return func(path string) bool { return slices.Contains(paths, path) }
}

var writeMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// sensitiveRoutes is checked in order; the first match wins.
var sensitiveRoutes = []routeRule{
	{
		methods: writeMethods,
		match:   exact("/auth/login", "/auth/request-reset", "/auth/reset", "/auth/mfa/setup", "/auth/mfa/enable", "/auth/mfa/disable"),
		scope:   scopeAuth,
	},
	{
		methods: writeMethods,
		match: func(path string) bool {
			return path == "/notifications/read-all" ||
				path == "/notifications/reminders/run" ||
				strings.HasPrefix(path, "/auth/impersonate/")
		},
		scope: scopeActor,
	},
	{
		methods: writeMethods,
		match: func(path string) bool {
			workflow := strings.HasPrefix(path, "/agreements/") || strings.HasPrefix(path, "/reviews/")
			return (workflow && strings.Contains(path, "/transitions/")) || strings.HasSuffix(path, "/evidence")
		},
		scope: scopeActor,
	},
	{
		methods: []string{http.MethodGet},
		match: func(path string) bool {
			return strings.HasSuffix(path, "/export.pdf") || strings.HasSuffix(path, "/export.xlsx") || path == "/audit/events/export"
		},
		scope: scopeExport,
	},
}

// SensitiveMutationRateLimit throttles credential endpoints by IP and login,
// workflow mutations by actor, and report exports by actor at a lower rate.
// Everything else passes through.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/4, 1)
	authByIP := newRateLimiter(authLimit, window, clientIPKey)
	byLogin := newRateLimiter(authLimit, window, LoginKey())
	byActor := newRateLimiter(max(baseLimit/2, 1), window, actorOrIPKey)
	exports := newRateLimiter(max(baseLimit/6, 1), window, actorOrIPKey)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch routeScope(r) {
			case scopeAuth:
				if !authByIP.enforce(w, r) || !byLogin.enforce(w, r) {
					return
				}
			case scopeActor:
				if !byActor.enforce(w, r) {
					return
				}
			case scopeExport:
				if !exports.enforce(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func routeScope(r *http.Request) rateScope {
	path := normalizedAPIPath(r.URL.Path)
	for _, rule := range sensitiveRoutes {
		if slices.Contains(rule.methods, r.Method) && rule.match(path) {
			return rule.scope
		}
	}
	return scopeNone
}

// LoginKey keys credential requests by the submitted identity so one
// account cannot be brute forced from many addresses. Requests without an
// identity fall back to the client address.
func LoginKey(fields ...string) RateLimitKeyFunc {
	if len(fields) == 0 {
		fields = []string{"email", "username"}
	}
	return func(r *http.Request) string {
		if login := peekJSONString(r, fields...); login != "" {
			return "login:" + strings.ToLower(login)
		}
		return clientIPKey(r)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.TenantID + ":" + user.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	if client := requestctx.GetClient(r.Context()); client.IP != "" {
		return client.IP
	}
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if value := strings.TrimSpace(first); value != "" {
			return value
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}

func newRateLimiter(limit int, window time.Duration, keyFn RateLimitKeyFunc) *rateLimiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &rateLimiter{
		limit:   limit,
		window:  window,
		keyFn:   keyFn,
		clients: map[string]*rateBucket{},
	}
}

func (rl *rateLimiter) enforce(w http.ResponseWriter, r *http.Request) bool {
	if rl.limit <= 0 {
		return true
	}

	key := rl.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	now := time.Now()

	rl.mu.Lock()
	if len(rl.clients) >= sweepThreshold {
		rl.sweepLocked(now)
	}
	bucket, ok := rl.clients[key]
	if !ok || now.After(bucket.reset) {
		bucket = &rateBucket{reset: now.Add(rl.window)}
		rl.clients[key] = bucket
	}
	bucket.count++
	remaining := rl.limit - bucket.count
	resetIn := durationSeconds(bucket.reset.Sub(now))
	overLimit := bucket.count > rl.limit
	rl.mu.Unlock()

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetIn))

	if overLimit {
		w.Header().Set("Retry-After", strconv.Itoa(max(resetIn, 1)))
		slog.Warn("rate limit exceeded",
			"key", key,
			"path", r.URL.Path,
			"method", r.Method,
			"limit", rl.limit,
			"windowSec", int(rl.window.Seconds()),
		)
		api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
		return false
	}
	return true
}

func (rl *rateLimiter) sweepLocked(now time.Time) {
	for key, bucket := range rl.clients {
		if now.After(bucket.reset) {
			delete(rl.clients, key)
		}
	}
}

func durationSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return max(int(d.Seconds()), 1)
}

// peekJSONString returns the first non-empty string among fields in a JSON
// body. The body is restored for the handler.
func peekJSONString(r *http.Request, fields ...string) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if json.Unmarshal(raw, &payload) != nil {
		return ""
	}
	for _, field := range fields {
		var value string
		if json.Unmarshal(payload[field], &value) == nil && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func normalizedAPIPath(path string) string {
	cleaned := strings.TrimPrefix(strings.TrimSpace(path), "/api/v1")
	if cleaned == "" {
		return "/"
	}
	if !strings.HasPrefix(cleaned, "/") {
		return "/" + cleaned
	}
	return cleaned
}
