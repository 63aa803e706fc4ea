package middleware

import (
	"net/http"
	"strings"
)

type SecurityOptions struct {
	// HSTS is only sent in production, where TLS terminates in front of us.
	HSTS bool
	// ConnectOrigins are extra origins the frontend may open websockets to.
	ConnectOrigins []string
}

func SecureHeaders(opts SecurityOptions) func(http.Handler) http.Handler {
	connect := append([]string{"'self'"}, opts.ConnectOrigins...)
	csp := strings.Join([]string{
		"default-src 'self'",
		"base-uri 'self'",
		"form-action 'self'",
		"frame-ancestors 'none'",
		"object-src 'none'",
		"img-src 'self' data: blob:",
		"style-src 'self' 'unsafe-inline'",
		"script-src 'self'",
		"connect-src " + strings.Join(connect, " "),
	}, "; ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			headers := w.Header()
			headers.Set("X-Content-Type-Options", "nosniff")
			headers.Set("X-Frame-Options", "DENY")
			headers.Set("Referrer-Policy", "no-referrer")
			headers.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			headers.Set("Content-Security-Policy", csp)
			headers.Set("Cross-Origin-Opener-Policy", "same-origin")
			headers.Set("Cross-Origin-Resource-Policy", "same-origin")
			if strings.HasPrefix(r.URL.Path, "/api/") {
				// ratings and evidence must not land in shared caches
				headers.Set("Cache-Control", "no-store")
			}
			if opts.HSTS {
				headers.Set("Strict-Transport-Security", "max-age=63072000; includeSubDomains; preload")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WebsocketOrigin turns the public base URL into the ws/wss origin the
// notification stream is served from.
func WebsocketOrigin(baseURL string) string {
	switch {
	case strings.HasPrefix(baseURL, "https://"):
		return "wss://" + strings.TrimSuffix(strings.TrimPrefix(baseURL, "https://"), "/")
	case strings.HasPrefix(baseURL, "http://"):
		return "ws://" + strings.TrimSuffix(strings.TrimPrefix(baseURL, "http://"), "/")
	}
	return ""
}
