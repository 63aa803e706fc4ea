package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"pmds/internal/platform/requestctx"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reuses a sane inbound id or mints one, and records the client
// address and user agent for audit.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(RequestIDHeader))
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := requestctx.WithRequestID(r.Context(), requestID)
		ctx = requestctx.WithClient(ctx, requestctx.Client{
			IP:        clientIPKey(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}
