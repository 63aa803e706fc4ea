package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"pmds/internal/domain/auth"
	"pmds/internal/transport/http/api"
)

type userKey struct{}

// SessionChecker rejects tokens whose session was revoked or expired.
type SessionChecker interface {
	SessionActive(ctx context.Context, claims *auth.Claims) (bool, error)
}

// Auth attaches the caller to the context when a valid bearer token is
// present. Anonymous requests pass through; RequirePermission and the
// handlers decide whether that is acceptable. A nil checker skips the
// session lookup.
func Auth(secret string, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := verifiedClaims(secret, r)
			if claims == nil {
				next.ServeHTTP(w, r)
				return
			}
			if sessions != nil {
				active, err := sessions.SessionActive(r.Context(), claims)
				if err != nil {
					slog.Warn("session lookup failed", "userId", claims.UserID, "err", err)
					api.Fail(w, http.StatusInternalServerError, "session_error", "session check failed", GetRequestID(r.Context()))
					return
				}
				if !active {
					slog.Debug("token for revoked session", "userId", claims.UserID)
					next.ServeHTTP(w, r)
					return
				}
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.Context())))
		})
	}
}

func verifiedClaims(secret string, r *http.Request) *auth.Claims {
	token := BearerToken(r)
	if token == "" {
		return nil
	}
	claims, err := auth.ParseToken(secret, token)
	if err != nil {
		slog.Debug("bearer token rejected", "err", err)
		return nil
	}
	return claims
}

// BearerToken reads "Authorization: Bearer <token>"; the scheme is case
// insensitive.
func BearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(userKey{}).(auth.UserContext)
	return user, ok
}

// WithUser is used by tests and the websocket handshake.
func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}
