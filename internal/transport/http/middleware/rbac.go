package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"pmds/internal/transport/http/api"
)

type PermissionStore interface {
	HasPermission(ctx context.Context, roleID, permission string) (bool, error)
}

func RequirePermission(permission string, store PermissionStore) func(http.Handler) http.Handler {
	return RequireAnyPermission(store, permission)
}

// RequireAnyPermission admits the caller when their role holds at least one
// of the listed permissions. Row-level checks stay in the services.
func RequireAnyPermission(store PermissionStore, permissions ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
				return
			}

			for _, permission := range permissions {
				allowed, err := store.HasPermission(r.Context(), user.RoleID, permission)
				if err != nil {
					slog.Error("permission check failed", "permission", permission, "roleId", user.RoleID, "err", err)
					api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", GetRequestID(r.Context()))
					return
				}
				if allowed {
					next.ServeHTTP(w, r)
					return
				}
			}

			slog.Debug("permission denied", "userId", user.UserID, "role", user.RoleName, "path", r.URL.Path)
			api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", GetRequestID(r.Context()))
		})
	}
}
