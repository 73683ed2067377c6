package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"cpis/internal/transport/http/api"
)

// PermissionChecker answers whether a role carries a permission.
type PermissionChecker interface {
	HasPermission(ctx context.Context, roleName, permission string) (bool, error)
}

// RequirePermission refuses requests whose token role lacks every one of
// perms. Callers pass more than one when either grant is enough.
func RequirePermission(perm string, checker PermissionChecker, more ...string) func(http.Handler) http.Handler {
	perms := append([]string{perm}, more...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := GetRequestID(r.Context())
			user, ok := GetUser(r.Context())
			if !ok {
				api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
				return
			}

			for _, p := range perms {
				allowed, err := checker.HasPermission(r.Context(), user.RoleName, p)
				if err != nil {
					slog.Warn("permission check failed", "permission", p, "err", err)
					api.Fail(w, http.StatusInternalServerError, "permission_error", "permission check failed", reqID)
					return
				}
				if allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			slog.Info("permission denied", "role", user.RoleName, "permissions", perms, "path", r.URL.Path, "requestId", reqID)
			api.Fail(w, http.StatusForbidden, "forbidden", "insufficient permissions", reqID)
		})
	}
}
