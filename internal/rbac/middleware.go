package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/shared"
)

// SessionResolver resolves bearer tokens into sessions.
type SessionResolver interface {
	Load(ctx context.Context, token string) (shared.Session, error)
}

// Middleware wires authentication and role checks for HTTP handlers.
type Middleware struct {
	Sessions SessionResolver
	Logger   *slog.Logger
}

// Authenticate requires a valid bearer token and stores the principal in the
// request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok || m.Sessions == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
			return
		}
		sess, err := m.Sessions.Load(r.Context(), token)
		if err != nil {
			if errors.Is(err, shared.ErrUnauthorized) {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "token invalid or expired")
				return
			}
			if m.Logger != nil {
				m.Logger.Error("rbac load session", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), sess.Principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole ensures the current principal holds one of the roles.
func (m Middleware) RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "bearer token required")
				return
			}
			if len(roles) == 0 || hasRole(principal.Role, roles) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac role denied", slog.Int64("user_id", principal.UserID), slog.String("role", string(principal.Role)), slog.String("path", r.URL.Path))
			}
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "insufficient role")
		})
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

func hasRole(role shared.Role, allowed []shared.Role) bool {
	for _, candidate := range allowed {
		if candidate == role {
			return true
		}
	}
	return false
}
