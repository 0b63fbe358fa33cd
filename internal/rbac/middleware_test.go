package rbac

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harvest-erp/harvest/internal/shared"
)

type stubSessions map[string]shared.Session

func (s stubSessions) Load(ctx context.Context, token string) (shared.Session, error) {
	sess, ok := s[token]
	if !ok {
		return shared.Session{}, shared.ErrUnauthorized
	}
	return sess, nil
}

func newMiddleware() Middleware {
	return Middleware{Sessions: stubSessions{
		"admin-token": {Token: "admin-token", Principal: shared.Principal{UserID: 1, Role: shared.RoleAdmin}},
		"user-token":  {Token: "user-token", Principal: shared.Principal{UserID: 2, Role: shared.RoleUser}},
	}}
}

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	m := newMiddleware()
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	require.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
	require.Equal(t, http.StatusUnauthorized, serve(h, "bogus").Code)
}

func TestAuthenticateStoresPrincipal(t *testing.T) {
	m := newMiddleware()
	var seen shared.Principal
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	require.Equal(t, http.StatusOK, serve(h, "user-token").Code)
	require.Equal(t, int64(2), seen.UserID)
}

func TestRequireRole(t *testing.T) {
	m := newMiddleware()
	h := m.Authenticate(m.RequireRole(shared.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	require.Equal(t, http.StatusOK, serve(h, "admin-token").Code)
	require.Equal(t, http.StatusForbidden, serve(h, "user-token").Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer   abc ")
	token, ok := BearerToken(req)
	require.True(t, ok)
	require.Equal(t, "abc", token)

	req.Header.Set("Authorization", "Basic abc")
	_, ok = BearerToken(req)
	require.False(t, ok)
}
