package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/harvest-erp/harvest/internal/rbac"
	"github.com/harvest-erp/harvest/internal/shared"
	"github.com/harvest-erp/harvest/internal/users"
)

func newTestRouter(t *testing.T, checks map[string]Pinger) (http.Handler, *shared.SessionStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	store := shared.NewSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Hour)
	router := NewRouter(RouterParams{
		Logger:         NewLogger(&Config{}),
		Config:         &Config{},
		Checks:         checks,
		RBACMiddleware: rbac.Middleware{Sessions: store},
		UsersHandler:   users.NewHandler(nil, users.NewService(nil, users.ServiceConfig{})),
	})
	return router, store
}

func TestHealthzReportsComponents(t *testing.T) {
	router, _ := newTestRouter(t, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","components":{"postgres":"ok"}}`, rec.Body.String())

	router, _ = newTestRouter(t, map[string]Pinger{
		"redis": PingFunc(func(context.Context) error { return errors.New("refused") }),
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUserRoutesRequireAdmin(t *testing.T) {
	router, store := newTestRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	sess, err := store.Create(context.Background(), shared.Principal{UserID: 2, Email: "user@farm.example", Role: shared.RoleUser})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer "+sess.Token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}
