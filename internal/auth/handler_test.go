package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/harvest-erp/harvest/internal/auth"
	"github.com/harvest-erp/harvest/internal/rbac"
	"github.com/harvest-erp/harvest/internal/shared"
	"github.com/harvest-erp/harvest/internal/users"
	_ "github.com/harvest-erp/harvest/testing"
)

type stubUsers struct {
	user *users.User
}

func (s *stubUsers) GetByEmail(_ context.Context, email string) (*users.User, error) {
	if s.user == nil || s.user.Email != email {
		return nil, users.ErrNotFound
	}
	return s.user, nil
}

func (s *stubUsers) Get(_ context.Context, id int64) (*users.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, users.ErrNotFound
	}
	return s.user, nil
}

func newAuthRouter(t *testing.T) (http.Handler, *shared.SessionStore) {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := &stubUsers{user: &users.User{ID: 1, Name: "Aiko", Email: "user@test.local", Role: shared.RoleUser, PasswordHash: string(hashed)}}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := shared.NewSessionStore(client, time.Hour)

	handler := auth.NewHandler(nil, auth.NewService(repo, store, nil, nil))
	mw := rbac.Middleware{Sessions: store}
	r := chi.NewRouter()
	r.Route("/auth", func(r chi.Router) {
		handler.MountRoutes(r, mw.Authenticate)
	})
	return r, store
}

func login(t *testing.T, router http.Handler, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"email":"user@test.local","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func withToken(method, path, token string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestLoginIssuesUsableToken(t *testing.T) {
	router, _ := newAuthRouter(t)

	rec := login(t, router, "correctpass")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Token string           `json:"token"`
		User  shared.Principal `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	require.Equal(t, shared.RoleUser, resp.User.Role)

	me := httptest.NewRecorder()
	router.ServeHTTP(me, withToken(http.MethodGet, "/auth/me", resp.Token))
	require.Equal(t, http.StatusOK, me.Code)
	require.Contains(t, me.Body.String(), `"email":"user@test.local"`)
	require.NotContains(t, me.Body.String(), "password")
}

func TestLoginInvalidCredentials(t *testing.T) {
	router, _ := newAuthRouter(t)

	rec := login(t, router, "wrongpass")
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	body := `{"email":"nobody@test.local","password":"correctpass"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	router, store := newAuthRouter(t)
	var first struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(login(t, router, "correctpass").Body.Bytes(), &first))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withToken(http.MethodPost, "/auth/refresh", first.Token))
	require.Equal(t, http.StatusOK, rec.Code)
	var second struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	require.NotEqual(t, first.Token, second.Token)

	_, err := store.Load(context.Background(), first.Token)
	require.ErrorIs(t, err, shared.ErrUnauthorized)
	_, err = store.Load(context.Background(), second.Token)
	require.NoError(t, err)
}

func TestLogoutRevokesToken(t *testing.T) {
	router, _ := newAuthRouter(t)
	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(login(t, router, "correctpass").Body.Bytes(), &sess))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, withToken(http.MethodPost, "/auth/logout", sess.Token))
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, withToken(http.MethodGet, "/auth/me", sess.Token))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
