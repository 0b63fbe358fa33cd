package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/harvest-erp/harvest/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	users  map[int64]User
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: map[int64]User{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryRepo{users: make(map[int64]User, len(m.users)), nextID: m.nextID}
	for id, u := range m.users {
		tx.users[id] = u
	}
	if err := fn(ctx, txRepo{tx}); err != nil {
		return err
	}
	m.users, m.nextID = tx.users, tx.nextID
	return nil
}

// txRepo runs against the snapshot without taking the outer lock again.
type txRepo struct{ *memoryRepo }

func (t txRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, t)
}

func (m *memoryRepo) Get(_ context.Context, id int64) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryRepo) List(_ context.Context, limit, offset int) ([]User, int, error) {
	out := make([]User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return out[offset:end], total, nil
}

func (m *memoryRepo) Create(_ context.Context, user User) (int64, error) {
	for _, u := range m.users {
		if u.Email == user.Email {
			return 0, ErrEmailTaken
		}
	}
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = user
	return user.ID, nil
}

func (m *memoryRepo) Update(_ context.Context, id int64, updates map[string]interface{}) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	for column, value := range updates {
		switch column {
		case "name":
			u.Name = value.(string)
		case "email":
			u.Email = value.(string)
		case "role":
			u.Role = value.(shared.Role)
		case "password_hash":
			u.PasswordHash = value.(string)
		}
	}
	m.users[id] = u
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *memoryRepo) LockAdmins(context.Context) ([]int64, error) {
	var ids []int64
	for id, u := range m.users {
		if u.Role == shared.RoleAdmin {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type revoker struct{ revoked []int64 }

func (r *revoker) DestroyUser(_ context.Context, userID int64) error {
	r.revoked = append(r.revoked, userID)
	return nil
}

func newTestService() (*Service, *memoryRepo, *revoker) {
	repo := newMemoryRepo()
	sessions := &revoker{}
	return NewService(repo, ServiceConfig{Sessions: sessions, HashCost: bcrypt.MinCost}), repo, sessions
}

func mustCreate(t *testing.T, svc *Service, email string, role shared.Role) *User {
	t.Helper()
	u, err := svc.Create(context.Background(), CreateRequest{Name: "Tester", Email: email, Password: "password123", Role: role})
	require.NoError(t, err)
	return u
}

func TestCreateHashesPasswordAndDefaultsRole(t *testing.T) {
	svc, repo, _ := newTestService()
	u, err := svc.Create(context.Background(), CreateRequest{Name: " Aiko ", Email: " Aiko@Farm.example ", Password: "password123"})
	require.NoError(t, err)
	require.Equal(t, "Aiko", u.Name)
	require.Equal(t, "aiko@farm.example", u.Email)
	require.Equal(t, shared.RoleUser, u.Role)

	stored := repo.users[u.ID]
	require.NotEqual(t, "password123", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password123")))

	_, err = svc.Create(context.Background(), CreateRequest{Name: "Dup", Email: "aiko@farm.example", Password: "password123"})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = svc.Create(context.Background(), CreateRequest{Name: "Short", Email: "short@farm.example", Password: "abc"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAdminFloorOnDelete(t *testing.T) {
	svc, _, sessions := newTestService()
	admin := mustCreate(t, svc, "admin@farm.example", shared.RoleAdmin)
	user := mustCreate(t, svc, "user@farm.example", shared.RoleUser)

	err := svc.Delete(context.Background(), admin.ID)
	require.ErrorIs(t, err, ErrLastAdmin)
	require.ErrorIs(t, err, shared.ErrAdminFloor)
	_, err = svc.Get(context.Background(), admin.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), user.ID))
	require.Equal(t, []int64{user.ID}, sessions.revoked)

	second := mustCreate(t, svc, "second@farm.example", shared.RoleAdmin)
	require.NoError(t, svc.Delete(context.Background(), admin.ID))
	require.ErrorIs(t, svc.Delete(context.Background(), second.ID), shared.ErrAdminFloor)
}

func TestAdminFloorOnDemotion(t *testing.T) {
	svc, _, sessions := newTestService()
	admin := mustCreate(t, svc, "admin@farm.example", shared.RoleAdmin)
	role := shared.RoleUser

	_, err := svc.Update(context.Background(), admin.ID, UpdateRequest{Role: &role})
	require.ErrorIs(t, err, shared.ErrAdminFloor)
	current, err := svc.Get(context.Background(), admin.ID)
	require.NoError(t, err)
	require.Equal(t, shared.RoleAdmin, current.Role)
	require.Empty(t, sessions.revoked)

	mustCreate(t, svc, "other@farm.example", shared.RoleAdmin)
	updated, err := svc.Update(context.Background(), admin.ID, UpdateRequest{Role: &role})
	require.NoError(t, err)
	require.Equal(t, shared.RoleUser, updated.Role)
	require.Equal(t, []int64{admin.ID}, sessions.revoked)
}

func TestUpdateNameKeepsSessions(t *testing.T) {
	svc, _, sessions := newTestService()
	u := mustCreate(t, svc, "user@farm.example", shared.RoleUser)
	name := "Renamed"
	updated, err := svc.Update(context.Background(), u.ID, UpdateRequest{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Renamed", updated.Name)
	require.Empty(t, sessions.revoked)

	_, err = svc.Update(context.Background(), 99, UpdateRequest{Name: &name})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestEnsureAdminPromotesExistingAccount(t *testing.T) {
	svc, repo, _ := newTestService()
	u := mustCreate(t, svc, "owner@farm.example", shared.RoleUser)

	promoted, err := svc.EnsureAdmin(context.Background(), "Owner", "OWNER@farm.example", "newpassword1")
	require.NoError(t, err)
	require.Equal(t, u.ID, promoted.ID)
	require.Equal(t, shared.RoleAdmin, promoted.Role)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users[u.ID].PasswordHash), []byte("newpassword1")))

	created, err := svc.EnsureAdmin(context.Background(), "Fresh", "fresh@farm.example", "password123")
	require.NoError(t, err)
	require.Equal(t, shared.RoleAdmin, created.Role)
}

func TestHandlerHidesPasswordHash(t *testing.T) {
	svc, _, _ := newTestService()
	admin := mustCreate(t, svc, "admin@farm.example", shared.RoleAdmin)
	r := chi.NewRouter()
	r.Route("/users", NewHandler(nil, svc).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), admin.Email)
	require.NotContains(t, rec.Body.String(), "password")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/users/1", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
}
