package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/harvest-erp/harvest/internal/shared"
)

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SessionRevoker drops every session of a user.
type SessionRevoker interface {
	DestroyUser(ctx context.Context, userID int64) error
}

// ServiceConfig groups optional collaborators.
type ServiceConfig struct {
	Audit    AuditPort
	Sessions SessionRevoker
	Logger   *slog.Logger
	// HashCost overrides bcrypt.DefaultCost.
	HashCost int
}

// Service handles user business logic.
type Service struct {
	repo     Repository
	audit    AuditPort
	sessions SessionRevoker
	logger   *slog.Logger
	cost     int
}

// NewService builds Service instance.
func NewService(repo Repository, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cost := cfg.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{repo: repo, audit: cfg.Audit, sessions: cfg.Sessions, logger: logger, cost: cost}
}

// List returns one page of users ordered by id.
func (s *Service) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Get returns a single user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a new account with a bcrypt password hash. Role defaults to USER.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*User, error) {
	user := User{
		Name:  strings.TrimSpace(req.Name),
		Email: normalizeEmail(req.Email),
		Role:  req.Role,
	}
	if user.Role == "" {
		user.Role = shared.RoleUser
	}
	if err := validate(user); err != nil {
		return nil, err
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	user.PasswordHash = hash

	id, err := s.repo.Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	created, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, shared.AuditCreate, id, map[string]any{"role": user.Role})
	return created, nil
}

// Update changes name, email, role or password. Demoting the last ADMIN fails
// with ErrLastAdmin. Role and password changes revoke the user's sessions.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*User, error) {
	updates := make(map[string]interface{})
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, shared.NewValidationError("name", "is required")
		}
		updates["name"] = name
	}
	if req.Email != nil {
		email := normalizeEmail(*req.Email)
		if email == "" {
			return nil, shared.NewValidationError("email", "is required")
		}
		updates["email"] = email
	}
	if req.Role != nil {
		if !req.Role.IsValid() {
			return nil, shared.NewValidationError("role", "must be ADMIN or USER")
		}
		updates["role"] = *req.Role
	}
	if req.Password != nil {
		hash, err := s.hash(*req.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}

	revoke := false
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if req.Role != nil && current.Role == shared.RoleAdmin && *req.Role != shared.RoleAdmin {
			if err := keepsAnAdmin(ctx, repo, id); err != nil {
				return err
			}
		}
		revoke = req.Password != nil || (req.Role != nil && *req.Role != current.Role)
		return repo.Update(ctx, id, updates)
	})
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if revoke {
		s.revoke(ctx, id)
	}
	s.record(ctx, shared.AuditUpdate, id, map[string]any{"fields": fieldNames(updates)})
	return s.repo.Get(ctx, id)
}

// Delete removes an account and its sessions. Deleting the last ADMIN fails
// with ErrLastAdmin.
func (s *Service) Delete(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		if current.Role == shared.RoleAdmin {
			if err := keepsAnAdmin(ctx, repo, id); err != nil {
				return err
			}
		}
		return repo.Delete(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.revoke(ctx, id)
	s.record(ctx, shared.AuditDelete, id, nil)
	return nil
}

// EnsureAdmin creates an ADMIN account, or promotes and resets the password of
// an existing account with the same email. Used for bootstrap.
func (s *Service) EnsureAdmin(ctx context.Context, name, email, password string) (*User, error) {
	existing, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return s.Create(ctx, CreateRequest{Name: name, Email: email, Password: password, Role: shared.RoleAdmin})
	}
	if err != nil {
		return nil, err
	}
	role := shared.RoleAdmin
	return s.Update(ctx, existing.ID, UpdateRequest{Role: &role, Password: &password})
}

// keepsAnAdmin locks the ADMIN rows and fails when id is the only one.
func keepsAnAdmin(ctx context.Context, repo Repository, id int64) error {
	admins, err := repo.LockAdmins(ctx)
	if err != nil {
		return err
	}
	for _, adminID := range admins {
		if adminID != id {
			return nil
		}
	}
	return ErrLastAdmin
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < 8 {
		return "", shared.NewValidationError("password", "must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", shared.NewValidationError("password", "must be at most 72 bytes")
		}
		return "", err
	}
	return string(hash), nil
}

func (s *Service) revoke(ctx context.Context, id int64) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.DestroyUser(ctx, id); err != nil {
		s.logger.Warn("users revoke sessions", slog.Int64("user_id", id), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}

func validate(u User) error {
	if u.Name == "" {
		return shared.NewValidationError("name", "is required")
	}
	if u.Email == "" {
		return shared.NewValidationError("email", "is required")
	}
	if !u.Role.IsValid() {
		return shared.NewValidationError("role", "must be ADMIN or USER")
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func fieldNames(updates map[string]interface{}) []string {
	names := make([]string, 0, len(updates))
	for name := range updates {
		if name == "password_hash" {
			name = "password"
		}
		names = append(names, name)
	}
	return names
}
