package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/harvest-erp/harvest/internal/shared"
	"github.com/harvest-erp/harvest/internal/users"
)

// UserLookup reads accounts for authentication.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*users.User, error)
	Get(ctx context.Context, id int64) (*users.User, error)
}

// SessionStore issues and revokes bearer tokens.
type SessionStore interface {
	Create(ctx context.Context, principal shared.Principal) (shared.Session, error)
	Load(ctx context.Context, token string) (shared.Session, error)
	Refresh(ctx context.Context, token string) (shared.Session, error)
	Destroy(ctx context.Context, token string) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps authentication business rules.
type Service struct {
	users    UserLookup
	sessions SessionStore
	audit    AuditPort
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(users UserLookup, sessions SessionStore, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{users: users, sessions: sessions, audit: audit, logger: logger}
}

// Login validates email/password credentials and issues a bearer token.
// Unknown emails and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (shared.Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.Session{}, shared.ErrInvalidCredentials
		}
		return shared.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.Info("auth login rejected", slog.Int64("user_id", user.ID))
		return shared.Session{}, shared.ErrInvalidCredentials
	}
	sess, err := s.sessions.Create(ctx, user.Principal())
	if err != nil {
		return shared.Session{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  user.ID,
			Action:   shared.AuditLogin,
			Entity:   "user",
			EntityID: strconv.FormatInt(user.ID, 10),
		})
	}
	return sess, nil
}

// Logout revokes the token. Revoking an unknown token succeeds.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Destroy(ctx, token)
}

// Refresh exchanges a live token for a new one with a full lifetime. The old
// token stops working.
func (s *Service) Refresh(ctx context.Context, token string) (shared.Session, error) {
	return s.sessions.Refresh(ctx, token)
}

// Me returns the account behind the principal.
func (s *Service) Me(ctx context.Context, principal shared.Principal) (*users.User, error) {
	user, err := s.users.Get(ctx, principal.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrUnauthorized
		}
		return nil, err
	}
	return user, nil
}
