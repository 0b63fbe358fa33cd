package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Role is the coarse access level of a user.
type Role string

const (
	// RoleAdmin may manage users and void invoices.
	RoleAdmin Role = "ADMIN"
	// RoleUser may manage records and generate invoices.
	RoleUser Role = "USER"
)

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Principal identifies the caller of a request.
type Principal struct {
	UserID int64  `json:"user_id"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Session is an issued bearer token and the principal it resolves to.
type Session struct {
	Token     string    `json:"token"`
	Principal Principal `json:"principal"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SessionStore keeps bearer sessions in Redis. Tokens are opaque; the store is
// the only place that can resolve them.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &SessionStore{client: client, ttl: ttl, now: time.Now}
}

// TTL exposes the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

// Create issues a new token for the principal.
func (s *SessionStore) Create(ctx context.Context, principal Principal) (Session, error) {
	if principal.UserID <= 0 {
		return Session{}, errors.New("session: principal user id required")
	}
	token, err := generateToken()
	if err != nil {
		return Session{}, fmt.Errorf("session: generate token: %w", err)
	}
	sess := Session{Token: token, Principal: principal, ExpiresAt: s.now().Add(s.ttl).UTC()}
	data, err := json.Marshal(sess)
	if err != nil {
		return Session{}, err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, sessionKey(token), data, s.ttl)
	pipe.SAdd(ctx, userSessionsKey(principal.UserID), token)
	pipe.Expire(ctx, userSessionsKey(principal.UserID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Session{}, fmt.Errorf("session: store: %w", err)
	}
	return sess, nil
}

// Load resolves a token. Unknown or expired tokens yield ErrUnauthorized.
func (s *SessionStore) Load(ctx context.Context, token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrUnauthorized
	}
	payload, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Session{}, ErrUnauthorized
		}
		return Session{}, err
	}
	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Refresh replaces token with a fresh one carrying the same principal. The old
// token stops resolving immediately.
func (s *SessionStore) Refresh(ctx context.Context, token string) (Session, error) {
	current, err := s.Load(ctx, token)
	if err != nil {
		return Session{}, err
	}
	next, err := s.Create(ctx, current.Principal)
	if err != nil {
		return Session{}, err
	}
	if err := s.Destroy(ctx, token); err != nil {
		return Session{}, err
	}
	return next, nil
}

// Destroy revokes a single token.
func (s *SessionStore) Destroy(ctx context.Context, token string) error {
	sess, err := s.Load(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil
		}
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, sessionKey(token))
	pipe.SRem(ctx, userSessionsKey(sess.Principal.UserID), token)
	_, err = pipe.Exec(ctx)
	return err
}

// DestroyUser revokes every token issued to the user.
func (s *SessionStore) DestroyUser(ctx context.Context, userID int64) error {
	tokens, err := s.client.SMembers(ctx, userSessionsKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, sessionKey(token))
	}
	keys = append(keys, userSessionsKey(userID))
	return s.client.Del(ctx, keys...).Err()
}

func sessionKey(token string) string {
	return "session:" + token
}

func userSessionsKey(userID int64) string {
	return "session:user:" + strconv.FormatInt(userID, 10)
}

func generateToken() (string, error) {
	a, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	b, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(a.String()+b.String(), "-", ""), nil
}
