package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/rbac"
	"github.com/harvest-erp/harvest/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers auth routes. Login and refresh are public; /me runs
// behind authenticate.
func (h *Handler) MountRoutes(r chi.Router, authenticate func(http.Handler) http.Handler) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Post("/refresh", h.handleRefresh)
	r.With(authenticate).Get("/me", h.handleMe)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Token     string           `json:"token"`
	TokenType string           `json:"token_type"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      shared.Principal `json:"user"`
}

func newSessionResponse(sess shared.Session) sessionResponse {
	return sessionResponse{
		Token:     sess.Token,
		TokenType: "Bearer",
		ExpiresAt: sess.ExpiresAt,
		User:      sess.Principal,
	}
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, "login", err)
		return
	}
	sess, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token, ok := rbac.BearerToken(r)
	if !ok {
		h.fail(w, "logout", shared.ErrUnauthorized)
		return
	}
	if err := h.service.Logout(r.Context(), token); err != nil {
		h.fail(w, "logout", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	token, ok := rbac.BearerToken(r)
	if !ok {
		h.fail(w, "refresh", shared.ErrUnauthorized)
		return
	}
	sess, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		h.fail(w, "refresh", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newSessionResponse(sess))
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		h.fail(w, "me", shared.ErrUnauthorized)
		return
	}
	user, err := h.service.Me(r.Context(), principal)
	if err != nil {
		h.fail(w, "me", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("auth "+op+" failed", slog.Any("error", err))
	}
}
