package users

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/shared"
)

// Handler manages user management endpoints. Routes are mounted behind an
// ADMIN role check.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.listUsers)
	r.Post("/", h.createUser)
	r.Get("/{id}", h.showUser)
	r.Put("/{id}", h.updateUser)
	r.Delete("/{id}", h.deleteUser)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	page := shared.ListFiltersFromRequest(r)
	users, total, err := h.service.List(r.Context(), page.Limit(), page.Offset())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(users, page, total))
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "show user", err)
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "show user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, "create user", err)
		return
	}
	user, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	var req UpdateRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, "update user", err)
		return
	}
	user, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "delete user", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete user", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
}
