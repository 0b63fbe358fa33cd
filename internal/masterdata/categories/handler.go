package categories

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/shared"
)

// Handler exposes category endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers category routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{id}", h.get)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

type categoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filters := shared.ListFiltersFromRequest(r)
	items, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, filters, total))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	category, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, err)
		return
	}
	category, err := h.service.Create(r.Context(), req.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, category)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req categoryRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, err)
		return
	}
	category, err := h.service.Rename(r.Context(), id, req.Name)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, category)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("categories request", slog.Any("error", err))
	}
}
