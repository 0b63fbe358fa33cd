package suppliers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/shared"
)

type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers supplier routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.ListFiltersFromRequest(r)
	suppliers, total, err := h.service.List(r.Context(), filters)
	if err != nil {
		h.fail(w, "list suppliers failed", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(suppliers, filters, total))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "show supplier", err)
		return
	}
	supplier, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "show supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.Bind(r, h.validator, &in); err != nil {
		h.fail(w, "create supplier", err)
		return
	}
	supplier, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, "create supplier", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "update supplier", err)
		return
	}
	var in Input
	if err := httpx.Bind(r, h.validator, &in); err != nil {
		h.fail(w, "update supplier", err)
		return
	}
	supplier, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, "update supplier", err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "delete supplier", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete supplier", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
}
