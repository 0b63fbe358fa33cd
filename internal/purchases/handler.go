package purchases

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harvest-erp/harvest/internal/inventory"
	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/shared"
)

// Handler exposes purchase endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers purchase routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleShow)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/review", h.handleClearReview)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := shared.ListFiltersFromRequest(r)
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	filter.Search = page.Search
	filter.SortBy = page.SortBy
	filter.Descending = page.Descending()
	filter.Limit = page.Limit()
	filter.Offset = page.Offset()
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.Bind(r, h.validator, &in); err != nil {
		h.fail(w, err)
		return
	}
	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var in Input
	if err := httpx.Bind(r, h.validator, &in); err != nil {
		h.fail(w, err)
		return
	}
	p, err := h.service.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
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

func (h *Handler) handleClearReview(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	p, err := h.service.ClearReview(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var filter ListFilter
	if v, err := httpx.QueryInt64(r, "category_id"); err != nil {
		return filter, err
	} else if v != nil {
		filter.CategoryID = *v
	}
	if v, err := httpx.QueryInt64(r, "supplier_id"); err != nil {
		return filter, err
	} else if v != nil {
		filter.SupplierID = *v
	}
	switch status := inventory.Status(q.Get("status")); status {
	case "", inventory.StatusUnused, inventory.StatusPartial, inventory.StatusUsed:
		filter.Status = status
	default:
		return filter, shared.NewValidationError("status", "must be UNUSED, PARTIAL or USED")
	}
	if v := q.Get("needs_review"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return filter, shared.NewValidationError("needs_review", "must be a boolean")
		}
		filter.NeedsReview = &b
	}
	if v := q.Get("from"); v != "" {
		from, err := shared.ParseDate(v)
		if err != nil {
			return filter, err
		}
		filter.From = &from
	}
	if v := q.Get("to"); v != "" {
		to, err := shared.ParseDate(v)
		if err != nil {
			return filter, err
		}
		filter.To = &to
	}
	return filter, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("purchases request", slog.Any("error", err))
	}
}
