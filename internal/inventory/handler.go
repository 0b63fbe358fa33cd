package inventory

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/shared"
)

// Handler wires HTTP endpoints for the inventory view.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs inventory handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Get("/summary", h.handleSummary)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	page := shared.ListFiltersFromRequest(r)
	filter.Limit = page.Limit()
	filter.Offset = page.Offset()
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	summary, err := h.service.Summary(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func parseFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filter := Filter{
		Status: Status(q.Get("status")),
		Health: Health(q.Get("health")),
		Search: q.Get("q"),
	}
	switch filter.Status {
	case "", StatusUnused, StatusPartial, StatusUsed:
	default:
		return Filter{}, shared.NewValidationError("status", "must be UNUSED, PARTIAL or USED")
	}
	switch filter.Health {
	case "", HealthExpired, HealthUrgent, HealthWarning, HealthGood:
	default:
		return Filter{}, shared.NewValidationError("health", "must be expired, urgent, warning or good")
	}
	if v := q.Get("include_used"); v != "" {
		include, err := strconv.ParseBool(v)
		if err != nil {
			return Filter{}, shared.NewValidationError("include_used", "must be a boolean")
		}
		filter.IncludeUsed = include
	}
	category, err := httpx.QueryInt64(r, "category_id")
	if err != nil {
		return Filter{}, err
	}
	if category != nil {
		filter.CategoryID = *category
	}
	supplier, err := httpx.QueryInt64(r, "supplier_id")
	if err != nil {
		return Filter{}, err
	}
	if supplier != nil {
		filter.SupplierID = *supplier
	}
	return filter, nil
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("inventory request", slog.Any("error", err))
	}
}
