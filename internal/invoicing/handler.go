package invoicing

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/shared"
)

// Handler exposes invoice endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers invoice routes. adminOnly guards voiding.
func (h *Handler) MountRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Get("/summary", h.handleSummary)
	r.Get("/", h.handleList)
	r.Post("/", h.handleGenerate)
	r.Get("/{id}", h.handleShow)
	r.With(adminOnly).Post("/{id}/void", h.handleVoid)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	year, err := httpx.QueryInt(r, "year")
	if err != nil {
		h.fail(w, err)
		return
	}
	month, err := httpx.QueryInt(r, "month")
	if err != nil {
		h.fail(w, err)
		return
	}
	customerID, err := httpx.QueryInt64(r, "customer_id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var customer int64
	if customerID != nil {
		customer = *customerID
	}
	summary, err := h.service.Summarize(r.Context(), year, month, customer)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := shared.ListFiltersFromRequest(r)
	q := r.URL.Query()
	filter := ListFilter{Status: Status(q.Get("status")), Limit: page.Limit(), Offset: page.Offset()}
	filter.Year, _ = strconv.Atoi(q.Get("year"))
	filter.Month, _ = strconv.Atoi(q.Get("month"))
	customerID, err := httpx.QueryInt64(r, "customer_id")
	if err != nil {
		h.fail(w, err)
		return
	}
	if customerID != nil {
		filter.CustomerID = *customerID
	}
	invoices, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(invoices, page, total))
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, err)
		return
	}
	inv, err := h.service.GenerateInvoice(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handleVoid(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	inv, err := h.service.Void(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("invoices request failed", slog.Any("error", err))
	}
}
