package customers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/shared"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
	logger    *slog.Logger
}

func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, validator: httpx.NewValidator(), logger: logger}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters := shared.ListFiltersFromRequest(r)
	req := ListCustomersRequest{
		BillingCycle: BillingCycle(r.URL.Query().Get("billing_cycle")),
		Search:       filters.Search,
		SortBy:       filters.SortBy,
		Descending:   filters.Descending(),
		Limit:        filters.Limit(),
		Offset:       filters.Offset(),
	}
	customers, total, err := h.service.List(r.Context(), req)
	if err != nil {
		h.fail(w, "list customers", err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(customers, filters, total))
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "show customer", err)
		return
	}
	customer, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "show customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateCustomerRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, "create customer", err)
		return
	}
	customer, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, customer)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "update customer", err)
		return
	}
	var req UpdateCustomerRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, "update customer", err)
		return
	}
	customer, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, "delete customer", err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, "delete customer", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error(msg, slog.Any("error", err))
	}
}
