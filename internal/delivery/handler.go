package delivery

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/reports/export"
	"github.com/harvest-erp/harvest/internal/shared"
)

// Handler exposes delivery endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: httpx.NewValidator()}
}

// MountRoutes registers delivery routes. Document export is mounted by the
// documents handler.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleShow)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/status", h.handleStatus)
	r.Post("/{id}/cancel", h.handleCancel)
	r.Post("/{id}/items/{itemID}/link", h.handleLink)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := shared.ListFiltersFromRequest(r)
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	filter.Limit = page.Limit()
	filter.Offset = page.Offset()
	items, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shared.NewPage(items, page, total))
}

// HandleCSV streams every delivery matching the list filters as CSV.
func (h *Handler) HandleCSV(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	deliveries, _, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, err)
		return
	}
	table := export.Table{Columns: []string{"id", "delivery_date", "customer_id", "customer", "type", "mode", "status", "total_amount", "invoice_id"}}
	for _, d := range deliveries {
		invoice := ""
		if d.InvoiceID != nil {
			invoice = strconv.FormatInt(*d.InvoiceID, 10)
		}
		table.AddRow(
			strconv.FormatInt(d.ID, 10),
			d.DeliveryDate.Format(shared.DateLayout),
			strconv.FormatInt(d.CustomerID, 10),
			d.CustomerName,
			string(d.Type),
			string(d.Mode),
			string(d.Status),
			export.Decimal(d.TotalAmount),
			invoice,
		)
	}
	if err := export.ServeCSV(w, "deliveries.csv", table); err != nil && h.logger != nil {
		h.logger.Error("write deliveries csv", slog.Any("error", err))
	}
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, err)
		return
	}
	d, err := h.service.Create(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req UpdateRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, err)
		return
	}
	d, err := h.service.Update(r.Context(), id, req)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
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

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req StatusRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, err)
		return
	}
	d, err := h.service.SetStatus(r.Context(), id, req.Status)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	d, err := h.service.Cancel(r.Context(), id)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) handleLink(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		h.fail(w, err)
		return
	}
	itemID, err := httpx.IDParam(r, "itemID")
	if err != nil {
		h.fail(w, err)
		return
	}
	var req LinkRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		h.fail(w, err)
		return
	}
	d, err := h.service.LinkLine(r.Context(), id, itemID, req.PurchaseID)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	q := r.URL.Query()
	var filter ListFilter
	customer, err := httpx.QueryInt64(r, "customer_id")
	if err != nil {
		return filter, err
	}
	if customer != nil {
		filter.CustomerID = *customer
	}
	switch status := Status(q.Get("status")); status {
	case "", StatusPending, StatusDelivered, StatusCancelled, StatusError, StatusInvoiced:
		filter.Status = status
	default:
		return filter, shared.NewValidationError("status", "is not a delivery status")
	}
	switch typ := Type(q.Get("type")); typ {
	case "", TypeNormal, TypeReturn:
		filter.Type = typ
	default:
		return filter, shared.NewValidationError("type", "must be NORMAL or RETURN")
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
		h.logger.Error("delivery request", slog.Any("error", err))
	}
}
