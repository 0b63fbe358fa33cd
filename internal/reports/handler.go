package reports

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/reports/export"
)

// Handler exposes report endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes. Every route takes optional from and to
// months (YYYY-MM).
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/dashboard", h.handleDashboard)
	r.Get("/monthly", h.handleMonthly)
	r.Get("/monthly.csv", h.handleMonthlyCSV)
	r.Get("/categories", h.handleCategories)
	r.Get("/categories.csv", h.handleCategoriesCSV)
	r.Get("/suppliers", h.handleSuppliers)
	r.Get("/suppliers.csv", h.handleSuppliersCSV)
	r.Get("/profit-trend", h.handleProfitTrend)
}

func (h *Handler) rangeFrom(r *http.Request) (Range, error) {
	q := r.URL.Query()
	return h.service.ParseRange(q.Get("from"), q.Get("to"))
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeFrom(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	data, err := h.service.Dashboard(r.Context(), rng)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, data)
}

func (h *Handler) handleMonthly(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeFrom(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.service.Monthly(r.Context(), rng)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handleMonthlyCSV(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeFrom(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.service.Monthly(r.Context(), rng)
	if err != nil {
		h.fail(w, err)
		return
	}
	table := export.Table{Columns: []string{"period", "purchase_amount", "delivery_amount", "profit", "profit_rate"}}
	for _, row := range rows {
		table.AddRow(row.Period, export.Decimal(row.PurchaseAmount), export.Decimal(row.DeliveryAmount),
			export.Decimal(row.Profit), export.Decimal(row.ProfitRate))
	}
	h.serveCSV(w, "monthly_"+rng.key()+".csv", table)
}

func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeFrom(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.service.Categories(r.Context(), rng)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handleCategoriesCSV(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeFrom(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.service.Categories(r.Context(), rng)
	if err != nil {
		h.fail(w, err)
		return
	}
	table := export.Table{Columns: []string{"category_id", "category", "amount", "percentage"}}
	for _, row := range rows {
		id := ""
		if row.CategoryID != nil {
			id = strconv.FormatInt(*row.CategoryID, 10)
		}
		table.AddRow(id, row.CategoryName, export.Decimal(row.Amount), export.Decimal(row.Percentage))
	}
	h.serveCSV(w, "categories_"+rng.key()+".csv", table)
}

func (h *Handler) handleSuppliers(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeFrom(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.service.Suppliers(r.Context(), rng)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rows)
}

func (h *Handler) handleSuppliersCSV(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeFrom(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	rows, err := h.service.Suppliers(r.Context(), rng)
	if err != nil {
		h.fail(w, err)
		return
	}
	table := export.Table{Columns: []string{"supplier_id", "supplier", "purchase_amount", "purchase_count"}}
	for _, row := range rows {
		table.AddRow(strconv.FormatInt(row.SupplierID, 10), row.SupplierName, export.Decimal(row.PurchaseAmount),
			strconv.Itoa(row.PurchaseCount))
	}
	h.serveCSV(w, "suppliers_"+rng.key()+".csv", table)
}

func (h *Handler) handleProfitTrend(w http.ResponseWriter, r *http.Request) {
	rng, err := h.rangeFrom(r)
	if err != nil {
		h.fail(w, err)
		return
	}
	points, err := h.service.ProfitTrend(r.Context(), rng)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, points)
}

func (h *Handler) serveCSV(w http.ResponseWriter, filename string, table export.Table) {
	if err := export.ServeCSV(w, filename, table); err != nil && h.logger != nil {
		h.logger.Error("reports csv write", slog.Any("error", err))
	}
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if status := httpx.RespondError(w, err); status >= http.StatusInternalServerError && h.logger != nil {
		h.logger.Error("reports request failed", slog.Any("error", err))
	}
}
