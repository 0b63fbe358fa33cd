package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/harvest-erp/harvest/internal/audit/http"
	"github.com/harvest-erp/harvest/internal/auth"
	"github.com/harvest-erp/harvest/internal/customers"
	"github.com/harvest-erp/harvest/internal/delivery"
	"github.com/harvest-erp/harvest/internal/documents"
	"github.com/harvest-erp/harvest/internal/inventory"
	"github.com/harvest-erp/harvest/internal/invoicing"
	"github.com/harvest-erp/harvest/internal/masterdata/categories"
	"github.com/harvest-erp/harvest/internal/masterdata/suppliers"
	"github.com/harvest-erp/harvest/internal/observability"
	"github.com/harvest-erp/harvest/internal/platform/httpx"
	"github.com/harvest-erp/harvest/internal/purchases"
	"github.com/harvest-erp/harvest/internal/rbac"
	"github.com/harvest-erp/harvest/internal/reports"
	"github.com/harvest-erp/harvest/internal/shared"
	"github.com/harvest-erp/harvest/internal/users"
	"github.com/harvest-erp/harvest/jobs"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics
	// Checks are pinged by /healthz, keyed by component name.
	Checks map[string]Pinger

	RBACMiddleware    rbac.Middleware
	AuthHandler       *auth.Handler
	UsersHandler      *users.Handler
	SuppliersHandler  *suppliers.Handler
	CategoriesHandler *categories.Handler
	CustomersHandler  *customers.Handler
	PurchasesHandler  *purchases.Handler
	InventoryHandler  *inventory.Handler
	DeliveryHandler   *delivery.Handler
	InvoicingHandler  *invoicing.Handler
	ReportsHandler    *reports.Handler
	DocumentsHandler  *documents.Handler
	AuditHandler      *audithttp.Handler
	JobHandler        *jobs.Handler
}

// NewRouter constructs the chi.Router with Harvest defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", healthHandler(params.Checks, params.Logger))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	mw := params.RBACMiddleware
	if params.AuthHandler != nil {
		r.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r, mw.Authenticate)
		})
	}

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate)
		adminOnly := mw.RequireRole(shared.RoleAdmin)

		if params.UsersHandler != nil {
			r.With(adminOnly).Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.SuppliersHandler != nil {
			r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
		}
		if params.CategoriesHandler != nil {
			r.Route("/categories", params.CategoriesHandler.MountRoutes)
		}
		if params.CustomersHandler != nil {
			r.Route("/customers", params.CustomersHandler.MountRoutes)
		}
		if params.PurchasesHandler != nil {
			r.Route("/purchases", params.PurchasesHandler.MountRoutes)
		}
		if params.InventoryHandler != nil {
			r.Route("/inventory", params.InventoryHandler.MountRoutes)
		}
		if params.DeliveryHandler != nil {
			r.Get("/deliveries.csv", params.DeliveryHandler.HandleCSV)
			r.Route("/deliveries", func(r chi.Router) {
				params.DeliveryHandler.MountRoutes(r)
				if params.DocumentsHandler != nil {
					params.DocumentsHandler.MountDeliveryRoutes(r)
				}
			})
		}
		if params.InvoicingHandler != nil {
			r.Route("/invoices", func(r chi.Router) {
				params.InvoicingHandler.MountRoutes(r, adminOnly)
				if params.DocumentsHandler != nil {
					params.DocumentsHandler.MountInvoiceRoutes(r)
				}
			})
		}
		if params.ReportsHandler != nil {
			r.Route("/reports", params.ReportsHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.With(adminOnly).Route("/audit-logs", params.AuditHandler.MountRoutes)
		}
	})

	return r
}

// healthHandler pings every check with a short deadline. Any failure turns
// the response into 503 with the failing component named.
func healthHandler(checks map[string]Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := map[string]string{}
		code := http.StatusOK
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check.Ping(ctx); err != nil {
				if logger != nil {
					logger.Warn("health check failed", slog.String("component", name), slog.Any("error", err))
				}
				status[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "ok"
		}
		overall := "ok"
		if code != http.StatusOK {
			overall = "degraded"
		}
		httpx.JSON(w, code, map[string]any{"status": overall, "components": status})
	}
}
