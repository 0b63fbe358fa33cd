package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/harvest-erp/harvest/internal/audit"
	"github.com/harvest-erp/harvest/internal/auth"
	"github.com/harvest-erp/harvest/internal/customers"
	"github.com/harvest-erp/harvest/internal/delivery"
	"github.com/harvest-erp/harvest/internal/documents"
	"github.com/harvest-erp/harvest/internal/inventory"
	"github.com/harvest-erp/harvest/internal/invoicing"
	"github.com/harvest-erp/harvest/internal/masterdata/categories"
	"github.com/harvest-erp/harvest/internal/masterdata/suppliers"
	"github.com/harvest-erp/harvest/internal/observability"
	"github.com/harvest-erp/harvest/internal/purchases"
	"github.com/harvest-erp/harvest/internal/reports"
	"github.com/harvest-erp/harvest/internal/shared"
	"github.com/harvest-erp/harvest/internal/users"
)

// Container holds the services shared by the API server, the worker and the
// admin CLI.
type Container struct {
	Sessions *shared.SessionStore
	Audit    *shared.AuditLogger

	Auth       *auth.Service
	Users      *users.Service
	Suppliers  *suppliers.Service
	Categories *categories.Service
	Customers  *customers.Service
	Purchases  *purchases.Service
	Inventory  *inventory.Service
	Delivery   *delivery.Service
	Invoicing  *invoicing.Service
	Reports    *reports.Service
	Documents  *documents.Service
	Timeline   *audit.Service
}

// NewContainer wires every domain service against the pool and Redis client.
// metrics may be nil when the caller does not expose Prometheus collectors.
func NewContainer(ctx context.Context, cfg *Config, pool *pgxpool.Pool, redisClient *redis.Client, logger *slog.Logger, metrics *observability.Metrics) (*Container, error) {
	policy, err := invoicing.ParseEndOfMonthPolicy(cfg.InvoiceEndOfMonthPolicy)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Sessions: shared.NewSessionStore(redisClient, cfg.SessionTTL),
		Audit:    shared.NewAuditLogger(pool, logger),
		Timeline: audit.NewService(audit.NewRepository(pool)),
	}

	reportsCache := reports.NewCache(redisClient, cfg.ReportCacheTTL)
	c.Reports = reports.NewService(reports.NewRepository(pool), reportsCache)

	c.Users = users.NewService(users.NewRepository(pool), users.ServiceConfig{
		Audit:    c.Audit,
		Sessions: c.Sessions,
		Logger:   logger,
	})
	c.Auth = auth.NewService(users.NewRepository(pool), c.Sessions, c.Audit, logger)

	c.Suppliers = suppliers.NewService(suppliers.NewRepository(pool), c.Audit)
	c.Categories = categories.NewService(categories.NewRepository(pool), c.Audit)
	c.Customers = customers.NewService(customers.NewRepository(pool), c.Audit)
	c.Purchases = purchases.NewService(purchases.NewRepository(pool), c.Audit, reportsCache, logger)

	invCfg := inventory.ServiceConfig{
		Thresholds: inventory.Thresholds{UrgentDays: cfg.InventoryUrgentDays, WarningDays: cfg.InventoryWarningDays},
		Logger:     logger,
	}
	delCfg := delivery.ServiceConfig{Audit: c.Audit, Notifier: reportsCache, Logger: logger}
	invoiceCfg := invoicing.ServiceConfig{Policy: policy, Audit: c.Audit, Notifier: reportsCache, Logger: logger}
	docCfg := documents.ServiceConfig{
		Templates: documents.Templates{Delivery: cfg.SheetsDeliveryTemplateID, Invoice: cfg.SheetsInvoiceTemplateID},
		Audit:     c.Audit,
		Logger:    logger,
	}
	if metrics != nil {
		invCfg.Observer = metrics
		delCfg.Observer = metrics
		invoiceCfg.Observer = metrics
		docCfg.Observer = metrics
	}
	c.Inventory = inventory.NewService(inventory.NewRepository(pool), c.Audit, invCfg)
	c.Delivery = delivery.NewService(delivery.NewRepository(pool), delCfg)
	c.Invoicing = invoicing.NewService(invoicing.NewRepository(pool), invoiceCfg)

	if cfg.ExportConfigured() {
		exporter, err := documents.NewSheetsExporter(ctx, documents.SheetsConfig{
			CredentialsFile: cfg.GoogleCredentialsFile,
			CredentialsJSON: cfg.GoogleCredentialsJSON,
			FolderID:        cfg.DriveFolderID,
			Layouts: map[string]documents.Layout{
				cfg.SheetsDeliveryTemplateID: documents.DeliveryLayout,
				cfg.SheetsInvoiceTemplateID:  documents.InvoiceLayout,
			},
			MaxRetries:   cfg.ExportMaxRetries,
			RetryInitial: cfg.ExportRetryInitial,
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("app: sheets exporter: %w", err)
		}
		docCfg.Exporter = exporter
	} else {
		logger.Info("document export disabled; google credentials or templates missing")
	}
	docCfg.Deliveries = c.Delivery
	docCfg.Invoices = c.Invoicing
	docCfg.Customers = c.Customers
	c.Documents = documents.NewService(docCfg)

	return c, nil
}
