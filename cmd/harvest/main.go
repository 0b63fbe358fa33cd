package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/harvest-erp/harvest/internal/app"
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
	"github.com/harvest-erp/harvest/internal/platform/cache"
	"github.com/harvest-erp/harvest/internal/platform/db"
	"github.com/harvest-erp/harvest/internal/purchases"
	"github.com/harvest-erp/harvest/internal/rbac"
	"github.com/harvest-erp/harvest/internal/reports"
	"github.com/harvest-erp/harvest/internal/users"
	"github.com/harvest-erp/harvest/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	if err := app.LoadEnvFiles(); err != nil {
		slog.Default().Error("load env files", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	services, err := app.NewContainer(ctx, cfg, dbpool, redisClient, logger, metrics)
	if err != nil {
		logger.Error("wire services", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:  logger,
		Config:  cfg,
		Metrics: metrics,
		Checks: map[string]app.Pinger{
			"postgres": dbpool,
			"redis": app.PingFunc(func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			}),
		},
		RBACMiddleware:    rbac.Middleware{Sessions: services.Sessions, Logger: logger},
		AuthHandler:       auth.NewHandler(logger, services.Auth),
		UsersHandler:      users.NewHandler(logger, services.Users),
		SuppliersHandler:  suppliers.NewHandler(logger, services.Suppliers),
		CategoriesHandler: categories.NewHandler(logger, services.Categories),
		CustomersHandler:  customers.NewHandler(services.Customers, logger),
		PurchasesHandler:  purchases.NewHandler(logger, services.Purchases),
		InventoryHandler:  inventory.NewHandler(logger, services.Inventory),
		DeliveryHandler:   delivery.NewHandler(logger, services.Delivery),
		InvoicingHandler:  invoicing.NewHandler(logger, services.Invoicing),
		ReportsHandler:    reports.NewHandler(logger, services.Reports),
		DocumentsHandler:  documents.NewHandler(logger, services.Documents, jobClient),
		AuditHandler:      audithttp.NewHandler(logger, services.Timeline),
		JobHandler:        jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
