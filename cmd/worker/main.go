package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harvest-erp/harvest/internal/app"
	jobmetrics "github.com/harvest-erp/harvest/internal/jobs"
	"github.com/harvest-erp/harvest/internal/platform/cache"
	"github.com/harvest-erp/harvest/internal/platform/db"
	"github.com/harvest-erp/harvest/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

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

	services, err := app.NewContainer(ctx, cfg, pool, redisClient, logger, nil)
	if err != nil {
		logger.Error("wire services", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := jobmetrics.NewMetrics(nil)
	exportJob := jobs.NewDocumentExportJob(services.Documents, logger, metrics)
	expiryJob := jobs.NewInventoryExpiryScanJob(services.Inventory, logger, metrics)
	warmupJob := jobs.NewReportsWarmupJob(services.Reports, logger, metrics)

	expiryTask, err := jobs.NewInventoryExpiryScanTask(time.Time{})
	if err != nil {
		logger.Error("build expiry scan task", slog.Any("error", err))
		os.Exit(1)
	}
	warmupTask, err := jobs.NewReportsWarmupTask(time.Time{})
	if err != nil {
		logger.Error("build warmup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskDocumentExport, Handler: exportJob.Handle},
			{Type: jobs.TaskInventoryExpiryScan, Handler: expiryJob.Handle},
			{Type: jobs.TaskReportsWarmup, Handler: warmupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "30 5 * * *", Task: warmupTask},
			{Spec: "0 6 * * *", Task: expiryTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
