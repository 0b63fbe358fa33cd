package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/harvest-erp/harvest/internal/inventory"
	jobmetrics "github.com/harvest-erp/harvest/internal/jobs"
)

func defaultJobMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(nil)
}

// ExpiryScanner lists lots that are expired or close to expiry.
type ExpiryScanner interface {
	ExpiringLots(ctx context.Context) ([]inventory.Item, inventory.Summary, error)
}

// InventoryExpiryScanJob publishes lot health counts and logs the lots that
// need attention.
type InventoryExpiryScanJob struct {
	Inventory ExpiryScanner
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewInventoryExpiryScanJob wires dependencies for the scan handler.
func NewInventoryExpiryScanJob(inv ExpiryScanner, logger *slog.Logger, metrics *jobmetrics.Metrics) *InventoryExpiryScanJob {
	return &InventoryExpiryScanJob{Inventory: inv, Logger: logger, Metrics: metrics}
}

// Handle processes expiry scan tasks.
func (j *InventoryExpiryScanJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Inventory == nil {
		return errors.New("inventory expiry scan: handler not configured")
	}
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	metrics := j.metrics()
	tracker := metrics.Track(TaskInventoryExpiryScan)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()
	lots, summary, err := j.Inventory.ExpiringLots(ctx)
	if err != nil {
		logger.Error("load expiring lots", slog.Any("error", err))
		return err
	}
	for _, h := range inventory.Healths {
		metrics.SetLotHealth(string(h), summary.ByHealth[h])
	}
	for _, lot := range lots {
		attrs := []any{
			slog.Int64("purchase_id", lot.PurchaseID),
			slog.String("product", lot.ProductName),
			slog.String("remaining", lot.RemainingQuantity.String()),
			slog.String("health", string(lot.Health)),
		}
		if lot.DaysUntilExpiry != nil {
			attrs = append(attrs, slog.Int("days_until_expiry", *lot.DaysUntilExpiry))
		}
		logger.Warn("lot needs attention", attrs...)
	}
	logger.Info("completed expiry scan",
		slog.Int("open_lots", summary.LotCount),
		slog.Int("expiring", len(lots)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *InventoryExpiryScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskInventoryExpiryScan))
	}
	return slog.Default().With(slog.String("job", TaskInventoryExpiryScan))
}

func (j *InventoryExpiryScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics()
}
