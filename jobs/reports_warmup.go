package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/harvest-erp/harvest/internal/jobs"
	"github.com/harvest-erp/harvest/internal/reports"
)

// ReportsWarmer loads the cached report views.
type ReportsWarmer interface {
	ParseRange(from, to string) (reports.Range, error)
	Dashboard(ctx context.Context, rng reports.Range) (reports.Dashboard, error)
	ProfitTrend(ctx context.Context, rng reports.Range) ([]reports.TrendPoint, error)
}

// ReportsWarmupJob pre-populates the report cache for the default range so
// the first dashboard load after a bump is served from Redis.
type ReportsWarmupJob struct {
	Reports ReportsWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(svc ReportsWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{Reports: svc, Logger: logger, Metrics: metrics}
}

// Handle processes report warmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ScheduledPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskReportsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	start := time.Now()
	rng, err := j.Reports.ParseRange("", "")
	if err != nil {
		return err
	}
	warmCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if _, err := j.Reports.Dashboard(warmCtx, rng); err != nil {
		logger.Error("warm dashboard", slog.Any("error", err))
		return err
	}
	if _, err := j.Reports.ProfitTrend(warmCtx, rng); err != nil {
		logger.Error("warm profit trend", slog.Any("error", err))
		return err
	}
	logger.Info("completed reports warmup", slog.Int("months", len(rng.Months())), slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReportsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskReportsWarmup))
}

func (j *ReportsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics()
}
