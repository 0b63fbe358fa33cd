package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/harvest-erp/harvest/internal/documents"
	jobmetrics "github.com/harvest-erp/harvest/internal/jobs"
)

// Exporter is the slice of the documents service the export job drives.
type Exporter interface {
	ExportDelivery(ctx context.Context, id int64) (documents.Document, error)
	ExportInvoice(ctx context.Context, id int64) (documents.Document, error)
}

// DocumentExportJob runs queued exports.
type DocumentExportJob struct {
	Exporter Exporter
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewDocumentExportJob wires dependencies for the export handler.
func NewDocumentExportJob(exporter Exporter, logger *slog.Logger, metrics *jobmetrics.Metrics) *DocumentExportJob {
	return &DocumentExportJob{Exporter: exporter, Logger: logger, Metrics: metrics}
}

// Handle processes document export tasks. Only quota failures are retried.
func (j *DocumentExportJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Exporter == nil {
		return errors.New("document export: handler not configured")
	}
	var payload DocumentExportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	tracker := j.metrics().Track(TaskDocumentExport)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("kind", payload.Kind), slog.Int64("id", payload.ID))
	var (
		doc documents.Document
		err error
	)
	switch payload.Kind {
	case documents.KindDelivery:
		doc, err = j.Exporter.ExportDelivery(ctx, payload.ID)
	case documents.KindInvoice:
		doc, err = j.Exporter.ExportInvoice(ctx, payload.ID)
	default:
		logger.Error("unknown document kind")
		return fmt.Errorf("document export: unknown kind %q: %w", payload.Kind, asynq.SkipRetry)
	}
	if err != nil {
		if permanent(err) {
			logger.Error("document export failed permanently", slog.Any("error", err))
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		logger.Warn("document export failed, will retry", slog.Any("error", err))
		return err
	}
	logger.Info("document exported", slog.String("document_id", doc.ID))
	return nil
}

// permanent reports failures the queue must not retry. Only rate limiting
// is transient; everything else leaves the record in ERROR for an operator
// to re-export.
func permanent(err error) bool {
	return !errors.Is(err, documents.ErrQuotaExceeded)
}

func (j *DocumentExportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDocumentExport))
	}
	return slog.Default().With(slog.String("job", TaskDocumentExport))
}

func (j *DocumentExportJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics()
}
