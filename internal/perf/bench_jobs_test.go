package perf

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/harvest-erp/harvest/internal/documents"
	jobmetrics "github.com/harvest-erp/harvest/internal/jobs"
	"github.com/harvest-erp/harvest/jobs"
)

type timedExporter struct {
	delay time.Duration
	fail  map[int64]bool
}

func (e timedExporter) export(id int64) (documents.Document, error) {
	time.Sleep(e.delay)
	if e.fail[id] {
		return documents.Document{}, &documents.ExportError{Kind: documents.ErrQuotaExceeded, Op: "copy template", Err: errors.New("rate limited")}
	}
	return documents.Document{ID: "sheet", URL: "https://docs.google.com/spreadsheets/d/sheet"}, nil
}

func (e timedExporter) ExportDelivery(_ context.Context, id int64) (documents.Document, error) {
	return e.export(id)
}

func (e timedExporter) ExportInvoice(_ context.Context, id int64) (documents.Document, error) {
	return e.export(id)
}

func TestDocumentExportThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	exporter := timedExporter{delay: 5 * time.Millisecond, fail: map[int64]bool{7: true, 19: true, 33: true}}
	job := jobs.NewDocumentExportJob(exporter, nil, metrics)

	for id := int64(1); id <= 60; id++ {
		kind := documents.KindDelivery
		if id%4 == 0 {
			kind = documents.KindInvoice
		}
		task, err := jobs.NewDocumentExportTask(kind, id)
		if err != nil {
			t.Fatalf("build task %d: %v", id, err)
		}
		err = job.Handle(context.Background(), task)
		if exporter.fail[id] {
			if err == nil || errors.Is(err, asynq.SkipRetry) {
				t.Fatalf("task %d: quota errors must stay retryable, got %v", id, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("task %d: %v", id, err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "harvest_jobs_total", map[string]string{"job": jobs.TaskDocumentExport, "status": "success"})
	failure := metricValue(t, families, "harvest_jobs_total", map[string]string{"job": jobs.TaskDocumentExport, "status": "failure"})
	if success != 57 || failure != 3 {
		t.Fatalf("expected 57 successes and 3 failures, got %v and %v", success, failure)
	}
	if ratio := success / (success + failure); ratio < 0.9 {
		t.Fatalf("export success ratio too low: %f", ratio)
	}

	mean := histogramMean(t, families, "harvest_job_duration_seconds", map[string]string{"job": jobs.TaskDocumentExport})
	if mean > 0.5 {
		t.Fatalf("export duration above budget: %f", mean)
	}
}

func BenchmarkDocumentExportJob(b *testing.B) {
	job := jobs.NewDocumentExportJob(timedExporter{}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := jobs.NewDocumentExportTask(documents.KindInvoice, 1)
	if err != nil {
		b.Fatal(err)
	}
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := job.Handle(ctx, task); err != nil {
			b.Fatal(err)
		}
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	matched := 0
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
			matched++
		}
	}
	return matched == len(labels)
}
