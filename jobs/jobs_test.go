package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harvest-erp/harvest/internal/documents"
	"github.com/harvest-erp/harvest/internal/inventory"
	jobmetrics "github.com/harvest-erp/harvest/internal/jobs"
	"github.com/harvest-erp/harvest/internal/shared"
)

type stubExporter struct {
	err   error
	kinds []string
}

func (s *stubExporter) ExportDelivery(_ context.Context, id int64) (documents.Document, error) {
	s.kinds = append(s.kinds, documents.KindDelivery)
	return documents.Document{ID: "doc"}, s.err
}

func (s *stubExporter) ExportInvoice(_ context.Context, id int64) (documents.Document, error) {
	s.kinds = append(s.kinds, documents.KindInvoice)
	return documents.Document{ID: "doc"}, s.err
}

func exportTask(t *testing.T, kind string, id int64) *asynq.Task {
	t.Helper()
	task, err := NewDocumentExportTask(kind, id)
	require.NoError(t, err)
	return task
}

func TestDocumentExportTaskPayload(t *testing.T) {
	task := exportTask(t, documents.KindInvoice, 12)
	require.Equal(t, TaskDocumentExport, task.Type())
	var payload DocumentExportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, DocumentExportPayload{Kind: documents.KindInvoice, ID: 12}, payload)

	_, err := NewDocumentExportTask(documents.KindDelivery, 0)
	require.Error(t, err)
}

func TestDocumentExportJobDispatchesByKind(t *testing.T) {
	exporter := &stubExporter{}
	job := NewDocumentExportJob(exporter, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	require.NoError(t, job.Handle(context.Background(), exportTask(t, documents.KindDelivery, 1)))
	require.NoError(t, job.Handle(context.Background(), exportTask(t, documents.KindInvoice, 2)))
	require.Equal(t, []string{documents.KindDelivery, documents.KindInvoice}, exporter.kinds)

	bad := asynq.NewTask(TaskDocumentExport, []byte(`{"kind":"receipt","id":3}`))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	garbled := asynq.NewTask(TaskDocumentExport, []byte(`{`))
	require.ErrorIs(t, job.Handle(context.Background(), garbled), asynq.SkipRetry)
}

func TestDocumentExportJobRetriesOnlyQuotaFailures(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		retry bool
	}{
		{"quota", &documents.ExportError{Kind: documents.ErrQuotaExceeded, Op: "write cells"}, true},
		{"network", &documents.ExportError{Kind: documents.ErrNetwork, Op: "copy template"}, false},
		{"permission", &documents.ExportError{Kind: documents.ErrPermissionDenied, Op: "copy template"}, false},
		{"not configured", documents.ErrNotConfigured, false},
		{"missing record", fmt.Errorf("delivery %w", shared.ErrNotFound), false},
		{"generic export failure", &documents.ExportError{Kind: documents.ErrExportFailed, Op: "write cells"}, false},
		{"unclassified", errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			job := NewDocumentExportJob(&stubExporter{err: tc.err}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
			err := job.Handle(context.Background(), exportTask(t, documents.KindDelivery, 1))
			require.Error(t, err)
			require.Equal(t, !tc.retry, errors.Is(err, asynq.SkipRetry))
		})
	}
}

type stubScanner struct {
	lots    []inventory.Item
	summary inventory.Summary
	err     error
}

func (s stubScanner) ExpiringLots(context.Context) ([]inventory.Item, inventory.Summary, error) {
	return s.lots, s.summary, s.err
}

func gaugeValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetValue() == label {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, label)
	return 0
}

func TestInventoryExpiryScanPublishesLotHealth(t *testing.T) {
	days := 1
	scanner := stubScanner{
		lots: []inventory.Item{{PurchaseID: 4, ProductName: "Spinach", RemainingQuantity: decimal.NewFromInt(3), Health: inventory.HealthUrgent, DaysUntilExpiry: &days}},
		summary: inventory.Summary{
			LotCount: 5,
			ByHealth: map[inventory.Health]int{
				inventory.HealthExpired: 0,
				inventory.HealthUrgent:  1,
				inventory.HealthWarning: 1,
				inventory.HealthGood:    3,
			},
		},
	}
	reg := prometheus.NewRegistry()
	job := NewInventoryExpiryScanJob(scanner, nil, jobmetrics.NewMetrics(reg))
	task, err := NewInventoryExpiryScanTask(time.Now())
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, 1.0, gaugeValue(t, reg, "harvest_inventory_lots", "urgent"))
	require.Equal(t, 3.0, gaugeValue(t, reg, "harvest_inventory_lots", "good"))
	require.Equal(t, 0.0, gaugeValue(t, reg, "harvest_inventory_lots", "expired"))
}

func TestInventoryExpiryScanSurfacesErrors(t *testing.T) {
	job := NewInventoryExpiryScanJob(stubScanner{err: errors.New("db down")}, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	task, err := NewInventoryExpiryScanTask(time.Now())
	require.NoError(t, err)
	require.EqualError(t, job.Handle(context.Background(), task), "db down")
}

func TestNewTaskByName(t *testing.T) {
	task, err := NewTaskByName(TaskReportsWarmup, time.Now())
	require.NoError(t, err)
	require.Equal(t, TaskReportsWarmup, task.Type())

	_, err = NewTaskByName("ledger:rebuild", time.Now())
	require.Error(t, err)
	require.Equal(t, []string{TaskInventoryExpiryScan, TaskReportsWarmup}, TriggerableTasks())
}

type stubInspector map[string]*asynq.QueueInfo

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, ok := s[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestHealthReportsQueues(t *testing.T) {
	h := NewHandler(stubInspector{
		QueueDefault: {Queue: QueueDefault, Pending: 2},
		QueueExports: {Queue: QueueExports, Pending: 1, Retry: 1, Archived: 2},
	}, nil)
	r := chi.NewRouter()
	r.Route("/jobs", h.MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queues":[{"queue":"default","pending":2,"failed":0},{"queue":"exports","pending":1,"failed":3}]}`, rec.Body.String())
}

type failingInspector struct{}

func (failingInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return nil, errors.New("redis: connection refused")
}

func TestHealthReportsUnavailableQueue(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(failingInspector{}, nil).MountRoutes)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	r = chi.NewRouter()
	r.Route("/jobs", NewHandler(nil, nil).MountRoutes)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queues":[]}`, rec.Body.String())
}
