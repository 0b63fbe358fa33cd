package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()

	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/deliveries/{id}")

	req := httptest.NewRequest(http.MethodGet, "/deliveries/4", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	require.Contains(t, body, `harvest_http_requests_total{code="418",route="/deliveries/{id}"} 1`)
	require.Contains(t, body, `harvest_http_request_duration_seconds_bucket{route="/deliveries/{id}"`)
}

func TestDomainCounters(t *testing.T) {
	metrics := NewMetrics()
	metrics.StockRejected()
	metrics.StockRejected()
	metrics.InvoiceGenerated()
	metrics.ExportFinished("delivery", nil)
	metrics.ExportFinished("delivery", errors.New("quota"))

	body := scrape(t, metrics)
	require.Contains(t, body, "harvest_stock_rejections_total 2")
	require.Contains(t, body, "harvest_invoices_generated_total 1")
	require.Contains(t, body, `harvest_document_exports_total{kind="delivery",result="failure"} 1`)
	require.Contains(t, body, `harvest_document_exports_total{kind="delivery",result="success"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var metrics *Metrics
	metrics.StockRejected()
	metrics.ExportFinished("invoice", nil)

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
