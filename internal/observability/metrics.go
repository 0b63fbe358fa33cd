package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the API process.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	stockRejections prometheus.Counter
	invoices        prometheus.Counter
	exports         *prometheus.CounterVec
}

// NewMetrics initialises the registry and the base collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "harvest_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	stock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvest_stock_rejections_total",
		Help: "Consumes rejected because the lot had insufficient remaining quantity.",
	})
	invoices := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "harvest_invoices_generated_total",
		Help: "Invoices generated.",
	})
	exports := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_document_exports_total",
		Help: "Document exports by kind and result.",
	}, []string{"kind", "result"})
	registry.MustRegister(requests, duration, stock, invoices, exports,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		stockRejections: stock,
		invoices:        invoices,
		exports:         exports,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

// StockRejected counts a consume refused for insufficient stock.
func (m *Metrics) StockRejected() {
	if m == nil {
		return
	}
	m.stockRejections.Inc()
}

// InvoiceGenerated counts a generated invoice.
func (m *Metrics) InvoiceGenerated() {
	if m == nil {
		return
	}
	m.invoices.Inc()
}

// ExportFinished counts a document export attempt.
func (m *Metrics) ExportFinished(kind string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.exports.WithLabelValues(kind, result).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
