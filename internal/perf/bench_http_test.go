package perf

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/harvest-erp/harvest/internal/app"
	"github.com/harvest-erp/harvest/internal/rbac"
	_ "github.com/harvest-erp/harvest/testing"
)

func newHealthRouter() http.Handler {
	ok := app.PingFunc(func(context.Context) error { return nil })
	return app.NewRouter(app.RouterParams{
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:         &app.Config{RateLimitPerMinute: 1000000},
		Checks:         map[string]app.Pinger{"postgres": ok, "redis": ok},
		RBACMiddleware: rbac.Middleware{},
	})
}

func TestHealthLatencyTarget(t *testing.T) {
	router := newHealthRouter()
	samples := make([]time.Duration, 0, 200)
	for i := 0; i < 200; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		start := time.Now()
		router.ServeHTTP(rec, req)
		samples = append(samples, time.Since(start))
		if rec.Code != http.StatusOK {
			t.Fatalf("healthz returned %d", rec.Code)
		}
	}
	if p95 := percentile95(samples); p95 > 50*time.Millisecond {
		t.Fatalf("healthz latency regression: p95=%s threshold=50ms", p95)
	}
}

func BenchmarkHealthz(b *testing.B) {
	router := newHealthRouter()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	index := int(float64(len(sorted)-1) * 0.95)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
