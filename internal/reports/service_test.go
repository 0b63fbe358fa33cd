package reports

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harvest-erp/harvest/internal/shared"
)

type mockRepo struct {
	mu            sync.Mutex
	purchases     map[string]decimal.Decimal
	deliveries    map[string]decimal.Decimal
	categories    []CategoryAmount
	suppliers     []SupplierRow
	purchaseCalls int
}

func (m *mockRepo) PurchaseTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purchaseCalls++
	return m.purchases, nil
}

func (m *mockRepo) DeliveryTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	return m.deliveries, nil
}

func (m *mockRepo) CategoryAmounts(ctx context.Context, from, to time.Time) ([]CategoryAmount, error) {
	return m.categories, nil
}

func (m *mockRepo) SupplierTotals(ctx context.Context, from, to time.Time) ([]SupplierRow, error) {
	return m.suppliers, nil
}

func (m *mockRepo) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purchaseCalls
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newTestService(t *testing.T, repo Repository) (*Service, *Cache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	svc := NewService(repo, cache)
	svc.now = func() time.Time { return time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC) }
	return svc, cache
}

func firstQuarter() Range {
	return Range{From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)}
}

func TestMonthlyCoversEveryMonth(t *testing.T) {
	repo := &mockRepo{
		purchases:  map[string]decimal.Decimal{"2025-01": d("1000")},
		deliveries: map[string]decimal.Decimal{"2025-01": d("1500"), "2025-03": d("-200")},
	}
	svc, _ := newTestService(t, repo)

	rows, err := svc.Monthly(context.Background(), firstQuarter())
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "2025-01", rows[0].Period)
	require.True(t, rows[0].Profit.Equal(d("500")))
	require.True(t, rows[0].ProfitRate.Equal(d("33.3")))
	require.Equal(t, "2025-02", rows[1].Period)
	require.True(t, rows[1].DeliveryAmount.IsZero())
	require.True(t, rows[1].ProfitRate.IsZero())
	require.True(t, rows[2].DeliveryAmount.Equal(d("-200")))
}

func TestEmptyRangeYieldsZeroTotals(t *testing.T) {
	svc, _ := newTestService(t, &mockRepo{})

	dash, err := svc.Dashboard(context.Background(), firstQuarter())
	require.NoError(t, err)
	require.Len(t, dash.Monthly, 3)
	require.Empty(t, dash.Categories)
	require.Empty(t, dash.Suppliers)
	require.True(t, dash.Totals.Profit.IsZero())
	require.True(t, dash.Totals.ProfitRate.IsZero())
}

func TestCacheServesUntilBump(t *testing.T) {
	repo := &mockRepo{purchases: map[string]decimal.Decimal{"2025-02": d("300")}}
	svc, cache := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.Monthly(ctx, firstQuarter())
	require.NoError(t, err)
	rows, err := svc.Monthly(ctx, firstQuarter())
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls())
	require.True(t, rows[1].PurchaseAmount.Equal(d("300")))

	require.NoError(t, cache.Bump(ctx))
	_, err = svc.Monthly(ctx, firstQuarter())
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls())
}

func TestCategoryComposition(t *testing.T) {
	vegetables := int64(1)
	repo := &mockRepo{categories: []CategoryAmount{
		{CategoryID: &vegetables, CategoryName: "Vegetables", Amount: d("7500")},
		{CategoryName: "", Amount: d("2500")},
	}}
	svc, _ := newTestService(t, repo)

	rows, err := svc.Categories(context.Background(), firstQuarter())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, rows[0].Percentage.Equal(d("75")))
	require.Equal(t, "Uncategorised", rows[1].CategoryName)
	require.True(t, rows[1].Percentage.Equal(d("25")))
}

func TestDashboardTotals(t *testing.T) {
	repo := &mockRepo{
		purchases:  map[string]decimal.Decimal{"2025-01": d("400"), "2025-02": d("400")},
		deliveries: map[string]decimal.Decimal{"2025-01": d("600"), "2025-03": d("400")},
		suppliers:  []SupplierRow{{SupplierID: 3, SupplierName: "Hokkaido Farms", PurchaseAmount: d("800"), PurchaseCount: 2}},
	}
	svc, _ := newTestService(t, repo)

	dash, err := svc.Dashboard(context.Background(), firstQuarter())
	require.NoError(t, err)
	require.True(t, dash.Totals.PurchaseAmount.Equal(d("800")))
	require.True(t, dash.Totals.DeliveryAmount.Equal(d("1000")))
	require.True(t, dash.Totals.ProfitRate.Equal(d("20")))
	require.Len(t, dash.Suppliers, 1)

	trend, err := svc.ProfitTrend(context.Background(), firstQuarter())
	require.NoError(t, err)
	require.Len(t, trend, 3)
	require.True(t, trend[1].ProfitRate.IsZero())
}

func TestParseRange(t *testing.T) {
	svc, _ := newTestService(t, &mockRepo{})

	rng, err := svc.ParseRange("", "")
	require.NoError(t, err)
	require.Equal(t, "2024-04", shared.Period(rng.From))
	require.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), rng.To)
	require.Len(t, rng.Months(), DefaultMonths)

	rng, err = svc.ParseRange("2025-01", "2025-02")
	require.NoError(t, err)
	require.Equal(t, []string{"2025-01", "2025-02"}, rng.Months())

	_, err = svc.ParseRange("2025-03", "2025-01")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.ParseRange("March", "")
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.ParseRange("2015-01", "2025-01")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMonthlyCSVEndpoint(t *testing.T) {
	repo := &mockRepo{purchases: map[string]decimal.Decimal{"2025-01": d("1000")}, deliveries: map[string]decimal.Decimal{"2025-01": d("1250")}}
	svc, _ := newTestService(t, repo)
	router := chi.NewRouter()
	router.Route("/reports", NewHandler(nil, svc).MountRoutes)

	req := httptest.NewRequest(http.MethodGet, "/reports/monthly.csv?from=2025-01&to=2025-01", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "text/csv; charset=utf-8", rr.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Equal(t, []string{"period,purchase_amount,delivery_amount,profit,profit_rate", "2025-01,1000,1250,250,20"}, lines)

	req = httptest.NewRequest(http.MethodGet, "/reports/monthly?from=bad", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestFetchJSONSurvivesCancelledLeader(t *testing.T) {
	_, cache := newTestService(t, &mockRepo{})
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	loader := func(ctx context.Context) (interface{}, error) {
		once.Do(func() { close(started) })
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return map[string]int{"deliveries": 7}, nil
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		var out map[string]int
		leaderErr <- cache.FetchJSON(leaderCtx, "reports:test", &out, loader)
	}()
	<-started

	followerDone := make(chan error, 1)
	var follower map[string]int
	go func() {
		followerDone <- cache.FetchJSON(context.Background(), "reports:test", &follower, loader)
	}()

	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	require.NoError(t, <-followerDone)
	require.Equal(t, 7, follower["deliveries"])
}
