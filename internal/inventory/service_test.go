package inventory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type viewRepo struct {
	memoryStore
	items []Item
}

func (r *viewRepo) ListItems(ctx context.Context, filter Filter) ([]Item, error) {
	return r.items, nil
}

func TestListDerivesValuationAndHealth(t *testing.T) {
	soon := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)
	past := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	repo := &viewRepo{items: []Item{
		{PurchaseID: 1, Quantity: dec("10"), RemainingQuantity: dec("4"), UnitPrice: dec("150"), ExpiryDate: &past, Status: StatusPartial},
		{PurchaseID: 2, Quantity: dec("5"), RemainingQuantity: dec("5"), UnitPrice: dec("200"), ExpiryDate: &soon, Status: StatusUnused},
		{PurchaseID: 3, Quantity: dec("2"), RemainingQuantity: dec("2"), UnitPrice: dec("1000"), Status: StatusUnused},
	}}
	svc := NewService(repo, nil, ServiceConfig{})
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }

	items, total, err := svc.List(context.Background(), Filter{Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, items, 2)
	require.True(t, items[0].Valuation.Equal(dec("600")))
	require.Equal(t, HealthExpired, items[0].Health)
	require.Equal(t, -9, *items[0].DaysUntilExpiry)
	require.Equal(t, HealthUrgent, items[1].Health)

	urgent, _, err := svc.List(context.Background(), Filter{Health: HealthUrgent})
	require.NoError(t, err)
	require.Len(t, urgent, 1)
	require.Equal(t, int64(2), urgent[0].PurchaseID)

	summary, err := svc.Summary(context.Background(), Filter{})
	require.NoError(t, err)
	require.Equal(t, 3, summary.LotCount)
	require.True(t, summary.TotalValuation.Equal(dec("3600")))
	require.Equal(t, 1, summary.ByHealth[HealthGood])
	require.Equal(t, 0, summary.ByHealth[HealthWarning])

	expiring, _, err := svc.ExpiringLots(context.Background())
	require.NoError(t, err)
	require.Len(t, expiring, 2)
}
