package inventory_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/harvest-erp/harvest/internal/inventory"
	"github.com/harvest-erp/harvest/internal/platform/db"
	"github.com/harvest-erp/harvest/migrations"
	_ "github.com/harvest-erp/harvest/testing"
)

// openTestPool connects to HARVEST_TEST_PG_DSN and applies the schema. Tests
// using it are skipped when the variable is unset.
func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("HARVEST_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("HARVEST_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn, db.PoolOptions{MaxConns: 10})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = db.Migrate(ctx, pool, migrations.FS)
	require.NoError(t, err)
	return pool
}

func seedLot(t *testing.T, pool *pgxpool.Pool, qty string) int64 {
	t.Helper()
	ctx := context.Background()
	suffix := time.Now().UnixNano()
	var categoryID, supplierID, purchaseID int64
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO categories (name) VALUES ($1) RETURNING id`,
		fmt.Sprintf("lock-test-%d", suffix)).Scan(&categoryID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO suppliers (company_name) VALUES ($1) RETURNING id`,
		fmt.Sprintf("Lock Farm %d", suffix)).Scan(&supplierID))
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO purchases
		(product_name, category_id, supplier_id, quantity, unit, unit_price, price, purchase_date, remaining_quantity, status)
		VALUES ('Cabbage', $1, $2, $3, 'kg', 100, 0, CURRENT_DATE, $3, 'UNUSED') RETURNING id`,
		categoryID, supplierID, qty).Scan(&purchaseID))
	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, `DELETE FROM purchases WHERE id = $1`, purchaseID)
		_, _ = pool.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, supplierID)
		_, _ = pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, categoryID)
	})
	return purchaseID
}

func TestLockLotSerializesConcurrentConsumers(t *testing.T) {
	pool := openTestPool(t)
	repo := inventory.NewRepository(pool)
	lotID := seedLot(t, pool, "10")

	const workers = 8
	var (
		wg       sync.WaitGroup
		start    = make(chan struct{})
		mu       sync.Mutex
		ok       int
		rejected int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := repo.WithTx(context.Background(), func(ctx context.Context, store inventory.LotStore) error {
				_, err := inventory.Consume(ctx, store, lotID, decimal.NewFromInt(3))
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case inventory.IsInsufficientStock(err):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 3, ok)
	require.Equal(t, workers-3, rejected)

	var remaining decimal.Decimal
	var status string
	require.NoError(t, pool.QueryRow(context.Background(),
		`SELECT remaining_quantity, status FROM purchases WHERE id = $1`, lotID).Scan(&remaining, &status))
	require.True(t, remaining.Equal(decimal.NewFromInt(1)), remaining.String())
	require.Equal(t, string(inventory.StatusPartial), status)
}

func TestLockLotWaitsForHolder(t *testing.T) {
	pool := openTestPool(t)
	repo := inventory.NewRepository(pool)
	lotID := seedLot(t, pool, "10")

	locked := make(chan struct{})
	release := make(chan struct{})
	holder := make(chan error, 1)
	go func() {
		holder <- repo.WithTx(context.Background(), func(ctx context.Context, store inventory.LotStore) error {
			if _, err := inventory.Consume(ctx, store, lotID, decimal.NewFromInt(6)); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked

	waiter := make(chan error, 1)
	go func() {
		waiter <- repo.WithTx(context.Background(), func(ctx context.Context, store inventory.LotStore) error {
			_, err := inventory.Consume(ctx, store, lotID, decimal.NewFromInt(6))
			return err
		})
	}()

	select {
	case err := <-waiter:
		t.Fatalf("second consumer finished while the lot was locked: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	close(release)
	require.NoError(t, <-holder)
	require.True(t, inventory.IsInsufficientStock(<-waiter))
}
