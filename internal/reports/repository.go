package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository runs the report rollups. Delivery amounts are signed: return
// notes count negative and cancelled deliveries are left out.
type Repository interface {
	PurchaseTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error)
	DeliveryTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error)
	CategoryAmounts(ctx context.Context, from, to time.Time) ([]CategoryAmount, error)
	SupplierTotals(ctx context.Context, from, to time.Time) ([]SupplierRow, error)
}

// PgRepository reads rollups from PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs PgRepository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) periodTotals(ctx context.Context, query string, from, to time.Time) (map[string]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]decimal.Decimal)
	for rows.Next() {
		var period string
		var amount decimal.Decimal
		if err := rows.Scan(&period, &amount); err != nil {
			return nil, err
		}
		out[period] = amount
	}
	return out, rows.Err()
}

func (r *PgRepository) PurchaseTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	return r.periodTotals(ctx, `SELECT to_char(purchase_date, 'YYYY-MM'), COALESCE(SUM(price), 0)
		FROM purchases WHERE purchase_date BETWEEN $1 AND $2 GROUP BY 1`, from, to)
}

func (r *PgRepository) DeliveryTotals(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	return r.periodTotals(ctx, `SELECT to_char(delivery_date, 'YYYY-MM'),
		COALESCE(SUM(CASE WHEN type = 'RETURN' THEN -total_amount ELSE total_amount END), 0)
		FROM deliveries WHERE status <> 'CANCELLED' AND delivery_date BETWEEN $1 AND $2 GROUP BY 1`, from, to)
}

func (r *PgRepository) CategoryAmounts(ctx context.Context, from, to time.Time) ([]CategoryAmount, error) {
	rows, err := r.pool.Query(ctx, `SELECT di.category_id, COALESCE(cat.name, ''),
		SUM(CASE WHEN d.type = 'RETURN' THEN -di.amount ELSE di.amount END) AS amount
		FROM delivery_items di
		JOIN deliveries d ON d.id = di.delivery_id
		LEFT JOIN categories cat ON cat.id = di.category_id
		WHERE d.status <> 'CANCELLED' AND d.delivery_date BETWEEN $1 AND $2
		GROUP BY di.category_id, cat.name
		ORDER BY amount DESC`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryAmount
	for rows.Next() {
		var row CategoryAmount
		if err := rows.Scan(&row.CategoryID, &row.CategoryName, &row.Amount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PgRepository) SupplierTotals(ctx context.Context, from, to time.Time) ([]SupplierRow, error) {
	rows, err := r.pool.Query(ctx, `SELECT s.id, s.company_name, SUM(p.price) AS amount, COUNT(p.id)
		FROM purchases p JOIN suppliers s ON s.id = p.supplier_id
		WHERE p.purchase_date BETWEEN $1 AND $2
		GROUP BY s.id, s.company_name
		ORDER BY amount DESC, s.id`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SupplierRow
	for rows.Next() {
		var row SupplierRow
		if err := rows.Scan(&row.SupplierID, &row.SupplierName, &row.PurchaseAmount, &row.PurchaseCount); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
