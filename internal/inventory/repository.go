package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/harvest-erp/harvest/internal/platform/db"
)

// Querier is satisfied by pgx.Tx and *pgxpool.Pool.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists ledger state in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn in a read-committed transaction. Row locks taken by LockLot
// make concurrent consumers of one lot wait and then see the committed value.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, LotStore) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, NewLotStore(tx))
	})
}

type lotStore struct {
	q Querier
}

// NewLotStore returns a LotStore bound to q, normally an open transaction.
func NewLotStore(q Querier) LotStore {
	return &lotStore{q: q}
}

func (s *lotStore) LockLot(ctx context.Context, purchaseID int64) (Lot, error) {
	var lot Lot
	err := s.q.QueryRow(ctx, `SELECT id, product_name, category_id, unit, quantity, remaining_quantity, status
		FROM purchases WHERE id = $1 FOR UPDATE`, purchaseID).
		Scan(&lot.PurchaseID, &lot.ProductName, &lot.CategoryID, &lot.Unit, &lot.Quantity, &lot.RemainingQuantity, &lot.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lot{}, ErrLotNotFound
	}
	return lot, err
}

func (s *lotStore) SaveRemaining(ctx context.Context, purchaseID int64, remaining decimal.Decimal, status Status) error {
	tag, err := s.q.Exec(ctx, `UPDATE purchases SET remaining_quantity = $1, status = $2, updated_at = NOW() WHERE id = $3`,
		remaining, status, purchaseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrLotNotFound
	}
	return nil
}

// ListItems returns the lots matching the SQL-expressible part of filter.
// Health is derived by the service and filtered there.
func (r *Repository) ListItems(ctx context.Context, filter Filter) ([]Item, error) {
	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.Status != "" {
		add("p.status = $%d", filter.Status)
	} else if !filter.IncludeUsed {
		conditions = append(conditions, "p.status <> 'USED'")
	}
	if filter.CategoryID > 0 {
		add("p.category_id = $%d", filter.CategoryID)
	}
	if filter.SupplierID > 0 {
		add("p.supplier_id = $%d", filter.SupplierID)
	}
	if filter.Search != "" {
		add("p.product_name ILIKE $%d", "%"+filter.Search+"%")
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := `SELECT p.id, p.product_name, p.category_id, c.name, p.supplier_id, s.company_name, p.unit,
		p.quantity, p.remaining_quantity, p.unit_price, p.purchase_date, p.expiry_date, p.status, p.needs_review
		FROM purchases p
		JOIN categories c ON c.id = p.category_id
		JOIN suppliers s ON s.id = p.supplier_id
		` + where + `
		ORDER BY p.expiry_date ASC NULLS LAST, p.id`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.PurchaseID, &it.ProductName, &it.CategoryID, &it.CategoryName, &it.SupplierID,
			&it.SupplierName, &it.Unit, &it.Quantity, &it.RemainingQuantity, &it.UnitPrice, &it.PurchaseDate,
			&it.ExpiryDate, &it.Status, &it.NeedsReview); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}
