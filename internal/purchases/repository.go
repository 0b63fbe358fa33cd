package purchases

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harvest-erp/harvest/internal/platform/db"
	"github.com/harvest-erp/harvest/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Purchase, error)
	List(ctx context.Context, filter ListFilter) ([]Purchase, int, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Purchase, error)
	Insert(ctx context.Context, p Purchase) (Purchase, error)
	Update(ctx context.Context, p Purchase) (Purchase, error)
	Delete(ctx context.Context, id int64) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists purchases in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	q querier
}

// WithTx runs fn inside a read-committed transaction; purchase rows are
// locked explicitly with FOR UPDATE.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{q: tx})
	})
}

const purchaseColumns = `id, product_name, category_id, supplier_id, quantity, unit, unit_price, price, purchase_date,
	expiry_date, remaining_quantity, status, needs_review, notes, created_at, updated_at`

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	err := row.Scan(&p.ID, &p.ProductName, &p.CategoryID, &p.SupplierID, &p.Quantity, &p.Unit, &p.UnitPrice, &p.Price,
		&p.PurchaseDate, &p.ExpiryDate, &p.RemainingQuantity, &p.Status, &p.NeedsReview, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, ErrNotFound
	}
	return p, err
}

func (r *Repository) Get(ctx context.Context, id int64) (Purchase, error) {
	return scanPurchase(r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id))
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Purchase, int, error) {
	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.CategoryID > 0 {
		add("category_id = $%d", filter.CategoryID)
	}
	if filter.SupplierID > 0 {
		add("supplier_id = $%d", filter.SupplierID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.NeedsReview != nil {
		add("needs_review = $%d", *filter.NeedsReview)
	}
	if filter.From != nil {
		add("purchase_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("purchase_date <= $%d", *filter.To)
	}
	if filter.Search != "" {
		add("product_name ILIKE $%d", "%"+filter.Search+"%")
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM purchases`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = shared.DefaultPerPage
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM purchases%s ORDER BY %s LIMIT $%d OFFSET $%d`,
		purchaseColumns, where, orderBy(filter.SortBy, filter.Descending), len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Purchase, error) {
	return scanPurchase(t.q.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id))
}

func (t *txRepo) Insert(ctx context.Context, p Purchase) (Purchase, error) {
	created, err := scanPurchase(t.q.QueryRow(ctx, `INSERT INTO purchases (product_name, category_id, supplier_id, quantity,
		unit, unit_price, price, purchase_date, expiry_date, remaining_quantity, status, needs_review, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING `+purchaseColumns,
		p.ProductName, p.CategoryID, p.SupplierID, p.Quantity, p.Unit, p.UnitPrice, p.Price, p.PurchaseDate,
		p.ExpiryDate, p.RemainingQuantity, p.Status, p.NeedsReview, p.Notes))
	if shared.IsForeignKeyViolation(err) {
		return Purchase{}, ErrUnknownReference
	}
	return created, err
}

func (t *txRepo) Update(ctx context.Context, p Purchase) (Purchase, error) {
	updated, err := scanPurchase(t.q.QueryRow(ctx, `UPDATE purchases SET product_name = $1, category_id = $2,
		supplier_id = $3, quantity = $4, unit = $5, unit_price = $6, price = $7, purchase_date = $8, expiry_date = $9,
		remaining_quantity = $10, status = $11, needs_review = $12, notes = $13, updated_at = NOW()
		WHERE id = $14 RETURNING `+purchaseColumns,
		p.ProductName, p.CategoryID, p.SupplierID, p.Quantity, p.Unit, p.UnitPrice, p.Price, p.PurchaseDate,
		p.ExpiryDate, p.RemainingQuantity, p.Status, p.NeedsReview, p.Notes, p.ID))
	if shared.IsForeignKeyViolation(err) {
		return Purchase{}, ErrUnknownReference
	}
	return updated, err
}

func (t *txRepo) Delete(ctx context.Context, id int64) error {
	tag, err := t.q.Exec(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	if err != nil {
		if shared.IsForeignKeyViolation(err) {
			return ErrInUse
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func orderBy(sortBy string, desc bool) string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	switch sortBy {
	case "product_name":
		return "product_name " + dir + ", id"
	case "expiry_date":
		return "expiry_date " + dir + " NULLS LAST, id"
	case "price":
		return "price " + dir + ", id"
	default:
		return "purchase_date " + dir + ", id " + dir
	}
}
