package delivery

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harvest-erp/harvest/internal/inventory"
	"github.com/harvest-erp/harvest/internal/platform/db"
	"github.com/harvest-erp/harvest/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Delivery, error)
	List(ctx context.Context, filter ListFilter) ([]Delivery, int, error)
}

// TxRepository exposes transactional operations. It embeds the ledger's
// LotStore so stock moves commit or roll back with the delivery.
type TxRepository interface {
	inventory.LotStore
	GetForUpdate(ctx context.Context, id int64) (Delivery, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)
	Insert(ctx context.Context, d Delivery) (int64, error)
	InsertItems(ctx context.Context, deliveryID int64, items []Item) error
	DeleteItems(ctx context.Context, deliveryID int64) error
	UpdateDelivery(ctx context.Context, id int64, updates map[string]interface{}) error
	LinkItem(ctx context.Context, itemID, purchaseID int64, categoryID *int64) error
	Delete(ctx context.Context, id int64) error
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists deliveries in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	inventory.LotStore
	q querier
}

// WithTx runs fn in a read-committed transaction; lots and the delivery row
// are locked explicitly.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{LotStore: inventory.NewLotStore(tx), q: tx})
	})
}

const deliveryColumns = `d.id, d.customer_id, c.company_name, d.delivery_date, d.total_amount, d.status, d.type, d.mode,
	d.invoice_id, d.google_sheet_id, d.google_sheet_url, d.legacy_slip_id, d.legacy_invoice_id, d.notes,
	COALESCE(d.created_by, 0), d.created_at, d.updated_at`

func scanDelivery(row pgx.Row) (Delivery, error) {
	var d Delivery
	err := row.Scan(&d.ID, &d.CustomerID, &d.CustomerName, &d.DeliveryDate, &d.TotalAmount, &d.Status, &d.Type, &d.Mode,
		&d.InvoiceID, &d.GoogleSheetID, &d.GoogleSheetURL, &d.LegacySlipID, &d.LegacyInvoiceID, &d.Notes,
		&d.CreatedBy, &d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Delivery{}, ErrNotFound
	}
	return d, err
}

func loadItems(ctx context.Context, q querier, deliveryID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, delivery_id, purchase_id, reference_purchase_id, product_name, category_id, unit,
		quantity, unit_price, amount, tax_rate FROM delivery_items WHERE delivery_id = $1 ORDER BY id`, deliveryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.DeliveryID, &it.PurchaseID, &it.ReferencePurchaseID, &it.ProductName, &it.CategoryID,
			&it.Unit, &it.Quantity, &it.UnitPrice, &it.Amount, &it.TaxRate); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *Repository) Get(ctx context.Context, id int64) (Delivery, error) {
	d, err := scanDelivery(r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+`
		FROM deliveries d JOIN customers c ON c.id = d.customer_id WHERE d.id = $1`, id))
	if err != nil {
		return Delivery{}, err
	}
	d.Items, err = loadItems(ctx, r.pool, id)
	return d, err
}

// List returns delivery headers without items. A non-positive Limit returns
// every match.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Delivery, int, error) {
	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.CustomerID > 0 {
		add("d.customer_id = $%d", filter.CustomerID)
	}
	if filter.Status != "" {
		add("d.status = $%d", filter.Status)
	}
	if filter.Type != "" {
		add("d.type = $%d", filter.Type)
	}
	if filter.From != nil {
		add("d.delivery_date >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("d.delivery_date <= $%d", *filter.To)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM deliveries d`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + deliveryColumns + ` FROM deliveries d JOIN customers c ON c.id = d.customer_id` + where +
		` ORDER BY d.delivery_date DESC, d.id DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Delivery, error) {
	d, err := scanDelivery(t.q.QueryRow(ctx, `SELECT `+deliveryColumns+`
		FROM deliveries d JOIN customers c ON c.id = d.customer_id WHERE d.id = $1 FOR UPDATE OF d`, id))
	if err != nil {
		return Delivery{}, err
	}
	d.Items, err = loadItems(ctx, t.q, id)
	return d, err
}

func (t *txRepository) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func (t *txRepository) Insert(ctx context.Context, d Delivery) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO deliveries (customer_id, delivery_date, total_amount, status, type, mode, notes,
		created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, 0), NOW(), NOW()) RETURNING id`,
		d.CustomerID, d.DeliveryDate, d.TotalAmount, d.Status, d.Type, d.Mode, d.Notes, d.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepository) InsertItems(ctx context.Context, deliveryID int64, items []Item) error {
	for _, it := range items {
		_, err := t.q.Exec(ctx, `INSERT INTO delivery_items (delivery_id, purchase_id, reference_purchase_id, product_name,
			category_id, unit, quantity, unit_price, amount, tax_rate)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			deliveryID, it.PurchaseID, it.ReferencePurchaseID, it.ProductName, it.CategoryID, it.Unit, it.Quantity,
			it.UnitPrice, it.Amount, it.TaxRate)
		if err != nil {
			if shared.IsForeignKeyViolation(err) {
				return shared.NewValidationError("items", "referenced purchase or category does not exist")
			}
			return err
		}
	}
	return nil
}

func (t *txRepository) DeleteItems(ctx context.Context, deliveryID int64) error {
	_, err := t.q.Exec(ctx, `DELETE FROM delivery_items WHERE delivery_id = $1`, deliveryID)
	return err
}

var updatableColumns = map[string]bool{
	"customer_id": true, "delivery_date": true, "total_amount": true, "status": true, "notes": true,
	"google_sheet_id": true, "google_sheet_url": true,
}

func (t *txRepository) UpdateDelivery(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	keys := make([]string, 0, len(updates))
	for k := range updates {
		if !updatableColumns[k] {
			return fmt.Errorf("delivery: unknown column %q", k)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	setClauses := make([]string, 0, len(keys)+1)
	args := make([]interface{}, 0, len(keys)+1)
	for i, k := range keys {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", k, i+1))
		args = append(args, updates[k])
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE deliveries SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), len(args))
	tag, err := t.q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) LinkItem(ctx context.Context, itemID, purchaseID int64, categoryID *int64) error {
	tag, err := t.q.Exec(ctx, `UPDATE delivery_items SET purchase_id = $1, category_id = COALESCE(category_id, $2)
		WHERE id = $3`, purchaseID, categoryID, itemID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (t *txRepository) Delete(ctx context.Context, id int64) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM delivery_items WHERE delivery_id = $1`, id); err != nil {
		return err
	}
	tag, err := t.q.Exec(ctx, `DELETE FROM deliveries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
