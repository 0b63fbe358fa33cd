package invoicing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/harvest-erp/harvest/internal/delivery"
	"github.com/harvest-erp/harvest/internal/platform/db"
	"github.com/harvest-erp/harvest/internal/shared"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Pending(ctx context.Context, from, to time.Time, customerID int64) ([]PendingDelivery, error)
	ActiveInvoices(ctx context.Context, year, month int, customerID int64) (map[int64]int64, error)
	Customer(ctx context.Context, id int64) (CustomerInfo, error)
	Get(ctx context.Context, id int64) (Invoice, error)
	List(ctx context.Context, filter ListFilter) ([]Invoice, int, error)
	SetDocument(ctx context.Context, id int64, documentID, url string) error
}

// TxRepository exposes the operations invoice generation and voiding run in
// one transaction.
type TxRepository interface {
	Customer(ctx context.Context, id int64) (CustomerInfo, error)
	HasActiveInvoice(ctx context.Context, customerID int64, year, month int) (bool, error)
	LockPending(ctx context.Context, customerID int64, from, to time.Time) ([]PendingDelivery, error)
	NextSequence(ctx context.Context, customerID int64, year, month int) (int, error)
	Insert(ctx context.Context, inv Invoice) (int64, error)
	ClaimDeliveries(ctx context.Context, invoiceID int64, deliveryIDs []int64) (int64, error)
	GetForUpdate(ctx context.Context, id int64) (Invoice, error)
	MarkVoid(ctx context.Context, id int64, at time.Time) error
	ReleaseDeliveries(ctx context.Context, invoiceID int64) (int64, error)
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	q querier
}

// WithTx runs fn in a read-committed transaction. Claimed deliveries are
// locked explicitly and the partial unique index on invoices rejects a
// concurrent duplicate.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTxOptions(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{q: tx})
	})
}

const pendingQuery = `SELECT d.id, c.id, c.company_name, c.billing_cycle, c.billing_day, c.payment_terms,
	d.delivery_date, d.type, d.total_amount
	FROM deliveries d JOIN customers c ON c.id = d.customer_id
	WHERE d.status = 'DELIVERED' AND d.invoice_id IS NULL AND COALESCE(d.legacy_invoice_id, '') = ''
		AND d.delivery_date BETWEEN $1 AND $2 AND ($3::bigint = 0 OR d.customer_id = $3)
	ORDER BY d.customer_id, d.delivery_date, d.id`

func loadPending(ctx context.Context, q querier, from, to time.Time, customerID int64, lock bool) ([]PendingDelivery, error) {
	query := pendingQuery
	if lock {
		query += ` FOR UPDATE OF d`
	}
	rows, err := q.Query(ctx, query, from, to, customerID)
	if err != nil {
		return nil, err
	}
	var out []PendingDelivery
	index := make(map[int64]int)
	for rows.Next() {
		var d PendingDelivery
		if err := rows.Scan(&d.ID, &d.Customer.ID, &d.Customer.Name, &d.Customer.BillingCycle, &d.Customer.BillingDay,
			&d.Customer.PaymentTerms, &d.DeliveryDate, &d.Type, &d.TotalAmount); err != nil {
			rows.Close()
			return nil, err
		}
		d.ByRate = make(map[delivery.TaxRate]decimal.Decimal)
		index[d.ID] = len(out)
		out = append(out, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(out))
	for i, d := range out {
		ids[i] = d.ID
	}
	rateRows, err := q.Query(ctx, `SELECT delivery_id, tax_rate, SUM(amount) FROM delivery_items
		WHERE delivery_id = ANY($1) GROUP BY delivery_id, tax_rate`, ids)
	if err != nil {
		return nil, err
	}
	defer rateRows.Close()
	for rateRows.Next() {
		var (
			id     int64
			rate   delivery.TaxRate
			amount decimal.Decimal
		)
		if err := rateRows.Scan(&id, &rate, &amount); err != nil {
			return nil, err
		}
		out[index[id]].ByRate[rate] = amount
	}
	return out, rateRows.Err()
}

func (r *Repository) Pending(ctx context.Context, from, to time.Time, customerID int64) ([]PendingDelivery, error) {
	return loadPending(ctx, r.pool, from, to, customerID, false)
}

// ActiveInvoices maps customer ids to their non-void invoice of the month.
func (r *Repository) ActiveInvoices(ctx context.Context, year, month int, customerID int64) (map[int64]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT customer_id, id FROM invoices
		WHERE year = $1 AND month = $2 AND status <> 'VOID' AND ($3::bigint = 0 OR customer_id = $3)`, year, month, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]int64)
	for rows.Next() {
		var customer, id int64
		if err := rows.Scan(&customer, &id); err != nil {
			return nil, err
		}
		out[customer] = id
	}
	return out, rows.Err()
}

func getCustomer(ctx context.Context, q querier, id int64) (CustomerInfo, error) {
	var c CustomerInfo
	err := q.QueryRow(ctx, `SELECT id, company_name, billing_cycle, billing_day, payment_terms FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.BillingCycle, &c.BillingDay, &c.PaymentTerms)
	if errors.Is(err, pgx.ErrNoRows) {
		return CustomerInfo{}, ErrUnknownCustomer
	}
	return c, err
}

func (r *Repository) Customer(ctx context.Context, id int64) (CustomerInfo, error) {
	return getCustomer(ctx, r.pool, id)
}

const invoiceColumns = `i.id, i.number, i.customer_id, c.company_name, i.year, i.month, i.total_amount, i.tax_lines,
	i.tax_total, i.grand_total, i.delivery_ids, i.status, i.issue_date, i.due_date, i.google_sheet_id, i.google_sheet_url,
	COALESCE(i.created_by, 0), i.created_at, i.voided_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.CustomerName, &inv.Year, &inv.Month, &inv.TotalAmount,
		&inv.TaxLines, &inv.TaxTotal, &inv.GrandTotal, &inv.DeliveryIDs, &inv.Status, &inv.IssueDate, &inv.DueDate,
		&inv.GoogleSheetID, &inv.GoogleSheetURL, &inv.CreatedBy, &inv.CreatedAt, &inv.VoidedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, ErrNotFound
	}
	return inv, err
}

func (r *Repository) Get(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+`
		FROM invoices i JOIN customers c ON c.id = i.customer_id WHERE i.id = $1`, id))
}

func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Invoice, int, error) {
	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.Year > 0 {
		add("i.year = $%d", filter.Year)
	}
	if filter.Month > 0 {
		add("i.month = $%d", filter.Month)
	}
	if filter.CustomerID > 0 {
		add("i.customer_id = $%d", filter.CustomerID)
	}
	if filter.Status != "" {
		add("i.status = $%d", filter.Status)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM invoices i`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices i JOIN customers c ON c.id = i.customer_id` + where +
		` ORDER BY i.year DESC, i.month DESC, i.customer_id, i.id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

func (r *Repository) SetDocument(ctx context.Context, id int64, documentID, url string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE invoices SET google_sheet_id = $1, google_sheet_url = $2 WHERE id = $3`, documentID, url, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) Customer(ctx context.Context, id int64) (CustomerInfo, error) {
	return getCustomer(ctx, t.q, id)
}

func (t *txRepository) HasActiveInvoice(ctx context.Context, customerID int64, year, month int) (bool, error) {
	var exists bool
	err := t.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM invoices
		WHERE customer_id = $1 AND year = $2 AND month = $3 AND status <> 'VOID')`, customerID, year, month).Scan(&exists)
	return exists, err
}

func (t *txRepository) LockPending(ctx context.Context, customerID int64, from, to time.Time) ([]PendingDelivery, error) {
	return loadPending(ctx, t.q, from, to, customerID, true)
}

// NextSequence counts every invoice of the customer month, void ones
// included, so reissued numbers never repeat.
func (t *txRepository) NextSequence(ctx context.Context, customerID int64, year, month int) (int, error) {
	var seq int
	err := t.q.QueryRow(ctx, `SELECT COUNT(*) + 1 FROM invoices WHERE customer_id = $1 AND year = $2 AND month = $3`,
		customerID, year, month).Scan(&seq)
	return seq, err
}

func (t *txRepository) Insert(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := t.q.QueryRow(ctx, `INSERT INTO invoices (number, customer_id, year, month, total_amount, tax_lines, tax_total,
		grand_total, delivery_ids, status, issue_date, due_date, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, 0), NOW()) RETURNING id`,
		inv.Number, inv.CustomerID, inv.Year, inv.Month, inv.TotalAmount, inv.TaxLines, inv.TaxTotal, inv.GrandTotal,
		inv.DeliveryIDs, inv.Status, inv.IssueDate, inv.DueDate, inv.CreatedBy).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return 0, ErrAlreadyInvoiced
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepository) ClaimDeliveries(ctx context.Context, invoiceID int64, deliveryIDs []int64) (int64, error) {
	tag, err := t.q.Exec(ctx, `UPDATE deliveries SET status = 'INVOICED', invoice_id = $1, updated_at = NOW()
		WHERE id = ANY($2) AND status = 'DELIVERED' AND invoice_id IS NULL`, invoiceID, deliveryIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepository) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return scanInvoice(t.q.QueryRow(ctx, `SELECT `+invoiceColumns+`
		FROM invoices i JOIN customers c ON c.id = i.customer_id WHERE i.id = $1 FOR UPDATE OF i`, id))
}

func (t *txRepository) MarkVoid(ctx context.Context, id int64, at time.Time) error {
	tag, err := t.q.Exec(ctx, `UPDATE invoices SET status = 'VOID', voided_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepository) ReleaseDeliveries(ctx context.Context, invoiceID int64) (int64, error) {
	tag, err := t.q.Exec(ctx, `UPDATE deliveries SET status = 'DELIVERED', invoice_id = NULL, updated_at = NOW()
		WHERE invoice_id = $1`, invoiceID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
