package customers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harvest-erp/harvest/internal/platform/db"
	"github.com/harvest-erp/harvest/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*Customer, error)
	List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error)
	Create(ctx context.Context, customer Customer) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
	CountDelegates(ctx context.Context, id int64) (int, error)
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const customerColumns = `id, company_name, contact_person, phone, email, delivery_address, billing_address,
	billing_cycle, billing_day, payment_terms, invoice_registration_number, billing_customer_id, notes,
	created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.CompanyName, &c.ContactPerson, &c.Phone, &c.Email, &c.DeliveryAddress,
		&c.BillingAddress, &c.BillingCycle, &c.BillingDay, &c.PaymentTerms, &c.InvoiceRegistrationNumber,
		&c.BillingCustomerID, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *repository) Get(ctx context.Context, id int64) (*Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if req.BillingCycle != "" {
		conditions = append(conditions, fmt.Sprintf("billing_cycle = $%d", argPos))
		args = append(args, req.BillingCycle)
		argPos++
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(company_name ILIKE $%d OR contact_person ILIKE $%d OR email ILIKE $%d)", argPos, argPos, argPos))
		args = append(args, "%"+req.Search+"%")
		argPos++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM customers "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = shared.DefaultPerPage
	}
	query := fmt.Sprintf("SELECT %s FROM customers %s ORDER BY %s LIMIT $%d OFFSET $%d",
		customerColumns, whereClause, orderBy(req.SortBy, req.Descending), argPos, argPos+1)
	args = append(args, limit, req.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, c Customer) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO customers (company_name, contact_person, phone, email, delivery_address,
		billing_address, billing_cycle, billing_day, payment_terms, invoice_registration_number, billing_customer_id, notes,
		created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW()) RETURNING id`,
		c.CompanyName, c.ContactPerson, c.Phone, c.Email, c.DeliveryAddress, c.BillingAddress, c.BillingCycle,
		c.BillingDay, c.PaymentTerms, c.InvoiceRegistrationNumber, c.BillingCustomerID, c.Notes).Scan(&id)
	return id, err
}

// updatableColumns whitelists the keys accepted by Update.
var updatableColumns = map[string]bool{
	"company_name": true, "contact_person": true, "phone": true, "email": true,
	"delivery_address": true, "billing_address": true, "billing_cycle": true, "billing_day": true,
	"payment_terms": true, "invoice_registration_number": true, "billing_customer_id": true, "notes": true,
}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	setClauses := make([]string, 0, len(updates)+1)
	args := make([]interface{}, 0, len(updates)+1)
	argPos := 1
	for _, col := range sortedKeys(updates) {
		if !updatableColumns[col] {
			return fmt.Errorf("customers: unknown column %q", col)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, argPos))
		args = append(args, updates[col])
		argPos++
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf("UPDATE customers SET %s WHERE id = $%d", strings.Join(setClauses, ", "), argPos)
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
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

func (r *repository) CountDelegates(ctx context.Context, id int64) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE billing_customer_id = $1`, id).Scan(&n)
	return n, err
}

func orderBy(sortBy string, desc bool) string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	switch sortBy {
	case "created_at":
		return "created_at " + dir + ", id"
	case "id":
		return "id " + dir
	default:
		return "company_name " + dir + ", id"
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
