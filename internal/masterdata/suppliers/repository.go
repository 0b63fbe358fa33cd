package suppliers

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harvest-erp/harvest/internal/shared"
)

// Repository persists suppliers.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, in Input) (Supplier, error)
	Update(ctx context.Context, id int64, in Input) (Supplier, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const supplierColumns = `id, company_name, contact_person, phone, address, payment_terms, delivery_conditions, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.CompanyName, &s.ContactPerson, &s.Phone, &s.Address, &s.PaymentTerms, &s.DeliveryConditions, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += ` AND (company_name ILIKE $1 OR contact_person ILIKE $1)`
	}

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + supplierColumns + ` FROM suppliers` + where + ` ORDER BY ` + sortOrder(filters.SortBy, filters.Descending())
	args = append(args, filters.Limit(), filters.Offset())
	query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	s, err := scanSupplier(r.db.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, in Input) (Supplier, error) {
	now := time.Now().UTC()
	query := `INSERT INTO suppliers (company_name, contact_person, phone, address, payment_terms, delivery_conditions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING ` + supplierColumns
	return scanSupplier(r.db.QueryRow(ctx, query, in.CompanyName, in.ContactPerson, in.Phone, in.Address, in.PaymentTerms, in.DeliveryConditions, now))
}

func (r *repository) Update(ctx context.Context, id int64, in Input) (Supplier, error) {
	query := `UPDATE suppliers SET company_name = $1, contact_person = $2, phone = $3, address = $4, payment_terms = $5,
		delivery_conditions = $6, updated_at = $7 WHERE id = $8 RETURNING ` + supplierColumns
	s, err := scanSupplier(r.db.QueryRow(ctx, query, in.CompanyName, in.ContactPerson, in.Phone, in.Address, in.PaymentTerms, in.DeliveryConditions, time.Now().UTC(), id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
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

func sortOrder(sortBy string, desc bool) string {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	switch sortBy {
	case "created_at":
		return "created_at " + dir
	case "contact_person":
		return "contact_person " + dir + ", id"
	default:
		return "company_name " + dir + ", id"
	}
}
