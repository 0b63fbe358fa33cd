package categories

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harvest-erp/harvest/internal/shared"
)

// Repository persists categories.
type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error)
	Get(ctx context.Context, id int64) (Category, error)
	Create(ctx context.Context, category Category) (Category, error)
	Update(ctx context.Context, category Category) (Category, error)
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Category, int, error) {
	where := ` WHERE 1=1`
	args := []any{}
	if filters.Search != "" {
		args = append(args, "%"+filters.Search+"%")
		where += ` AND name ILIKE $` + strconv.Itoa(len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM categories`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	dir := "ASC"
	if filters.Descending() {
		dir = "DESC"
	}
	query := `SELECT id, name, created_at, updated_at FROM categories` + where + ` ORDER BY name ` + dir
	args = append(args, filters.Limit(), filters.Offset())
	query += ` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Category, error) {
	var c Category
	err := r.pool.QueryRow(ctx, `SELECT id, name, created_at, updated_at FROM categories WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Category{}, ErrNotFound
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, category Category) (Category, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `INSERT INTO categories (name, created_at, updated_at) VALUES ($1, $2, $2) RETURNING id`, category.Name, now).
		Scan(&category.ID)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return Category{}, ErrDuplicateName
		}
		return Category{}, err
	}
	category.CreatedAt = now
	category.UpdatedAt = now
	return category, nil
}

func (r *repository) Update(ctx context.Context, category Category) (Category, error) {
	now := time.Now().UTC()
	err := r.pool.QueryRow(ctx, `UPDATE categories SET name = $1, updated_at = $2 WHERE id = $3 RETURNING created_at`, category.Name, now, category.ID).
		Scan(&category.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Category{}, ErrNotFound
		}
		if shared.IsUniqueViolation(err) {
			return Category{}, ErrDuplicateName
		}
		return Category{}, err
	}
	category.UpdatedAt = now
	return category, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
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
