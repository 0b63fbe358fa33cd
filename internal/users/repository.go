package users

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

// Repository defines data access methods for users.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Get(ctx context.Context, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, limit, offset int) ([]User, int, error)
	Create(ctx context.Context, user User) (int64, error)
	Update(ctx context.Context, id int64, updates map[string]interface{}) error
	Delete(ctx context.Context, id int64) error
	// LockAdmins locks every ADMIN row until the transaction ends and returns
	// their ids.
	LockAdmins(ctx context.Context) ([]int64, error)
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

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{db: pool, pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &repository{db: tx, pool: r.pool})
	})
}

const userColumns = `id, name, email, role, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (r *repository) Get(ctx context.Context, id int64) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *repository) getOne(ctx context.Context, query string, arg interface{}) (*User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *repository) List(ctx context.Context, limit, offset int) ([]User, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = shared.DefaultPerPage
	}
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *repository) Create(ctx context.Context, user User) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO users (name, email, role, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING id`,
		user.Name, user.Email, user.Role, user.PasswordHash).Scan(&id)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return 0, ErrEmailTaken
		}
		return 0, err
	}
	return id, nil
}

var updatableColumns = map[string]bool{"name": true, "email": true, "role": true, "password_hash": true}

func (r *repository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}
	sets := make([]string, 0, len(updates)+1)
	args := make([]interface{}, 0, len(updates)+1)
	pos := 1
	for column, value := range updates {
		if !updatableColumns[column] {
			return fmt.Errorf("users: column %q is not updatable", column)
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", column, pos))
		args = append(args, value)
		pos++
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)
	tag, err := r.db.Exec(ctx, fmt.Sprintf("UPDATE users SET %s WHERE id = $%d", strings.Join(sets, ", "), pos), args...)
	if err != nil {
		if shared.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
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

func (r *repository) LockAdmins(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM users WHERE role = $1 ORDER BY id FOR UPDATE`, shared.RoleAdmin)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
