package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepository reads audit_logs with pgx.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository builds the PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Timeline implements Repository.
func (r *PgRepository) Timeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	where, args := timelineWhere(filters)
	args = append(args, limit, offset)
	query := fmt.Sprintf(`SELECT a.id, a.occurred_at, COALESCE(a.actor_id, 0), COALESCE(u.email, ''), a.action, a.entity,
		a.entity_id, a.meta
		FROM audit_logs a LEFT JOIN users u ON u.id = a.actor_id%s
		ORDER BY a.occurred_at DESC, a.id DESC LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		var meta []byte
		if err := rows.Scan(&row.ID, &row.At, &row.ActorID, &row.ActorEmail, &row.Action, &row.Entity, &row.EntityID, &meta); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &row.Meta); err != nil {
				return nil, fmt.Errorf("audit: decode meta of %d: %w", row.ID, err)
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func timelineWhere(f TimelineFilters) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if !f.From.IsZero() {
		add("a.occurred_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("a.occurred_at < $%d", f.To.AddDate(0, 0, 1))
	}
	if f.ActorID > 0 {
		add("a.actor_id = $%d", f.ActorID)
	}
	if v := strings.TrimSpace(f.Entity); v != "" {
		add("a.entity = $%d", v)
	}
	if v := strings.TrimSpace(f.EntityID); v != "" {
		add("a.entity_id = $%d", v)
	}
	if v := strings.TrimSpace(f.Action); v != "" {
		add("a.action = $%d", v)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}
