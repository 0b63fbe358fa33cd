package db

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Migration is one numbered up script.
type Migration struct {
	Version string
	SQL     string
}

// LoadMigrations reads every *.up.sql file at the root of fsys in version
// order. The version is the file name before the first underscore.
func LoadMigrations(fsys fs.FS) ([]Migration, error) {
	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	out := make([]Migration, 0, len(names))
	seen := make(map[string]string, len(names))
	for _, name := range names {
		version, _, ok := strings.Cut(path.Base(name), "_")
		if !ok || version == "" {
			return nil, fmt.Errorf("platform/db: migration %s has no version prefix", name)
		}
		if prev, dup := seen[version]; dup {
			return nil, fmt.Errorf("platform/db: migrations %s and %s share version %s", prev, name, version)
		}
		seen[version] = name
		body, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, err
		}
		out = append(out, Migration{Version: version, SQL: string(body)})
	}
	return out, nil
}

// Pending filters out migrations whose version is already applied.
func Pending(all []Migration, applied map[string]bool) []Migration {
	var out []Migration
	for _, m := range all {
		if !applied[m.Version] {
			out = append(out, m)
		}
	}
	return out
}

// Migrate applies the pending up scripts of fsys, each in its own
// transaction, and returns the versions it applied.
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) ([]string, error) {
	all, err := LoadMigrations(fsys)
	if err != nil {
		return nil, err
	}
	if _, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW())`); err != nil {
		return nil, fmt.Errorf("platform/db: schema_migrations: %w", err)
	}

	rows, err := pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	var done []string
	for _, m := range Pending(all, applied) {
		err := WithTxOptions(ctx, pool, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, m.SQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, m.Version)
			return err
		})
		if err != nil {
			return done, fmt.Errorf("platform/db: migration %s: %w", m.Version, err)
		}
		done = append(done, m.Version)
	}
	return done, nil
}
