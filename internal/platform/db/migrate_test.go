package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/harvest-erp/harvest/migrations"
)

func TestLoadMigrationsOrdersByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_lots.up.sql":   {Data: []byte("ALTER TABLE purchases ADD COLUMN lot TEXT;")},
		"000002_lots.down.sql": {Data: []byte("ALTER TABLE purchases DROP COLUMN lot;")},
		"000001_init.up.sql":   {Data: []byte("CREATE TABLE a (id INT);")},
		"README.md":            {Data: []byte("ignored")},
	}
	got, err := LoadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "000001", got[0].Version)
	require.Equal(t, "000002", got[1].Version)

	pending := Pending(got, map[string]bool{"000001": true})
	require.Len(t, pending, 1)
	require.Equal(t, "000002", pending[0].Version)
}

func TestLoadMigrationsRejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"000001_init.up.sql":  {Data: []byte("SELECT 1;")},
		"000001_other.up.sql": {Data: []byte("SELECT 2;")},
	}
	_, err := LoadMigrations(fsys)
	require.Error(t, err)
}

func TestEmbeddedSchemaDeclaresCoreTables(t *testing.T) {
	got, err := LoadMigrations(migrations.FS)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	for _, table := range []string{"users", "categories", "suppliers", "customers", "purchases",
		"deliveries", "delivery_items", "invoices", "audit_logs"} {
		require.Contains(t, got[0].SQL, "CREATE TABLE IF NOT EXISTS "+table+" (")
	}
	require.Contains(t, got[0].SQL, "WHERE status <> 'VOID'")
}
