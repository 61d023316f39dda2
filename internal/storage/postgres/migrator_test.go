package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func migrationFS(files map[string]string) fstest.MapFS {
	fsys := fstest.MapFS{}
	for name, body := range files {
		fsys[migrationsDir+"/"+name] = &fstest.MapFile{Data: []byte(body)}
	}
	return fsys
}

func TestLoadMigrationsFromFS_SortsByVersion(t *testing.T) {
	all, err := loadMigrationsFromFS(migrationFS(map[string]string{
		"0010_order_notes.up.sql":   "ALTER TABLE orders ADD COLUMN note TEXT;",
		"0010_order_notes.down.sql": "ALTER TABLE orders DROP COLUMN note;",
		"0002_carts.up.sql":         "CREATE TABLE carts (id TEXT);",
		"0002_carts.down.sql":       "DROP TABLE carts;",
	}))
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "0002_carts", all[0].label())
	require.Equal(t, "0010_order_notes", all[1].label())
	require.Equal(t, "DROP TABLE carts;", all[0].DownSQL)
}

func TestLoadMigrationsFromFS_RejectsBrokenSets(t *testing.T) {
	cases := []struct {
		name    string
		files   map[string]string
		wantErr string
	}{
		{
			name:    "missing down",
			files:   map[string]string{"0001_catalog.up.sql": "SELECT 1;"},
			wantErr: "both up and down",
		},
		{
			name:    "bad file name",
			files:   map[string]string{"catalog.sql": "SELECT 1;"},
			wantErr: "invalid migration file name",
		},
		{
			name: "blank body",
			files: map[string]string{
				"0001_catalog.up.sql":   " \n",
				"0001_catalog.down.sql": "SELECT 1;",
			},
			wantErr: "is empty",
		},
		{
			name: "one version two names",
			files: map[string]string{
				"0001_catalog.up.sql":    "SELECT 1;",
				"0001_products.down.sql": "SELECT 1;",
			},
			wantErr: "two names",
		},
		{
			name:    "no migrations directory",
			files:   map[string]string{},
			wantErr: "list migrations",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadMigrationsFromFS(migrationFS(tc.files))
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestLoadMigrationsFromFS_EmbeddedStorefrontSchema(t *testing.T) {
	all, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)
	require.Len(t, all, 2)

	catalog := all[0].UpSQL
	require.Contains(t, catalog, "stock_quantity >= 0", "products table must reject negative stock")
	require.Contains(t, catalog, "LOWER(name)", "product names must be unique case-insensitively")
	require.Contains(t, catalog, "price NUMERIC(12, 2)")
	require.Contains(t, all[1].UpSQL, "outbox_messages")
}
