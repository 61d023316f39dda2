package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func requireMigrationStatus(t *testing.T, store *Store, wantVersion int64, wantCount int) {
	t.Helper()

	version, count, err := store.MigrationStatus(context.Background())
	require.NoError(t, err)
	require.Equal(t, wantVersion, version, "schema version")
	require.Equal(t, wantCount, count, "applied migrations")
}

func tableExists(t *testing.T, store *Store, table string) bool {
	t.Helper()

	var exists bool
	err := store.DB().QueryRowContext(context.Background(),
		`SELECT to_regclass($1) IS NOT NULL`, "public."+table).Scan(&exists)
	require.NoError(t, err)
	return exists
}

func TestMigrator_StorefrontSchemaLifecycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	require.NoError(t, store.MigrateDown(ctx, 100))
	requireMigrationStatus(t, store, 0, 0)
	require.False(t, tableExists(t, store, "products"))

	// Один шаг: только каталог и заказы, без outbox.
	require.NoError(t, store.MigrateUp(ctx, 1))
	requireMigrationStatus(t, store, 1, 1)
	require.True(t, tableExists(t, store, "orders"))
	require.False(t, tableExists(t, store, "outbox_messages"))

	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx))
	requireMigrationStatus(t, store, 2, 2)
	require.True(t, tableExists(t, store, "outbox_messages"))
	require.True(t, tableExists(t, store, "idempotency_keys"))

	require.NoError(t, store.MigrateDown(ctx, 0))
	requireMigrationStatus(t, store, 1, 1)
	require.False(t, tableExists(t, store, "idempotency_keys"))
	require.True(t, tableExists(t, store, "products"))

	require.NoError(t, store.MigrateUp(ctx, 0))
	requireMigrationStatus(t, store, 2, 2)
}

func TestMigrator_SchemaEnforcesStockAndNameRules(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	product := seedProduct(t, store, "Lamp", "12.00", 1)

	_, err := store.DB().ExecContext(ctx, `UPDATE products SET stock_quantity = -1 WHERE id = $1`, product.ID)
	require.True(t, isCheckViolation(err), "negative stock must violate CHECK: %v", err)
	require.ErrorIs(t, productCheckError(err), domain.ErrProductStockNegative)

	_, err = store.DB().ExecContext(ctx, `
		INSERT INTO products (id, name, price, stock_quantity, created_at, updated_at)
		VALUES ('dup', ' lamp', 1, 0, NOW(), NOW())
	`)
	require.NoError(t, err, "leading space is part of the stored name")

	_, err = store.DB().ExecContext(ctx, `
		INSERT INTO products (id, name, price, stock_quantity, created_at, updated_at)
		VALUES ('dup-2', 'LAMP', 1, 0, NOW(), NOW())
	`)
	require.True(t, isUniqueViolation(err), "names are unique case-insensitively: %v", err)
}

func TestMigrator_RejectsUninitializedStore(t *testing.T) {
	var store *Store
	ctx := context.Background()

	require.ErrorIs(t, store.MigrateUp(ctx, 0), errStoreNotInitialized)
	require.ErrorIs(t, store.MigrateDown(ctx, 1), errStoreNotInitialized)
	_, _, err := store.MigrationStatus(ctx)
	require.ErrorIs(t, err, errStoreNotInitialized)
}
