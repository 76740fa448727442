package migrate

import (
	"context"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testMigrations() []*Migration {
	return []*Migration{
		{
			Version: 1000,
			Name:    "create_test_table",
			Up:      "CREATE TABLE test_table (id INTEGER PRIMARY KEY, name VARCHAR(255));",
			Down:    "DROP TABLE IF EXISTS test_table;",
		},
		{
			Version: 2000,
			Name:    "add_email_column",
			Up:      "ALTER TABLE test_table ADD COLUMN email VARCHAR(255);",
			Down:    "ALTER TABLE test_table DROP COLUMN email;",
		},
	}
}

func TestLoad(t *testing.T) {
	fsys := fstest.MapFS{
		"2_add_index.up.sql":   {Data: []byte("CREATE INDEX i ON t (a);")},
		"1_create_t.up.sql":    {Data: []byte("CREATE TABLE t (a INT);")},
		"1_create_t.down.sql":  {Data: []byte("DROP TABLE t;")},
		"2_add_index.down.sql": {Data: []byte("DROP INDEX i;")},
	}

	migrations, err := Load(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, int64(1), migrations[0].Version)
	assert.Equal(t, "create_t", migrations[0].Name)
	assert.Equal(t, "DROP TABLE t;", migrations[0].Down)
	assert.Equal(t, "add_index", migrations[1].Name)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{"bad name", fstest.MapFS{"create.sql": {Data: []byte("x")}}},
		{"down only", fstest.MapFS{"1_a.down.sql": {Data: []byte("x")}}},
		{"conflicting names", fstest.MapFS{
			"1_a.up.sql": {Data: []byte("x")},
			"1_b.up.sql": {Data: []byte("y")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.fsys)
			assert.Error(t, err)
		})
	}
}

func TestRunner_MigrateUpAndDown(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	runner := NewRunner(db, nil)

	n, err := runner.MigrateUp(ctx, testMigrations())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = db.Exec("INSERT INTO test_table (name, email) VALUES ('egg', 'egg@user.com')")
	require.NoError(t, err)

	// idempotent
	n, err = runner.MigrateUp(ctx, testMigrations())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	status, err := runner.Status(ctx, testMigrations())
	require.NoError(t, err)
	assert.Len(t, status.Applied, 2)
	assert.Empty(t, status.Pending)
	assert.Equal(t, int64(2000), status.LastApplied.Version)
	assert.Equal(t, "Total: 2 migrations (2 applied, 0 pending)", status.Summary())

	n, err = runner.MigrateDown(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	status, err = runner.Status(ctx, testMigrations())
	require.NoError(t, err)
	assert.Len(t, status.Applied, 1)
	require.Len(t, status.Pending, 1)
	assert.Equal(t, "add_email_column", status.Pending[0].Name)

	n, err = runner.MigrateDown(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = runner.MigrateDown(ctx, 1)
	assert.ErrorIs(t, err, ErrNothingToRollback)
}

func TestRunner_FailedMigrationRollsBack(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	runner := NewRunner(db, nil)

	migrations := append(testMigrations(), &Migration{
		Version: 3000,
		Name:    "broken",
		Up:      "CREATE TABLE broken (;",
	})

	n, err := runner.MigrateUp(ctx, migrations)
	require.Error(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, err.Error(), "3000_broken")

	status, err := runner.Status(ctx, migrations)
	require.NoError(t, err)
	assert.Len(t, status.Applied, 2)
	assert.Len(t, status.Pending, 1)
}
