package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func count(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query).Scan(&n))
	return n
}

func TestApply_RecordsEachFileOnce(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	migrations := fstest.MapFS{
		"002_more.sql":   {Data: []byte("-- +migrate Up\nCREATE TABLE b(id TEXT PRIMARY KEY);")},
		"001_create.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE a(id TEXT PRIMARY KEY);\n-- +migrate Down\nDROP TABLE a;")},
		"README.md":      {Data: []byte("ignored")},
	}

	require.NoError(t, Apply(ctx, db, migrations, ""))
	require.NoError(t, Apply(ctx, db, migrations, ""))

	assert.Equal(t, 2, count(t, db, "SELECT COUNT(*) FROM schema_migrations"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='a'"))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='b'"))
}

func TestApply_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openMemoryDB(t)
	ctx := context.Background()

	bad := fstest.MapFS{"001_bad.sql": {Data: []byte("-- +migrate Up\nCREAT TABLE x(id INT);")}}
	require.Error(t, Apply(ctx, db, bad, ""))
	assert.Equal(t, 0, count(t, db, "SELECT COUNT(*) FROM schema_migrations"))

	good := fstest.MapFS{"001_bad.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE x(id INT);")}}
	require.NoError(t, Apply(ctx, db, good, ""))
	assert.Equal(t, 1, count(t, db, "SELECT COUNT(*) FROM schema_migrations"))
}

func TestApply_Subdirectory(t *testing.T) {
	db := openMemoryDB(t)

	migrations := fstest.MapFS{"sql/001.sql": {Data: []byte("CREATE TABLE s(id INT);")}}
	require.NoError(t, Apply(context.Background(), db, migrations, "sql"))

	var name string
	require.NoError(t, db.QueryRow("SELECT name FROM schema_migrations").Scan(&name))
	assert.Equal(t, "sql/001.sql", name)
}

func TestApply_RequiresDB(t *testing.T) {
	assert.Error(t, Apply(context.Background(), nil, fstest.MapFS{}, ""))
}

func TestUpSection(t *testing.T) {
	assert.Equal(t, "\nA;\n", UpSection("-- +migrate Up\nA;\n-- +migrate Down\nB;"))
	assert.Equal(t, "\nA;", UpSection("-- +migrate Up\nA;"))
	assert.Equal(t, "plain;", UpSection("plain;"))
}

func TestIsAlreadyExists(t *testing.T) {
	assert.True(t, IsAlreadyExists(errors.New("table trades already exists")))
	assert.True(t, IsAlreadyExists(errors.New("duplicate column name: pips")))
	assert.False(t, IsAlreadyExists(errors.New("syntax error")))
	assert.False(t, IsAlreadyExists(nil))
}
