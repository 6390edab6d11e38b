package migrate

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/ResolveSpec/pkg/dbmanager"
)

func sha256sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type fakeConnection struct {
	dbmanager.Connection
	db *sql.DB
}

func (f *fakeConnection) Native() (*sql.DB, error)     { return f.db, nil }
func (f *fakeConnection) Type() dbmanager.DatabaseType { return dbmanager.DatabaseTypeSQLite }

func newConn(t *testing.T) *fakeConnection {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &fakeConnection{db: db}
}

func writeMigration(t *testing.T, dir, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644))
}

func TestRun_AppliesFilesInOrderAndRecordsChecksums(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_create_widgets.sql", `CREATE TABLE widgets (id INTEGER PRIMARY KEY, name TEXT);`)
	writeMigration(t, dir, "002_seed_widgets.sql", `INSERT INTO widgets (id, name) VALUES (1, 'gizmo');`)
	conn := newConn(t)

	require.NoError(t, Run(context.Background(), conn, dir))

	var count int
	require.NoError(t, conn.db.QueryRow("SELECT COUNT(*) FROM widgets").Scan(&count))
	assert.Equal(t, 1, count)

	var applied int
	require.NoError(t, conn.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 2, applied)
}

func TestRun_ReapplyingSameDirectoryIsNoop(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_create_widgets.sql", `CREATE TABLE widgets (id INTEGER PRIMARY KEY);`)
	conn := newConn(t)

	require.NoError(t, Run(context.Background(), conn, dir))
	require.NoError(t, Run(context.Background(), conn, dir))

	var count int
	require.NoError(t, conn.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestRun_MissingDirectoryIsNotAnError(t *testing.T) {
	conn := newConn(t)
	err := Run(context.Background(), conn, filepath.Join(t.TempDir(), "does-not-exist"))
	assert.NoError(t, err)
}

func TestRun_ChangedAppliedFileIsWarnedNotReapplied(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_create_widgets.sql", `CREATE TABLE widgets (id INTEGER PRIMARY KEY);`)
	conn := newConn(t)
	require.NoError(t, Run(context.Background(), conn, dir))

	writeMigration(t, dir, "001_create_widgets.sql", `CREATE TABLE widgets (id INTEGER PRIMARY KEY, extra TEXT);`)
	require.NoError(t, Run(context.Background(), conn, dir))

	var checksum string
	require.NoError(t, conn.db.QueryRow("SELECT checksum FROM schema_migrations WHERE filename = ?", "001_create_widgets.sql").Scan(&checksum))

	data, err := os.ReadFile(filepath.Join(dir, "001_create_widgets.sql"))
	require.NoError(t, err)
	sum := sha256sum(data)
	assert.NotEqual(t, sum, checksum, "changed file's new checksum should not have overwritten the recorded one")
}

func TestMigrationFiles_SortsByName(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "002_second.sql", `SELECT 1;`)
	writeMigration(t, dir, "001_first.sql", `SELECT 1;`)
	writeMigration(t, dir, "readme.txt", `not sql`)

	names, err := migrationFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"001_first.sql", "002_second.sql"}, names)
}
