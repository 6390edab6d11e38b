package dbexec

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/ResolveSpec/pkg/dbmanager"
)

// fakeConnection implements the slice of dbmanager.Connection that Engine
// actually exercises; the ORM accessors are never reached by these tests.
type fakeConnection struct {
	dbmanager.Connection
	db     *sql.DB
	dbType dbmanager.DatabaseType
}

func (f *fakeConnection) Native() (*sql.DB, error)     { return f.db, nil }
func (f *fakeConnection) Type() dbmanager.DatabaseType { return f.dbType }

func newMockEngine(t *testing.T, dbType dbmanager.DatabaseType) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	conn := &fakeConnection{db: db, dbType: dbType}
	return NewEngine(conn, ""), mock
}

func TestEngine_DialectMatchesConnectionType(t *testing.T) {
	pg, _ := newMockEngine(t, dbmanager.DatabaseTypePostgreSQL)
	assertDialectPostgres(t, pg)

	lite, _ := newMockEngine(t, dbmanager.DatabaseTypeSQLite)
	assert.Equal(t, "sqlite", string(lite.Dialect()))

	mssql, _ := newMockEngine(t, dbmanager.DatabaseTypeMSSQL)
	assert.Equal(t, "mssql", string(mssql.Dialect()))

	mysql, _ := newMockEngine(t, dbmanager.DatabaseTypeMySQL)
	assert.Equal(t, "mysql", string(mysql.Dialect()))
}

func assertDialectPostgres(t *testing.T, e *Engine) {
	t.Helper()
	assert.Equal(t, "postgres", string(e.Dialect()))
}

func TestEngine_AcquireAndRelease(t *testing.T) {
	e, mock := newMockEngine(t, dbmanager.DatabaseTypePostgreSQL)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(1)))

	handle, err := e.Acquire(context.Background(), "req-1")
	require.NoError(t, err)

	prepared, err := handle.Prepare(context.Background(), "stmt1", "SELECT 1")
	require.NoError(t, err)

	stream, err := prepared.Execute(context.Background(), nil)
	require.NoError(t, err)
	row, ok, err := stream.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), row.Get("x").Int)
	require.NoError(t, stream.Close())

	require.NoError(t, handle.Release())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_PrepareCachesByStatementID(t *testing.T) {
	e, mock := newMockEngine(t, dbmanager.DatabaseTypePostgreSQL)
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(int64(2)))

	handle, err := e.Acquire(context.Background(), "req-2")
	require.NoError(t, err)
	defer handle.Release()

	first, err := handle.Prepare(context.Background(), "cached", "SELECT 1")
	require.NoError(t, err)
	second, err := handle.Prepare(context.Background(), "cached", "SELECT 1")
	require.NoError(t, err)
	assert.Same(t, first.statement, second.statement)
}

func TestEngine_WithPgbouncerSafeName_OnlyAppliesToPostgres(t *testing.T) {
	pg, _ := newMockEngine(t, dbmanager.DatabaseTypePostgreSQL)
	handlePg, err := pg.Acquire(context.Background(), "r1")
	require.NoError(t, err)
	defer handlePg.Release()
	assert.NotEqual(t, "stmt1", handlePg.WithPgbouncerSafeName("stmt1"))

	lite, _ := newMockEngine(t, dbmanager.DatabaseTypeSQLite)
	handleLite, err := lite.Acquire(context.Background(), "r2")
	require.NoError(t, err)
	defer handleLite.Release()
	assert.Equal(t, "stmt1", handleLite.WithPgbouncerSafeName("stmt1"))
}

func TestSplitOnConnect_SplitsOnSemicolons(t *testing.T) {
	stmts := splitOnConnect("SET a = 1; SET b = 2;")
	require.Len(t, stmts, 2)
	assert.Equal(t, "SET a = 1", stmts[0])
	assert.Equal(t, " SET b = 2", stmts[1])
}
