package coordinator

import (
	"database/sql"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/ResolveSpec/pkg/dbmanager"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/analyzer"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/dbexec"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/render"
)

type fakeConnection struct {
	dbmanager.Connection
	db *sql.DB
}

func (f *fakeConnection) Native() (*sql.DB, error)     { return f.db, nil }
func (f *fakeConnection) Type() dbmanager.DatabaseType { return dbmanager.DatabaseTypePostgreSQL }

func newCoordinator(t *testing.T, webRoot string) (*Coordinator, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	engine := dbexec.NewEngine(&fakeConnection{db: db}, "")
	tmpl, err := render.NewTemplateSet("")
	require.NoError(t, err)
	cache := analyzer.NewCache()

	return New(Config{WebRoot: webRoot, MaxUploadedFileSize: 1 << 20}, engine, cache, tmpl), mock
}

func writeSQL(t *testing.T, webRoot, name, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(webRoot, name), []byte(contents), 0o644))
}

func TestCoordinator_RendersTextComponentFromQueryResults(t *testing.T) {
	webRoot := t.TempDir()
	writeSQL(t, webRoot, "hello.sql", `SELECT 'text' AS component, 'Hi Ada' AS contents;`)
	c, _ := newCoordinator(t, webRoot)

	req := httptest.NewRequest("GET", "/hello.sql", nil)
	w := httptest.NewRecorder()
	c.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "Hi Ada")
}

func TestCoordinator_SetsCookieThenRendersComponent(t *testing.T) {
	webRoot := t.TempDir()
	writeSQL(t, webRoot, "login.sql", `
SELECT 'cookie' AS component, 'session' AS name, 'abc123' AS value;
SELECT 'text' AS component, 'Welcome back' AS contents;
`)
	c, _ := newCoordinator(t, webRoot)

	req := httptest.NewRequest("GET", "/login.sql", nil)
	w := httptest.NewRecorder()
	c.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "abc123", cookies[0].Value)
	assert.Contains(t, w.Body.String(), "Welcome back")
}

func TestCoordinator_RedirectShortCircuitsRemainingStatements(t *testing.T) {
	webRoot := t.TempDir()
	writeSQL(t, webRoot, "gate.sql", `
SELECT 'redirect' AS component, '/login' AS link;
SELECT 'text' AS component, 'never rendered' AS contents;
`)
	c, _ := newCoordinator(t, webRoot)

	req := httptest.NewRequest("GET", "/gate.sql", nil)
	w := httptest.NewRecorder()
	c.ServeHTTP(w, req)

	assert.Equal(t, 302, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.NotContains(t, w.Body.String(), "never rendered")
}

func TestCoordinator_UnknownPathRendersNotFound(t *testing.T) {
	webRoot := t.TempDir()
	c, _ := newCoordinator(t, webRoot)

	req := httptest.NewRequest("GET", "/missing.sql", nil)
	w := httptest.NewRecorder()
	c.ServeHTTP(w, req)

	assert.Equal(t, 404, w.Code)
}

func TestCoordinator_DirectoryIndexRedirectsWithTrailingSlash(t *testing.T) {
	webRoot := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(webRoot, "admin"), 0o755))
	writeSQL(t, webRoot, filepath.Join("admin", "index.sql"), `SELECT 'text' AS component, 'Admin' AS contents;`)
	c, _ := newCoordinator(t, webRoot)

	req := httptest.NewRequest("GET", "/admin", nil)
	w := httptest.NewRecorder()
	c.ServeHTTP(w, req)

	assert.Equal(t, 301, w.Code)
	assert.Equal(t, "/admin/", w.Header().Get("Location"))
}

func TestCoordinator_SetVariableIsAvailableToLaterStatement(t *testing.T) {
	webRoot := t.TempDir()
	writeSQL(t, webRoot, "echo.sql", `
SET greeting = (SELECT 'Ada' AS greeting);
SELECT 'text' AS component, $greeting AS contents;
`)
	c, mock := newCoordinator(t, webRoot)
	mock.ExpectQuery(`SELECT 'Ada' AS greeting`).
		WillReturnRows(sqlmock.NewRows([]string{"greeting"}).AddRow("Ada"))
	mock.ExpectQuery(`SELECT 'text' AS component, \$1 AS contents`).
		WillReturnRows(sqlmock.NewRows([]string{"component", "contents"}).AddRow("text", "Ada"))

	req := httptest.NewRequest("GET", "/echo.sql", nil)
	w := httptest.NewRecorder()
	c.ServeHTTP(w, req)

	assert.Equal(t, 200, w.Code)
	assert.Contains(t, w.Body.String(), "Ada")
	assert.NoError(t, mock.ExpectationsWereMet())
}
