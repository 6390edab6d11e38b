// Package dbexec is the database abstraction: unified prepare/execute/stream
// over PostgreSQL, MySQL/MariaDB, SQLite, and MSSQL, built directly on
// pkg/dbmanager's connection pooling rather than reimplementing pool
// management.
package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bitechdev/ResolveSpec/pkg/dbmanager"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqlerr"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
)

// Engine wraps a dbmanager.Connection and exposes the spec's four
// operations: acquire, prepare, execute, set_session_options.
type Engine struct {
	conn    dbmanager.Connection
	dialect sqltypes.Dialect

	onConnectSQL string
}

func NewEngine(conn dbmanager.Connection, onConnectSQL string) *Engine {
	return &Engine{
		conn:         conn,
		dialect:      dialectOf(conn.Type()),
		onConnectSQL: onConnectSQL,
	}
}

func dialectOf(t dbmanager.DatabaseType) sqltypes.Dialect {
	switch t {
	case dbmanager.DatabaseTypePostgreSQL:
		return sqltypes.DialectPostgres
	case dbmanager.DatabaseTypeSQLite:
		return sqltypes.DialectSQLite
	case dbmanager.DatabaseTypeMSSQL:
		return sqltypes.DialectMSSQL
	case dbmanager.DatabaseTypeMySQL:
		return sqltypes.DialectMySQL
	default:
		return sqltypes.DialectPostgres
	}
}

func (e *Engine) Dialect() sqltypes.Dialect { return e.dialect }

// ConnHandle is a single *sql.Conn acquired for the lifetime of one HTTP
// request — the spec's "each request observes a single database connection
// from start to finish" invariant. Statement preparation is cached on the
// handle so it survives across the statements of this request; it is NOT
// shared process-wide per se, but the handle is drawn from the
// process-shared pool in dbmanager.
type ConnHandle struct {
	engine    *Engine
	requestID string
	conn      *sql.Conn

	preparedMu sync.Mutex
	prepared   map[string]*sql.Stmt
}

// Acquire borrows one physical connection dedicated to requestID, returned to
// the pool when Release is called (typically via defer).
func (e *Engine) Acquire(ctx context.Context, requestID string) (*ConnHandle, error) {
	db, err := e.conn.Native()
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.DbConnect, "native handle unavailable", err)
	}
	c, err := db.Conn(ctx)
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.DbConnect, "acquire connection", err)
	}
	h := &ConnHandle{
		engine:    e,
		requestID: requestID,
		conn:      c,
		prepared:  make(map[string]*sql.Stmt),
	}
	if e.onConnectSQL != "" {
		if err := h.SetSessionOptions(ctx, e.onConnectSQL); err != nil {
			c.Close()
			return nil, err
		}
	}
	return h, nil
}

// Release returns the connection to the pool. Any statements prepared on
// this handle are closed with it — dbmanager's pool does not pin state
// across requests (per spec §5), so per-handle caching, not process-wide, is
// correct for connection-scoped prepared statements.
func (h *ConnHandle) Release() error {
	h.preparedMu.Lock()
	for _, stmt := range h.prepared {
		stmt.Close()
	}
	h.preparedMu.Unlock()
	return h.conn.Close()
}

// SetSessionOptions runs sqlText once against this connection, splitting on
// dialect statement boundaries first since MySQL on_connect scripts may hold
// several statements.
func (h *ConnHandle) SetSessionOptions(ctx context.Context, sqlText string) error {
	for _, stmt := range splitOnConnect(sqlText) {
		if _, err := h.conn.ExecContext(ctx, stmt); err != nil {
			return sqlerr.Wrap(sqlerr.DbConnect, "set_session_options", err)
		}
	}
	return nil
}

func splitOnConnect(sqlText string) []string {
	var stmts []string
	cur := ""
	for _, r := range sqlText {
		if r == ';' {
			if trimmed := cur; trimmed != "" {
				stmts = append(stmts, trimmed)
			}
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		stmts = append(stmts, cur)
	}
	return stmts
}

// PreparedRef is a lazily-prepared statement cached on the ConnHandle by
// statementID.
type PreparedRef struct {
	handle    *ConnHandle
	statement *sql.Stmt
	dialect   sqltypes.Dialect
}

// Prepare returns the cached prepared statement for statementID, preparing
// it on first use. PostgreSQL gets a randomized suffix folded into
// statementID by the caller when pgbouncer transaction pooling is in play
// (see WithPgbouncerSafeName) so "prepared statement already exists" never
// fires.
func (h *ConnHandle) Prepare(ctx context.Context, statementID, sqlText string) (*PreparedRef, error) {
	h.preparedMu.Lock()
	defer h.preparedMu.Unlock()

	if stmt, ok := h.prepared[statementID]; ok {
		return &PreparedRef{handle: h, statement: stmt, dialect: h.engine.dialect}, nil
	}

	stmt, err := h.conn.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, sqlerr.Wrap(sqlerr.DbExecute, "prepare", err)
	}
	h.prepared[statementID] = stmt
	return &PreparedRef{handle: h, statement: stmt, dialect: h.engine.dialect}, nil
}

// InvalidateStatement drops a cached prepared statement after a schema
// error, so the next Prepare re-parses against the now-different schema.
func (h *ConnHandle) InvalidateStatement(statementID string) {
	h.preparedMu.Lock()
	defer h.preparedMu.Unlock()
	if stmt, ok := h.prepared[statementID]; ok {
		stmt.Close()
		delete(h.prepared, statementID)
	}
}

// WithPgbouncerSafeName appends a random suffix to statementID for
// PostgreSQL connections, avoiding prepared-statement name collisions under
// transaction-pooling proxies.
func (h *ConnHandle) WithPgbouncerSafeName(statementID string) string {
	if h.engine.dialect != sqltypes.DialectPostgres {
		return statementID
	}
	return fmt.Sprintf("%s_%s", statementID, uuid.NewString())
}

// Execute runs the prepared statement with params and returns a pull-based
// row stream.
func (p *PreparedRef) Execute(ctx context.Context, params []any) (*RowStream, error) {
	rows, err := p.statement.QueryContext(ctx, params...)
	if err != nil {
		return nil, classifyExecError(err)
	}
	return newRowStream(rows)
}

func classifyExecError(err error) error {
	// MSSQL surfaces line numbers on mssql.Error; surfaced unchanged rather
	// than reformatted so operators see the driver's own diagnostics.
	return sqlerr.Wrap(sqlerr.DbExecute, "execute", err)
}
