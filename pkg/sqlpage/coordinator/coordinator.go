// Package coordinator owns the per-request state machine: locate file,
// acquire connection, run the statement pipeline, translate errors to
// responses.
package coordinator

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bitechdev/ResolveSpec/pkg/errortracking"
	"github.com/bitechdev/ResolveSpec/pkg/logger"
	"github.com/bitechdev/ResolveSpec/pkg/metrics"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/analyzer"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/dbexec"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/dispatch"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/params"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/render"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/reqctx"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sideeffect"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqlerr"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
	"github.com/bitechdev/ResolveSpec/pkg/tracing"
)

// Config parameterizes the coordinator.
type Config struct {
	WebRoot             string
	MaxUploadedFileSize int64 // bytes
}

// Coordinator handles one request end to end.
type Coordinator struct {
	cfg        Config
	engine     *dbexec.Engine
	cache      *analyzer.Cache
	tmpl       *render.TemplateSet
	errTracker errortracking.Provider
}

func New(cfg Config, engine *dbexec.Engine, cache *analyzer.Cache, tmpl *render.TemplateSet) *Coordinator {
	return &Coordinator{cfg: cfg, engine: engine, cache: cache, tmpl: tmpl, errTracker: errortracking.NewNoOpProvider()}
}

// SetErrorTracker overrides the default no-op error tracking provider, e.g.
// with a Sentry-backed one built from ErrorTrackingConfig.
func (c *Coordinator) SetErrorTracker(p errortracking.Provider) {
	if p != nil {
		c.errTracker = p
	}
}

// ServeHTTP implements the catch-all handler: resolve path, drive the
// pipeline, recover from panics the way the rest of this module's handlers
// do (log with stack trace, fail the request, never crash the process).
func (c *Coordinator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("panic in sqlpage request for %s: %v", r.URL.Path, rec)
			c.errTracker.CapturePanic(r.Context(), rec, debug.Stack(), map[string]interface{}{"path": r.URL.Path})
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
	}()

	path, redirected := c.resolvePath(w, r)
	if redirected {
		return
	}
	if path == "" {
		c.renderErrorPage(w, nil, sqlerr.New(sqlerr.FileNotFound, r.URL.Path))
		return
	}

	rc := reqctx.New(r)
	if err := c.drainUploads(r, rc); err != nil {
		c.renderErrorPage(w, rc, sqlerr.Wrap(sqlerr.Io, "multipart upload", err))
		return
	}

	af, err := c.cache.Analyze(path, c.engine.Dialect())
	if err != nil {
		var ae *analyzer.AnalysisError
		if errors.As(err, &ae) {
			c.renderErrorPage(w, rc, sqlerr.Wrap(sqlerr.Analysis, ae.Error(), err))
			return
		}
		if os.IsNotExist(err) {
			c.renderErrorPage(w, rc, sqlerr.New(sqlerr.FileNotFound, path))
			return
		}
		c.renderErrorPage(w, rc, sqlerr.Wrap(sqlerr.Io, "read sql file", err))
		return
	}

	c.run(w, r, rc, af)
}

// resolvePath maps the URL path to a filesystem path under web_root, adding
// the .sql suffix or falling back to <dir>/index.sql, and issuing the 301
// canonicalization redirect when a directory's index.sql is accessed without
// a trailing slash.
func (c *Coordinator) resolvePath(w http.ResponseWriter, r *http.Request) (string, bool) {
	urlPath := r.URL.Path
	if urlPath == "" {
		urlPath = "/"
	}

	trimmed := strings.TrimSuffix(urlPath, "/")
	direct := filepath.Join(c.cfg.WebRoot, trimmed+".sql")
	if fileExists(direct) && !strings.HasSuffix(urlPath, "/") {
		return direct, false
	}

	indexPath := filepath.Join(c.cfg.WebRoot, trimmed, "index.sql")
	if fileExists(indexPath) {
		if !strings.HasSuffix(urlPath, "/") {
			http.Redirect(w, r, urlPath+"/", http.StatusMovedPermanently)
			return "", true
		}
		return indexPath, false
	}

	if fileExists(direct) {
		return direct, false
	}

	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// run drives the statement loop: for each statement, build the parameter
// vector, execute it, and feed rows through the dispatcher to either the
// renderer or the side-effect sink.
func (c *Coordinator) run(w http.ResponseWriter, r *http.Request, rc *reqctx.RequestContext, af *analyzer.AnalyzedFile) {
	ctx := r.Context()
	requestID := uuid.NewString()

	handle, err := c.engine.Acquire(ctx, requestID)
	if err != nil {
		c.renderErrorPage(w, rc, err)
		return
	}
	defer handle.Release()

	renderer := render.New(w, rc, c.tmpl)
	defer renderer.Stop()
	effects := sideeffect.New(w, rc)

	combined := &combinedSink{renderer: renderer, effects: effects}
	dispatcher := dispatch.New(combined)

	for i, stmt := range af.Statements {
		if err := c.runStatement(ctx, handle, stmt, rc, dispatcher, renderer); err != nil {
			if errors.Is(err, sideeffect.ErrRedirected) {
				return
			}
			if rc.State() == reqctx.Pending {
				c.renderErrorPage(w, rc, err)
				return
			}
			logger.Error("sqlpage statement error in %s (statement %d, line %d): %v", af.Path, i, stmt.Line, err)
			_ = renderer.RenderError(err)
			continue
		}
	}
	_ = dispatcher.Close()
}

func (c *Coordinator) runStatement(ctx context.Context, handle *dbexec.ConnHandle, stmt analyzer.Statement, rc *reqctx.RequestContext, d *dispatch.Dispatcher, renderer *render.Renderer) error {
	if stmt.Kind == analyzer.KindStaticRow {
		row := sqltypes.NewRow()
		for _, col := range stmt.StaticOrder {
			row.Set(col, stmt.StaticColumns[col])
		}
		return d.Feed(row)
	}

	vec, err := params.Evaluate(ctx, &stmt, rc)
	if err != nil {
		return sqlerr.Wrap(sqlerr.Param, "evaluate parameters", err)
	}

	ctx, span := tracing.StartSpan(ctx, "sqlpage.statement")
	defer span.End()
	started := time.Now()

	statementLine := strconv.Itoa(stmt.Line)

	statementID := handle.WithPgbouncerSafeName(stmt.RawSQL)
	prepared, err := handle.Prepare(ctx, statementID, stmt.SQL)
	if err != nil {
		tracing.RecordError(ctx, err)
		metrics.GetProvider().RecordDBQuery("prepare", statementLine, time.Since(started), err)
		return err
	}

	stream, err := prepared.Execute(ctx, vec)
	metrics.GetProvider().RecordDBQuery("execute", statementLine, time.Since(started), err)
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	defer stream.Close()

	if stmt.Kind == analyzer.KindSetVariable {
		row, ok, err := stream.Next()
		if err != nil {
			return sqlerr.Wrap(sqlerr.DbExecute, "set variable", err)
		}
		if ok && len(row.Columns) > 0 {
			rc.SetVar(stmt.VariableName, row.Get(row.Columns[0]).String())
		}
		return nil
	}

	for {
		row, ok, err := stream.Next()
		if err != nil {
			return sqlerr.Wrap(sqlerr.DbExecute, "stream rows", err)
		}
		if !ok {
			return nil
		}
		if err := d.Feed(row); err != nil {
			return err
		}
	}
}

// combinedSink routes renderable rows to the renderer and side-effect rows
// to the sideeffect handler, matching dispatch.Sink.
type combinedSink struct {
	renderer *render.Renderer
	effects  *sideeffect.Handler
}

func (s *combinedSink) OpenComponent(name string, topLevel sqltypes.DbRow) error {
	return s.renderer.OpenComponent(name, topLevel)
}

func (s *combinedSink) AppendRow(row sqltypes.DbRow) error {
	return s.renderer.AppendRow(row)
}

func (s *combinedSink) CloseComponent() error {
	return s.renderer.CloseComponent()
}

func (s *combinedSink) SideEffect(name string, row sqltypes.DbRow) error {
	return s.effects.Apply(name, row)
}

func (c *Coordinator) renderErrorPage(w http.ResponseWriter, rc *reqctx.RequestContext, err error) {
	status := http.StatusInternalServerError
	var se *sqlerr.Error
	if errors.As(err, &se) {
		switch se.Kind {
		case sqlerr.FileNotFound:
			status = http.StatusNotFound
		case sqlerr.Analysis, sqlerr.Param:
			status = http.StatusBadRequest
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte("<html><body><h1>" + http.StatusText(status) + "</h1><pre>" + escapeForErrorPage(err.Error()) + "</pre></body></html>"))
}

func escapeForErrorPage(s string) string {
	r := strings.NewReplacer("<", "&lt;", ">", "&gt;", "&", "&amp;")
	return r.Replace(s)
}
