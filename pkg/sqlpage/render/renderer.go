// Package render is the streaming renderer: a partial-template engine fed by
// an asynchronous row stream, buffer-then-flush policy, error fallback.
package render

import (
	"bufio"
	"bytes"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/reqctx"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqlerr"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
)

const (
	flushThreshold = 8 * 1024
	flushInterval  = 50 * time.Millisecond
)

// Renderer is the sole owner of the response body writer for one request. It
// implements dispatch.Sink.
type Renderer struct {
	w    http.ResponseWriter
	rc   *reqctx.RequestContext
	tmpl *TemplateSet

	mu      sync.Mutex
	buf     *bufio.Writer
	current *ComponentTemplates
	flusher http.Flusher
	ticker  *time.Ticker
	stopCh  chan struct{}
}

func New(w http.ResponseWriter, rc *reqctx.RequestContext, tmpl *TemplateSet) *Renderer {
	r := &Renderer{
		w:      w,
		rc:     rc,
		tmpl:   tmpl,
		buf:    bufio.NewWriterSize(w, flushThreshold),
		stopCh: make(chan struct{}),
	}
	if f, ok := w.(http.Flusher); ok {
		r.flusher = f
	}
	r.ticker = time.NewTicker(flushInterval)
	go r.periodicFlush()
	return r
}

func (r *Renderer) periodicFlush() {
	for {
		select {
		case <-r.ticker.C:
			r.mu.Lock()
			r.flushLocked()
			r.mu.Unlock()
		case <-r.stopCh:
			return
		}
	}
}

// Stop halts the periodic flush goroutine and performs a final flush. Call
// once the request's statement loop has finished.
func (r *Renderer) Stop() {
	r.ticker.Stop()
	close(r.stopCh)
	r.mu.Lock()
	r.flushLocked()
	r.mu.Unlock()
}

func (r *Renderer) write(p []byte) error {
	if r.rc.CASState(reqctx.Pending, reqctx.Streaming) {
		// first byte of body: headers are now frozen.
	}
	if _, err := r.buf.Write(p); err != nil {
		return sqlerr.Wrap(sqlerr.Io, "write body", err)
	}
	if r.buf.Buffered() >= flushThreshold {
		r.mu.Lock()
		r.flushLocked()
		r.mu.Unlock()
	}
	return nil
}

func (r *Renderer) flushLocked() {
	r.buf.Flush()
	if r.flusher != nil {
		r.flusher.Flush()
	}
}

// OpenComponent emits the component's header partial with the top-level row
// bound.
func (r *Renderer) OpenComponent(name string, topLevel sqltypes.DbRow) error {
	ct, ok := r.tmpl.Get(name)
	if !ok {
		return r.renderMissingTemplate(name)
	}
	r.current = ct
	if ct.Header == nil {
		return nil
	}
	return r.execute(ct.Header, topLevel.Map())
}

// AppendRow emits the current component's item partial once per row.
func (r *Renderer) AppendRow(row sqltypes.DbRow) error {
	if r.current == nil || r.current.Item == nil {
		return nil
	}
	return r.execute(r.current.Item, row.Map())
}

// CloseComponent emits the footer partial when the component closes.
func (r *Renderer) CloseComponent() error {
	if r.current == nil {
		return nil
	}
	ct := r.current
	r.current = nil
	if ct.Footer == nil {
		return nil
	}
	return r.execute(ct.Footer, nil)
}

// SideEffect is unreachable on Renderer — side-effect components are routed
// to pkg/sqlpage/sideeffect by the coordinator before reaching the renderer.
func (r *Renderer) SideEffect(name string, row sqltypes.DbRow) error {
	return fmt.Errorf("render: side-effect component %q reached the renderer", name)
}

func (r *Renderer) execute(tmpl *template.Template, data any) error {
	var b bytes.Buffer
	if err := tmpl.Execute(&b, data); err != nil {
		return sqlerr.Wrap(sqlerr.Render, "execute template", err)
	}
	return r.write(b.Bytes())
}

func (r *Renderer) renderMissingTemplate(name string) error {
	if r.rc.State() == reqctx.Pending {
		return sqlerr.Wrap(sqlerr.TemplateMissing, "no template registered for component", fmt.Errorf("%s", name))
	}
	return r.writeInlineError(sqlerr.Wrap(sqlerr.TemplateMissing, "no template registered for component", fmt.Errorf("%s", name)))
}

// RenderError implements the mid-stream vs pre-stream error split from
// spec §4.E / §7: before the first byte, abort and let the caller emit a
// full error page; after, append a styled inline error partial and keep
// going (best-effort delivery).
func (r *Renderer) RenderError(err error) error {
	if r.rc.State() == reqctx.Pending {
		return err
	}
	return r.writeInlineError(err)
}

func (r *Renderer) writeInlineError(err error) error {
	html := fmt.Sprintf(`<div class="sqlpage-error" style="color:#b00"><strong>Error:</strong> %s</div>`, escapeHTML(err.Error()))
	return r.write([]byte(html))
}

func escapeHTML(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			out = append(out, []byte("&lt;")...)
		case '>':
			out = append(out, []byte("&gt;")...)
		case '&':
			out = append(out, []byte("&amp;")...)
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
