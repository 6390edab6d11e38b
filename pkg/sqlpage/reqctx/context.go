// Package reqctx holds the per-request mutable state threaded through the
// pipeline by exclusive reference: parameters, cookies, headers, uploaded
// files, variables bound by SetVariable, and response-in-progress state.
package reqctx

import (
	"net/http"
	"sync"
	"sync/atomic"
)

// ResponseState tracks whether response headers/cookies may still mutate.
type ResponseState int32

const (
	Pending ResponseState = iota
	Streaming
	Terminated
)

// UploadedFile records a drained multipart field.
type UploadedFile struct {
	FieldName string
	TempPath  string
	MimeType  string
	FileName  string
}

// orderedMap preserves insertion order with last-wins semantics for
// duplicate keys, matching RequestContext's get/post parameter maps.
type orderedMap struct {
	mu     sync.RWMutex
	order  []string
	values map[string]string
}

func newOrderedMap() *orderedMap {
	return &orderedMap{values: make(map[string]string)}
}

func (m *orderedMap) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.values[key]; !exists {
		m.order = append(m.order, key)
	}
	m.values[key] = value
}

func (m *orderedMap) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *orderedMap) Map() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.order))
	for _, k := range m.order {
		out[k] = m.values[k]
	}
	return out
}

// RequestContext is built once per request and passed by exclusive reference
// through the whole pipeline.
type RequestContext struct {
	Method string
	Path   string

	Get  *orderedMap
	Post *orderedMap

	cookies map[string]string
	headers map[string]string

	Uploads map[string]UploadedFile

	BasicAuthUser string
	BasicAuthPass string

	vars   map[string]string
	varsMu sync.RWMutex

	state   atomic.Int32
	Request *http.Request
}

func New(r *http.Request) *RequestContext {
	rc := &RequestContext{
		Method:  r.Method,
		Path:    r.URL.Path,
		Get:     newOrderedMap(),
		Post:    newOrderedMap(),
		cookies: map[string]string{},
		headers: map[string]string{},
		Uploads: map[string]UploadedFile{},
		vars:    map[string]string{},
		Request: r,
	}

	for k, vs := range r.URL.Query() {
		for _, v := range vs {
			rc.Get.Set(k, v)
		}
	}
	for _, c := range r.Cookies() {
		rc.cookies[c.Name] = c.Value
	}
	for k := range r.Header {
		rc.headers[k] = r.Header.Get(k)
	}
	if u, p, ok := r.BasicAuth(); ok {
		rc.BasicAuthUser = u
		rc.BasicAuthPass = p
	}
	return rc
}

// Param resolves a $name/:name reference: a SetVariable-bound variable first,
// then POST, then GET — matching "last wins" across the merged parameter
// maps with SetVariable taking precedence since it was bound explicitly by
// the file currently executing.
func (rc *RequestContext) Param(name string) (string, bool) {
	if v, ok := rc.Var(name); ok {
		return v, true
	}
	if v, ok := rc.Post.Get(name); ok {
		return v, true
	}
	return rc.Get.Get(name)
}

func (rc *RequestContext) Cookie(name string) (string, bool) {
	v, ok := rc.cookies[name]
	return v, ok
}

func (rc *RequestContext) Header(name string) (string, bool) {
	v, ok := rc.headers[http.CanonicalHeaderKey(name)]
	if ok {
		return v, true
	}
	v, ok = rc.headers[name]
	return v, ok
}

// SetVar binds $name for the remainder of the file, evaluated synchronously
// by SetVariable before downstream statements run.
func (rc *RequestContext) SetVar(name, value string) {
	rc.varsMu.Lock()
	defer rc.varsMu.Unlock()
	rc.vars[name] = value
}

func (rc *RequestContext) Var(name string) (string, bool) {
	rc.varsMu.RLock()
	defer rc.varsMu.RUnlock()
	v, ok := rc.vars[name]
	return v, ok
}

func (rc *RequestContext) State() ResponseState {
	return ResponseState(rc.state.Load())
}

func (rc *RequestContext) SetState(s ResponseState) {
	rc.state.Store(int32(s))
}

// CASState atomically transitions state from Pending to Streaming, the
// irreversible "first byte flushed" transition.
func (rc *RequestContext) CASState(from, to ResponseState) bool {
	return rc.state.CompareAndSwap(int32(from), int32(to))
}
