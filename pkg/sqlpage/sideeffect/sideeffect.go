// Package sideeffect implements the dispatcher's side-effect sink: rows that
// mutate response metadata (headers, cookies, redirect) or bypass templating
// entirely (json) instead of producing body HTML.
package sideeffect

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/reqctx"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqlerr"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
)

// ErrRedirected is returned by Handler.Apply for a redirect row, signalling
// the statement loop to cancel remaining statements within the request.
var ErrRedirected = errors.New("sqlpage: redirect short-circuit")

// Handler applies side-effect rows against the in-flight HTTP response.
type Handler struct {
	W  http.ResponseWriter
	RC *reqctx.RequestContext
}

func New(w http.ResponseWriter, rc *reqctx.RequestContext) *Handler {
	return &Handler{W: w, RC: rc}
}

// Apply dispatches by component name, enforcing the headers-before-body
// invariant: any http_header/cookie/redirect emitted after the first
// flushed body byte fails with HeadersAlreadySent.
func (h *Handler) Apply(name string, row sqltypes.DbRow) error {
	switch name {
	case "http_header":
		return h.applyHeader(row)
	case "cookie":
		return h.applyCookie(row)
	case "redirect":
		return h.applyRedirect(row)
	case "json":
		return h.applyJSON(row)
	default:
		return fmt.Errorf("sideeffect: unknown component %q", name)
	}
}

func (h *Handler) requireHeadersMutable() error {
	if h.RC.State() != reqctx.Pending {
		return sqlerr.New(sqlerr.HeadersAlreadySent, "response body already streaming")
	}
	return nil
}

func (h *Handler) applyHeader(row sqltypes.DbRow) error {
	if err := h.requireHeadersMutable(); err != nil {
		return err
	}
	for _, col := range row.Columns {
		if col == dispatchColumn {
			continue
		}
		v := row.Get(col)
		if v.IsNull() {
			continue
		}
		if strings.EqualFold(col, "Status") {
			if code, err := strconv.Atoi(v.String()); err == nil {
				h.W.WriteHeader(code)
			}
			continue
		}
		h.W.Header().Set(col, v.String())
	}
	return nil
}

const dispatchColumn = "component"

// applyCookie parses the documented attributes and emits one Set-Cookie.
// remove=true overrides other attributes, sending an expiration in the past
// with an empty value.
func (h *Handler) applyCookie(row sqltypes.DbRow) error {
	if err := h.requireHeadersMutable(); err != nil {
		return err
	}
	c := &http.Cookie{}
	if v := row.Get("name"); !v.IsNull() {
		c.Name = v.String()
	}
	if v := row.Get("value"); !v.IsNull() {
		c.Value = v.String()
	}
	if v := row.Get("path"); !v.IsNull() {
		c.Path = v.String()
	}
	if v := row.Get("domain"); !v.IsNull() {
		c.Domain = v.String()
	}
	if v := row.Get("secure"); !v.IsNull() {
		c.Secure = truthy(v)
	} else {
		c.Secure = true
	}
	if v := row.Get("http_only"); !v.IsNull() {
		c.HttpOnly = truthy(v)
	}
	if v := row.Get("max_age"); !v.IsNull() {
		if secs, err := strconv.Atoi(v.String()); err == nil {
			c.MaxAge = secs
		}
	}
	if v := row.Get("expires"); !v.IsNull() {
		if t, err := time.Parse(time.RFC3339, v.String()); err == nil {
			c.Expires = t
		}
	}
	switch strings.ToLower(row.Get("same_site").String()) {
	case "lax":
		c.SameSite = http.SameSiteLaxMode
	case "none":
		c.SameSite = http.SameSiteNoneMode
	default:
		c.SameSite = http.SameSiteStrictMode
	}

	if v := row.Get("remove"); !v.IsNull() && truthy(v) {
		c.Value = ""
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	}

	http.SetCookie(h.W, c)
	return nil
}

func truthy(v sqltypes.DbValue) bool {
	switch v.Kind {
	case sqltypes.KindBool:
		return v.Bool
	case sqltypes.KindInt64:
		return v.Int != 0
	case sqltypes.KindText, sqltypes.KindJSON:
		s := strings.ToLower(v.Text)
		return s == "true" || s == "1" || s == "t" || s == "yes"
	default:
		return false
	}
}

func (h *Handler) applyRedirect(row sqltypes.DbRow) error {
	if err := h.requireHeadersMutable(); err != nil {
		return err
	}
	link := row.Get("link").String()
	h.W.Header().Set("Location", link)
	h.W.WriteHeader(http.StatusFound)
	h.RC.SetState(reqctx.Terminated)
	return ErrRedirected
}

func (h *Handler) applyJSON(row sqltypes.DbRow) error {
	if h.RC.CASState(reqctx.Pending, reqctx.Streaming) {
		h.W.Header().Set("Content-Type", "application/json")
	}
	contents := row.Get("contents")
	_, err := h.W.Write([]byte(contents.String()))
	return err
}
