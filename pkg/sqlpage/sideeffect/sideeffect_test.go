package sideeffect

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/reqctx"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqlerr"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
)

func newHandler() (*Handler, *httptest.ResponseRecorder, *reqctx.RequestContext) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/page.sql", nil)
	rc := reqctx.New(r)
	return New(w, rc), w, rc
}

func TestApplyHeader_SetsArbitraryHeadersAndStatus(t *testing.T) {
	h, w, _ := newHandler()
	row := sqltypes.NewRow()
	row.Set("X-Custom", sqltypes.FromText("value"))
	row.Set("Status", sqltypes.FromInt64(201))

	require.NoError(t, h.Apply("http_header", row))
	assert.Equal(t, "value", w.Header().Get("X-Custom"))
	assert.Equal(t, 201, w.Code)
}

func TestApplyHeader_FailsAfterHeadersAlreadySent(t *testing.T) {
	h, _, rc := newHandler()
	rc.SetState(reqctx.Streaming)
	row := sqltypes.NewRow()
	row.Set("X-Custom", sqltypes.FromText("late"))

	err := h.Apply("http_header", row)
	require.Error(t, err)
	var se *sqlerr.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, sqlerr.HeadersAlreadySent, se.Kind)
}

func TestApplyCookie_DefaultsSecureNoHttpOnlyStrictSameSite(t *testing.T) {
	h, w, _ := newHandler()
	row := sqltypes.NewRow()
	row.Set("name", sqltypes.FromText("session"))
	row.Set("value", sqltypes.FromText("abc"))

	require.NoError(t, h.Apply("cookie", row))
	assert.Equal(t, "session=abc; Secure; SameSite=Strict", w.Header().Get("Set-Cookie"))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].Secure)
	assert.False(t, cookies[0].HttpOnly)
}

func TestApplyCookie_RemoveOverridesValueAndExpiration(t *testing.T) {
	h, w, _ := newHandler()
	row := sqltypes.NewRow()
	row.Set("name", sqltypes.FromText("session"))
	row.Set("value", sqltypes.FromText("abc"))
	row.Set("remove", sqltypes.FromBool(true))

	require.NoError(t, h.Apply("cookie", row))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.True(t, cookies[0].MaxAge < 0)
}

func TestApplyRedirect_SetsLocationAndTerminatesState(t *testing.T) {
	h, w, rc := newHandler()
	row := sqltypes.NewRow()
	row.Set("link", sqltypes.FromText("/login"))

	err := h.Apply("redirect", row)
	require.True(t, errors.Is(err, ErrRedirected))
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, reqctx.Terminated, rc.State())
}

func TestApplyJSON_SetsContentTypeOnceAndWritesBody(t *testing.T) {
	h, w, rc := newHandler()
	row := sqltypes.NewRow()
	row.Set("contents", sqltypes.FromJSON(`{"ok":true}`))

	require.NoError(t, h.Apply("json", row))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, `{"ok":true}`, w.Body.String())
	assert.Equal(t, reqctx.Streaming, rc.State())
}

func TestApply_UnknownComponentReturnsError(t *testing.T) {
	h, _, _ := newHandler()
	err := h.Apply("not_a_component", sqltypes.NewRow())
	require.Error(t, err)
}
