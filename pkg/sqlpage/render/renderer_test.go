package render

import (
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/reqctx"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqlerr"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
)

func newRenderer(t *testing.T) (*Renderer, *httptest.ResponseRecorder, *reqctx.RequestContext) {
	t.Helper()
	ts, err := NewTemplateSet("")
	require.NoError(t, err)
	w := httptest.NewRecorder()
	rc := reqctx.New(httptest.NewRequest("GET", "/hello.sql", nil))
	return New(w, rc, ts), w, rc
}

func TestRenderer_TextComponentRendersTitleAndContents(t *testing.T) {
	r, w, _ := newRenderer(t)
	row := sqltypes.NewRow()
	row.Set("contents", sqltypes.FromText("Hi Ada"))

	require.NoError(t, r.OpenComponent("text", row))
	require.NoError(t, r.CloseComponent())
	r.Stop()

	assert.Contains(t, w.Body.String(), "Hi Ada")
}

func TestRenderer_FirstWriteTransitionsStateToStreaming(t *testing.T) {
	r, _, rc := newRenderer(t)
	assert.Equal(t, reqctx.Pending, rc.State())

	row := sqltypes.NewRow()
	row.Set("contents", sqltypes.FromText("x"))
	require.NoError(t, r.OpenComponent("text", row))
	r.Stop()

	assert.Equal(t, reqctx.Streaming, rc.State())
}

func TestRenderer_MissingTemplateBeforeStreamReturnsError(t *testing.T) {
	r, _, rc := newRenderer(t)
	require.Equal(t, reqctx.Pending, rc.State())

	err := r.OpenComponent("no_such_component", sqltypes.NewRow())
	require.Error(t, err)
	var se *sqlerr.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, sqlerr.TemplateMissing, se.Kind)
}

func TestRenderer_RenderError_AbortsBeforeFirstByte(t *testing.T) {
	r, _, rc := newRenderer(t)
	require.Equal(t, reqctx.Pending, rc.State())

	original := errors.New("boom")
	err := r.RenderError(original)
	assert.Equal(t, original, err)
}

func TestRenderer_RenderError_AppendsInlineAfterStreamingStarted(t *testing.T) {
	r, w, rc := newRenderer(t)
	row := sqltypes.NewRow()
	row.Set("contents", sqltypes.FromText("started"))
	require.NoError(t, r.OpenComponent("text", row))
	require.Equal(t, reqctx.Streaming, rc.State())

	err := r.RenderError(errors.New("late failure"))
	require.NoError(t, err)
	r.Stop()

	assert.Contains(t, w.Body.String(), "late failure")
	assert.Contains(t, w.Body.String(), "sqlpage-error")
}

func TestRenderer_TableComponentRendersItemRows(t *testing.T) {
	r, w, _ := newRenderer(t)
	require.NoError(t, r.OpenComponent("table", sqltypes.NewRow()))
	row := sqltypes.NewRow()
	row.Set("name", sqltypes.FromText("Ada"))
	require.NoError(t, r.AppendRow(row))
	require.NoError(t, r.CloseComponent())
	r.Stop()

	assert.Contains(t, w.Body.String(), "Ada")
}
