package params

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/analyzer"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/reqctx"
)

func newRC(t *testing.T, target string) *reqctx.RequestContext {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	return reqctx.New(r)
}

func TestEvaluate_NamedPlaceholderResolvedFromQuery(t *testing.T) {
	rc := newRC(t, "/page.sql?name=Ada")
	stmt := &analyzer.Statement{
		Placeholders: []analyzer.PlaceholderRef{
			{Ordinal: 1, Kind: analyzer.SourceNamed, Name: "name"},
		},
	}
	vec, err := Evaluate(context.Background(), stmt, rc)
	require.NoError(t, err)
	require.Len(t, vec, 1)
	assert.Equal(t, "Ada", vec[0])
}

func TestEvaluate_MissingNamedPlaceholderResolvesEmpty(t *testing.T) {
	rc := newRC(t, "/page.sql")
	stmt := &analyzer.Statement{
		Placeholders: []analyzer.PlaceholderRef{
			{Ordinal: 1, Kind: analyzer.SourceNamed, Name: "missing"},
		},
	}
	vec, err := Evaluate(context.Background(), stmt, rc)
	require.NoError(t, err)
	require.Len(t, vec, 1)
	assert.Equal(t, "", vec[0])
}

func TestEvaluate_SetVariableTakesPrecedenceOverQueryParam(t *testing.T) {
	rc := newRC(t, "/page.sql?name=FromQuery")
	rc.SetVar("name", "FromVariable")
	stmt := &analyzer.Statement{
		Placeholders: []analyzer.PlaceholderRef{
			{Ordinal: 1, Kind: analyzer.SourceNamed, Name: "name"},
		},
	}
	vec, err := Evaluate(context.Background(), stmt, rc)
	require.NoError(t, err)
	assert.Equal(t, "FromVariable", vec[0])
}

func TestEvaluate_FunctionArgsEvaluatedLeftToRightDepthFirst(t *testing.T) {
	rc := newRC(t, "/page.sql?raw=a b")
	stmt := &analyzer.Statement{
		Placeholders: []analyzer.PlaceholderRef{
			{
				Ordinal: 1,
				Kind:    analyzer.SourceFunction,
				Function: &analyzer.FunctionCall{
					Name: "url_encode",
					Args: []analyzer.Arg{{Named: "raw"}},
				},
			},
		},
	}
	vec, err := Evaluate(context.Background(), stmt, rc)
	require.NoError(t, err)
	require.Len(t, vec, 1)
	assert.Equal(t, "a+b", vec[0])
}

func TestEvaluate_NestedFunctionCallEvaluatesInnerFirst(t *testing.T) {
	rc := newRC(t, "/page.sql")
	stmt := &analyzer.Statement{
		Placeholders: []analyzer.PlaceholderRef{
			{
				Ordinal: 1,
				Kind:    analyzer.SourceFunction,
				Function: &analyzer.FunctionCall{
					Name: "url_encode",
					Args: []analyzer.Arg{
						{Func: &analyzer.FunctionCall{Name: "version", Args: nil}},
					},
				},
			},
		},
	}
	vec, err := Evaluate(context.Background(), stmt, rc)
	require.NoError(t, err)
	require.Len(t, vec, 1)
	assert.NotEmpty(t, vec[0])
}

func TestEvaluate_UnknownFunctionReturnsFunctionError(t *testing.T) {
	rc := newRC(t, "/page.sql")
	stmt := &analyzer.Statement{
		Placeholders: []analyzer.PlaceholderRef{
			{
				Ordinal:  1,
				Kind:     analyzer.SourceFunction,
				Function: &analyzer.FunctionCall{Name: "does_not_exist"},
			},
		},
	}
	_, err := Evaluate(context.Background(), stmt, rc)
	require.Error(t, err)
	var perr *Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ErrFunction, perr.Kind)
}
