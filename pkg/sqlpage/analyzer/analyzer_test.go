package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
)

func TestAnalyzeSource_SplitsOnSemicolon(t *testing.T) {
	src := `SELECT 'a' AS component; SELECT 'b' AS component;`
	af, err := AnalyzeSource("test.sql", src, sqltypes.DialectPostgres)
	require.NoError(t, err)
	assert.Len(t, af.Statements, 2)
}

func TestAnalyzeSource_SemicolonInsideStringLiteralDoesNotSplit(t *testing.T) {
	src := `SELECT 'a;b' AS component;`
	af, err := AnalyzeSource("test.sql", src, sqltypes.DialectPostgres)
	require.NoError(t, err)
	require.Len(t, af.Statements, 1)
	assert.Equal(t, "a;b", af.Statements[0].StaticColumns["component"].Text)
}

func TestAnalyzeSource_StaticRowNoFunctionCall(t *testing.T) {
	src := `SELECT 'text' AS component, 'Hi Ada' AS contents;`
	af, err := AnalyzeSource("hello.sql", src, sqltypes.DialectPostgres)
	require.NoError(t, err)
	require.Len(t, af.Statements, 1)
	stmt := af.Statements[0]
	assert.Equal(t, KindStaticRow, stmt.Kind)
	assert.Equal(t, []string{"component", "contents"}, stmt.StaticOrder)
	assert.Equal(t, "text", stmt.StaticColumns["component"].Text)
	assert.Equal(t, "Hi Ada", stmt.StaticColumns["contents"].Text)
}

func TestAnalyzeSource_NamedPlaceholderRewrittenPerDialect(t *testing.T) {
	cases := []struct {
		dialect sqltypes.Dialect
		want    string
	}{
		{sqltypes.DialectPostgres, "SELECT * FROM users WHERE id = $1"},
		{sqltypes.DialectMSSQL, "SELECT * FROM users WHERE id = @p1"},
		{sqltypes.DialectMySQL, "SELECT * FROM users WHERE id = ?"},
		{sqltypes.DialectSQLite, "SELECT * FROM users WHERE id = ?"},
	}
	for _, c := range cases {
		af, err := AnalyzeSource("t.sql", "SELECT * FROM users WHERE id = $id", c.dialect)
		require.NoError(t, err)
		require.Len(t, af.Statements, 1)
		assert.Equal(t, c.want, af.Statements[0].SQL)
		require.Len(t, af.Statements[0].Placeholders, 1)
		assert.Equal(t, SourceNamed, af.Statements[0].Placeholders[0].Kind)
		assert.Equal(t, "id", af.Statements[0].Placeholders[0].Name)
	}
}

func TestAnalyzeSource_PlaceholderNeverInterpolatedIntoSQLText(t *testing.T) {
	af, err := AnalyzeSource("t.sql", "SELECT * FROM users WHERE name = $name", sqltypes.DialectPostgres)
	require.NoError(t, err)
	sql := af.Statements[0].SQL
	assert.NotContains(t, sql, "$name")
	assert.Contains(t, sql, "$1")
}

func TestAnalyzeSource_KnownFunctionCallRewritten(t *testing.T) {
	af, err := AnalyzeSource("t.sql", "SELECT sqlpage.url_encode($q) AS contents", sqltypes.DialectPostgres)
	require.NoError(t, err)
	require.Len(t, af.Statements, 1)
	require.Len(t, af.Statements[0].Placeholders, 1)
	ref := af.Statements[0].Placeholders[0]
	assert.Equal(t, SourceFunction, ref.Kind)
	assert.Equal(t, "url_encode", ref.Function.Name)
	require.Len(t, ref.Function.Args, 1)
	assert.Equal(t, "q", ref.Function.Args[0].Named)
}

func TestAnalyzeSource_UnknownFunctionIsAnalysisError(t *testing.T) {
	_, err := AnalyzeSource("t.sql", "SELECT sqlpage.not_a_real_function('x') AS contents", sqltypes.DialectPostgres)
	require.Error(t, err)
	ae, ok := err.(*AnalysisError)
	require.True(t, ok)
	assert.Equal(t, ErrUnknownFunction, ae.Kind)
}

func TestAnalyzeSource_SetVariableWrapsInnerStatement(t *testing.T) {
	af, err := AnalyzeSource("t.sql", "SET name = (SELECT $name);", sqltypes.DialectPostgres)
	require.NoError(t, err)
	require.Len(t, af.Statements, 1)
	stmt := af.Statements[0]
	assert.Equal(t, KindSetVariable, stmt.Kind)
	assert.Equal(t, "name", stmt.VariableName)
}

func TestAnalyzeSource_DollarQuoteBodyIsNotSplitOnSemicolon(t *testing.T) {
	src := "SELECT $$a; b$$ AS contents;"
	af, err := AnalyzeSource("t.sql", src, sqltypes.DialectPostgres)
	require.NoError(t, err)
	assert.Len(t, af.Statements, 1)
}

func TestAnalyzeSource_RecursiveFunctionDepthGuard(t *testing.T) {
	// deeply nested sqlpage.url_encode(sqlpage.url_encode(...)) should not
	// infinite loop; it either resolves or returns ErrRecursiveFunction.
	inner := "'x'"
	for i := 0; i < 20; i++ {
		inner = "sqlpage.url_encode(" + inner + ")"
	}
	_, err := AnalyzeSource("t.sql", "SELECT "+inner+" AS contents", sqltypes.DialectPostgres)
	if err != nil {
		ae, ok := err.(*AnalysisError)
		require.True(t, ok)
		assert.Equal(t, ErrRecursiveFunction, ae.Kind)
	}
}
