package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
)

type fakeSink struct {
	opened   []string
	appended []sqltypes.DbRow
	closed   int
	effects  []string
}

func (f *fakeSink) OpenComponent(name string, topLevel sqltypes.DbRow) error {
	f.opened = append(f.opened, name)
	return nil
}

func (f *fakeSink) AppendRow(row sqltypes.DbRow) error {
	f.appended = append(f.appended, row)
	return nil
}

func (f *fakeSink) CloseComponent() error {
	f.closed++
	return nil
}

func (f *fakeSink) SideEffect(name string, row sqltypes.DbRow) error {
	f.effects = append(f.effects, name)
	return nil
}

func row(cols map[string]sqltypes.DbValue) sqltypes.DbRow {
	r := sqltypes.NewRow()
	for k, v := range cols {
		r.Set(k, v)
	}
	return r
}

func TestDispatcher_OpensComponentOnNonNullColumn(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink)

	require.NoError(t, d.Feed(row(map[string]sqltypes.DbValue{"component": sqltypes.FromText("table")})))
	require.NoError(t, d.Close())

	assert.Equal(t, []string{"table"}, sink.opened)
	assert.Equal(t, 1, sink.closed)
}

func TestDispatcher_AppendsSubsequentRowsToCurrentComponent(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink)

	require.NoError(t, d.Feed(row(map[string]sqltypes.DbValue{"component": sqltypes.FromText("table")})))
	require.NoError(t, d.Feed(row(map[string]sqltypes.DbValue{"name": sqltypes.FromText("Ada")})))
	require.NoError(t, d.Close())

	assert.Equal(t, []string{"table"}, sink.opened)
	assert.Len(t, sink.appended, 1)
	assert.Equal(t, 1, sink.closed)
}

func TestDispatcher_NullComponentColumnMeansNoTransition(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink)

	require.NoError(t, d.Feed(row(map[string]sqltypes.DbValue{"component": sqltypes.FromText("table")})))
	require.NoError(t, d.Feed(row(map[string]sqltypes.DbValue{"component": sqltypes.Null(), "name": sqltypes.FromText("Ada")})))
	require.NoError(t, d.Close())

	assert.Equal(t, []string{"table"}, sink.opened)
	assert.Len(t, sink.appended, 1)
}

func TestDispatcher_BeforeStateDefaultsToDebugComponent(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink)

	require.NoError(t, d.Feed(row(map[string]sqltypes.DbValue{"name": sqltypes.FromText("Ada")})))
	require.NoError(t, d.Close())

	assert.Equal(t, []string{"debug"}, sink.opened)
}

func TestDispatcher_RedirectIsRoutedToSideEffectSink(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink)

	require.NoError(t, d.Feed(row(map[string]sqltypes.DbValue{
		"component": sqltypes.FromText("redirect"),
		"link":      sqltypes.FromText("/login"),
	})))

	assert.Equal(t, []string{"redirect"}, sink.effects)
	assert.Empty(t, sink.opened)
}

func TestDispatcher_ClosesOpenComponentBeforeSideEffect(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink)

	require.NoError(t, d.Feed(row(map[string]sqltypes.DbValue{"component": sqltypes.FromText("table")})))
	require.NoError(t, d.Feed(row(map[string]sqltypes.DbValue{"component": sqltypes.FromText("redirect")})))

	assert.Equal(t, 1, sink.closed)
	assert.Equal(t, []string{"redirect"}, sink.effects)
}

func TestDispatcher_DynamicComponentReDispatchesJSONRows(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink)

	require.NoError(t, d.Feed(row(map[string]sqltypes.DbValue{
		"component":  sqltypes.FromText("dynamic"),
		"properties": sqltypes.FromJSON(`[{"component":"table"},{"name":"Ada"}]`),
	})))
	require.NoError(t, d.Close())

	assert.Equal(t, []string{"table"}, sink.opened)
	assert.Len(t, sink.appended, 1)
}

func TestDispatcher_CloseIsNoopWhenNoComponentOpen(t *testing.T) {
	sink := &fakeSink{}
	d := New(sink)
	require.NoError(t, d.Close())
	assert.Equal(t, 0, sink.closed)
}
