// Package dispatch converts each row of a statement's result into a
// component-template invocation, recognizing "shell", "redirect", "cookie",
// "http_header", "json", "dynamic", and user-defined components.
package dispatch

import (
	"encoding/json"
	"fmt"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
)

// ColumnName is the column whose presence signals a component transition.
const ColumnName = "component"

// sideEffectNames bypass rendering entirely.
var sideEffectNames = map[string]bool{
	"http_header": true,
	"cookie":      true,
	"redirect":    true,
	"json":        true,
	"dynamic":     true,
}

// IsSideEffect reports whether component is routed to the side-effect sink
// instead of the renderer.
func IsSideEffect(component string) bool {
	return sideEffectNames[component]
}

// State is the per-request finite state machine position.
type State int

const (
	Before State = iota
	InComponent
)

// Sink receives dispatcher events: open/append/close for renderable
// components, and the raw row for side-effect components.
type Sink interface {
	OpenComponent(name string, topLevel sqltypes.DbRow) error
	AppendRow(row sqltypes.DbRow) error
	CloseComponent() error
	SideEffect(name string, row sqltypes.DbRow) error
}

// Dispatcher holds per-request FSM state. Feed is called once per row
// produced by the statement loop (including synthetic rows produced by a
// "dynamic" component's recursive re-entry).
type Dispatcher struct {
	sink    Sink
	state   State
	current string
	depth   int
}

const maxDynamicDepth = 8

func New(sink Sink) *Dispatcher {
	return &Dispatcher{sink: sink, state: Before}
}

// Feed classifies row and routes it per the spec's three transitions:
//  1. non-null `component` column -> close current, open new, row becomes
//     the new component's top-level row.
//  2. no `component` column while InComponent -> append to current body.
//  3. no `component` column while Before -> default to the "debug" component.
//
// A `component` column present but NULL is treated as "no transition, stay
// in the current component" per the resolved Open Question.
func (d *Dispatcher) Feed(row sqltypes.DbRow) error {
	return d.feed(row, 0)
}

func (d *Dispatcher) feed(row sqltypes.DbRow, depth int) error {
	if row.Has(ColumnName) && !row.IsNull(ColumnName) {
		name := row.Get(ColumnName).String()
		if d.state == InComponent {
			if err := d.sink.CloseComponent(); err != nil {
				return err
			}
		}
		if IsSideEffect(name) {
			d.state = Before
			d.current = ""
			return d.dispatchSideEffect(name, row, depth)
		}
		d.state = InComponent
		d.current = name
		return d.sink.OpenComponent(name, row)
	}

	switch d.state {
	case InComponent:
		return d.sink.AppendRow(row)
	default:
		// stateless prelude, no open component: default to the built-in
		// debug component.
		if err := d.sink.OpenComponent("debug", row); err != nil {
			return err
		}
		d.state = InComponent
		d.current = "debug"
		return nil
	}
}

func (d *Dispatcher) dispatchSideEffect(name string, row sqltypes.DbRow, depth int) error {
	if name == "dynamic" {
		return d.feedDynamic(row, depth)
	}
	return d.sink.SideEffect(name, row)
}

// feedDynamic parses the `properties` column as a JSON array of rows and
// feeds each one back into Feed, bounded by maxDynamicDepth to guard against
// pathological self-referential JSON.
func (d *Dispatcher) feedDynamic(row sqltypes.DbRow, depth int) error {
	if depth >= maxDynamicDepth {
		return fmt.Errorf("dynamic component nesting exceeds %d", maxDynamicDepth)
	}
	raw := row.Get("properties")
	if raw.IsNull() {
		return nil
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(raw.String()), &items); err != nil {
		return fmt.Errorf("dynamic: invalid properties JSON: %w", err)
	}
	for _, item := range items {
		synthetic := sqltypes.NewRow()
		for k, v := range item {
			synthetic.Set(k, toDbValue(v))
		}
		if err := d.feed(synthetic, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func toDbValue(v any) sqltypes.DbValue {
	switch t := v.(type) {
	case nil:
		return sqltypes.Null()
	case bool:
		return sqltypes.FromBool(t)
	case float64:
		if t == float64(int64(t)) {
			return sqltypes.FromInt64(int64(t))
		}
		return sqltypes.FromFloat64(t)
	case string:
		return sqltypes.FromText(t)
	default:
		b, _ := json.Marshal(t)
		return sqltypes.FromJSON(string(b))
	}
}

// Close finalizes any still-open component at end of statement loop or
// end of file.
func (d *Dispatcher) Close() error {
	if d.state == InComponent {
		d.state = Before
		return d.sink.CloseComponent()
	}
	return nil
}
