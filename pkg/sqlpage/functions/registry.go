// Package functions implements the sqlpage.* built-in function runtime:
// host-evaluated functions for things the database cannot do (file I/O,
// password hashing, header/cookie access, sub-process execution, URL
// encoding, environment access).
package functions

import (
	"context"
	"fmt"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/reqctx"
)

// Func is one sqlpage.<name> implementation. Args are already resolved to
// strings by the evaluator (nested function calls and named placeholders
// have been evaluated depth-first before Func is invoked).
type Func func(ctx context.Context, rc *reqctx.RequestContext, args []string) (string, error)

// Registry is the set of known sqlpage.* functions, checked at analysis time
// so unknown names fail before a single statement is ever executed.
type Registry struct {
	funcs map[string]Func
}

var defaultRegistry = NewRegistry()

// Known reports whether name is a recognized sqlpage.* function, consulted
// by the analyzer while rewriting statements.
func Known(name string) bool {
	return defaultRegistry.Has(name)
}

// Default returns the process-wide registry, pre-populated with the builtin
// set and configurable via Configure.
func Default() *Registry { return defaultRegistry }

func NewRegistry() *Registry {
	r := &Registry{funcs: map[string]Func{}}
	registerBuiltins(r)
	return r
}

func (r *Registry) Register(name string, fn Func) {
	r.funcs[name] = fn
}

func (r *Registry) Has(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

func (r *Registry) Call(ctx context.Context, name string, rc *reqctx.RequestContext, args []string) (string, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return "", fmt.Errorf("unknown function sqlpage.%s", name)
	}
	return fn(ctx, rc, args)
}
