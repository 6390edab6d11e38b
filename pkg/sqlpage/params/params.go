// Package params resolves a Statement's placeholders against a RequestContext
// into the parameter vector passed to the database driver.
package params

import (
	"context"
	"fmt"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/analyzer"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/functions"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/reqctx"
)

// ErrorKind classifies an evaluation failure.
type ErrorKind string

const (
	ErrMissing  ErrorKind = "missing"
	ErrFunction ErrorKind = "function"
)

type Error struct {
	Kind  ErrorKind
	Name  string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("param %s(%s): %v", e.Kind, e.Name, e.Cause)
	}
	return fmt.Sprintf("param %s(%s)", e.Kind, e.Name)
}

func (e *Error) Unwrap() error { return e.Cause }

// Evaluate walks stmt.Placeholders in ordinal order and returns the
// positional parameter vector. Functions fire exactly once per call, in
// left-to-right, depth-first order (the same order the analyzer assigned
// ordinals in), matching the spec's resolved Open Question.
func Evaluate(ctx context.Context, stmt *analyzer.Statement, rc *reqctx.RequestContext) ([]any, error) {
	out := make([]any, 0, len(stmt.Placeholders))
	for _, ph := range stmt.Placeholders {
		v, err := evalPlaceholder(ctx, ph, rc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func evalPlaceholder(ctx context.Context, ph analyzer.PlaceholderRef, rc *reqctx.RequestContext) (string, error) {
	switch ph.Kind {
	case analyzer.SourceNamed:
		v, ok := rc.Param(ph.Name)
		if !ok {
			return "", nil
		}
		return v, nil
	case analyzer.SourceFunction:
		return evalFunction(ctx, ph.Function, rc)
	default:
		return "", &Error{Kind: ErrMissing, Name: "?"}
	}
}

func evalFunction(ctx context.Context, fc *analyzer.FunctionCall, rc *reqctx.RequestContext) (string, error) {
	args := make([]string, 0, len(fc.Args))
	for _, a := range fc.Args {
		v, err := evalArg(ctx, a, rc)
		if err != nil {
			return "", err
		}
		args = append(args, v)
	}
	v, err := functions.Default().Call(ctx, fc.Name, rc, args)
	if err != nil {
		return "", &Error{Kind: ErrFunction, Name: fc.Name, Cause: err}
	}
	return v, nil
}

func evalArg(ctx context.Context, a analyzer.Arg, rc *reqctx.RequestContext) (string, error) {
	switch {
	case a.Func != nil:
		return evalFunction(ctx, a.Func, rc)
	case a.Named != "":
		v, _ := rc.Param(a.Named)
		return v, nil
	default:
		return a.Literal, nil
	}
}
