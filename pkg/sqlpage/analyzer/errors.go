package analyzer

import "fmt"

// ErrorKind classifies analysis failures, reported with byte offset
// converted to line/column so authors can locate the offending SQL.
type ErrorKind string

const (
	ErrParse            ErrorKind = "parse"
	ErrUnknownFunction  ErrorKind = "unknown_function"
	ErrRecursiveFunction ErrorKind = "recursive_function"
)

// AnalysisError is attached to the offending statement; statements that
// analyze independently (those preceding the error) remain runnable.
type AnalysisError struct {
	Kind    ErrorKind
	Line    int
	Column  int
	Message string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Line, e.Column, e.Message)
}

func lineCol(src string, offset int) (line, col int) {
	line = 1
	col = 1
	for i := 0; i < offset && i < len(src); i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
