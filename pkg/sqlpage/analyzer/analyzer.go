// Package analyzer splits a .sql file into executable statements and
// extracts the parameter placeholders and sqlpage.* function calls embedded
// in them, rewriting each to a dialect-correct positional marker. Values are
// always passed by parameter binding — this package never string-concatenates
// a resolved value into SQL text.
package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/functions"
	"github.com/bitechdev/ResolveSpec/pkg/sqlpage/sqltypes"
)

// SourceKind is the origin of a placeholder's value.
type SourceKind int

const (
	SourceNamed SourceKind = iota // $name / :name — variable-or-request-parameter
	SourceFunction
)

// Arg is one argument to a sqlpage.* function call: either a literal SQL
// expression passed through unevaluated, a named placeholder, or a nested
// function call. Depth is finite because RecursiveFunction analysis rejects
// self-referential definitions (there are none — sqlpage functions are
// built-ins, not user-definable, so recursion can only come from a pathological
// analyzer bug, guarded by a depth limit in parseFunctionCall).
type Arg struct {
	Literal string
	Named   string
	Func    *FunctionCall
}

// FunctionCall is a recognized sqlpage.<name>(args...) reference.
type FunctionCall struct {
	Name string
	Args []Arg
}

// PlaceholderRef is one top-level placeholder recognized in a statement's SQL
// text, rewritten to a positional marker at Ordinal.
type PlaceholderRef struct {
	Ordinal  int
	Kind     SourceKind
	Name     string // for SourceNamed
	Function *FunctionCall // for SourceFunction
}

// StatementKind distinguishes the three Statement variants.
type StatementKind int

const (
	KindQuery StatementKind = iota
	KindSetVariable
	KindStaticRow
)

// Statement is one analyzed SQL statement.
type Statement struct {
	Kind         StatementKind
	RawSQL       string
	SQL          string // rewritten, dialect-correct positional markers
	Placeholders []PlaceholderRef
	Dialect      sqltypes.Dialect
	Line         int

	// SetVariable only.
	VariableName string

	// StaticRow only: every projected column was a SQL literal.
	StaticColumns map[string]sqltypes.DbValue
	StaticOrder   []string
}

// AnalyzedFile is the immutable, cacheable result of analyzing one .sql file.
type AnalyzedFile struct {
	Path       string
	SourceHash string
	Statements []Statement
}

var (
	setRe      = regexp.MustCompile(`(?is)^\s*SET\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*(.*)$`)
	literalRe  = regexp.MustCompile(`(?i)^\s*(?:'(?:[^']|'')*'|-?\d+(?:\.\d+)?|NULL|TRUE|FALSE)\s+AS\s+([A-Za-z_][A-Za-z0-9_]*)\s*$`)
	selectListRe = regexp.MustCompile(`(?is)^\s*SELECT\s+(.*?)\s+(?:FROM\s|WHERE\s|GROUP\s|ORDER\s|LIMIT\s|$)`)
)

// AnalyzeSource analyzes already-loaded SQL text. Analyze(path, dialect)
// wraps this with file loading and the (path, mtime) cache.
func AnalyzeSource(path string, src string, dialect sqltypes.Dialect) (*AnalyzedFile, error) {
	sum := sha256.Sum256([]byte(src))
	af := &AnalyzedFile{Path: path, SourceHash: hex.EncodeToString(sum[:])}

	texts, offsets := splitStatements(src)
	for i, text := range texts {
		line, _ := lineCol(src, offsets[i])
		stmt, err := analyzeStatement(text, dialect, line)
		if err != nil {
			return af, err
		}
		af.Statements = append(af.Statements, *stmt)
	}
	return af, nil
}

func analyzeStatement(text string, dialect sqltypes.Dialect, line int) (*Statement, error) {
	trimmed := strings.TrimSpace(text)

	if m := setRe.FindStringSubmatch(trimmed); m != nil {
		inner := strings.TrimSpace(m[2])
		inner = strings.TrimPrefix(inner, "(")
		inner = strings.TrimSuffix(inner, ")")
		innerStmt, err := analyzeStatement(inner, dialect, line)
		if err != nil {
			return nil, err
		}
		innerStmt.Kind = KindSetVariable
		innerStmt.VariableName = m[1]
		innerStmt.RawSQL = text
		return innerStmt, nil
	}

	if cols, order, ok := tryStaticRow(trimmed); ok {
		return &Statement{
			Kind:          KindStaticRow,
			RawSQL:        text,
			SQL:           text,
			Dialect:       dialect,
			Line:          line,
			StaticColumns: cols,
			StaticOrder:   order,
		}, nil
	}

	rewritten, placeholders, err := rewrite(trimmed, dialect)
	if err != nil {
		if ae, ok := err.(*AnalysisError); ok {
			ae.Line = line
			return nil, ae
		}
		return nil, err
	}

	return &Statement{
		Kind:         KindQuery,
		RawSQL:       text,
		SQL:          rewritten,
		Placeholders: placeholders,
		Dialect:      dialect,
		Line:         line,
	}, nil
}

// tryStaticRow recognizes `SELECT <lit> AS col, <lit> AS col, ...` with no
// FROM clause — every projection a literal, evaluated without a DB round trip.
func tryStaticRow(stmt string) (map[string]sqltypes.DbValue, []string, bool) {
	if !strings.HasPrefix(strings.ToUpper(stmt), "SELECT") {
		return nil, nil, false
	}
	if strings.Contains(strings.ToUpper(stmt), " FROM ") {
		return nil, nil, false
	}
	body := stmt
	if idx := strings.Index(strings.ToUpper(stmt), "SELECT"); idx >= 0 {
		body = stmt[idx+len("SELECT"):]
	}
	body = strings.TrimSuffix(strings.TrimSpace(body), ";")

	parts := splitTopLevelCommas(body)
	cols := make(map[string]sqltypes.DbValue, len(parts))
	var order []string
	for _, p := range parts {
		m := literalRe.FindStringSubmatch(p + " ")
		_ = m
		name, val, ok := parseLiteralProjection(p)
		if !ok {
			return nil, nil, false
		}
		if _, exists := cols[name]; !exists {
			order = append(order, name)
		}
		cols[name] = val
	}
	if len(cols) == 0 {
		return nil, nil, false
	}
	return cols, order, true
}

var litAsRe = regexp.MustCompile(`(?is)^\s*(.+?)\s+AS\s+([A-Za-z_][A-Za-z0-9_]*)\s*$`)

func parseLiteralProjection(p string) (name string, val sqltypes.DbValue, ok bool) {
	m := litAsRe.FindStringSubmatch(p)
	if m == nil {
		return "", sqltypes.DbValue{}, false
	}
	lit := strings.TrimSpace(m[1])
	name = m[2]

	switch {
	case strings.HasPrefix(lit, "'") && strings.HasSuffix(lit, "'") && len(lit) >= 2 &&
		!strings.Contains(strings.ReplaceAll(lit[1:len(lit)-1], "''", ""), "'"):
		unescaped := strings.ReplaceAll(lit[1:len(lit)-1], "''", "'")
		return name, sqltypes.FromText(unescaped), true
	case strings.EqualFold(lit, "NULL"):
		return name, sqltypes.Null(), true
	case strings.EqualFold(lit, "TRUE"):
		return name, sqltypes.FromBool(true), true
	case strings.EqualFold(lit, "FALSE"):
		return name, sqltypes.FromBool(false), true
	default:
		var i int64
		if _, err := fmt.Sscanf(lit, "%d", &i); err == nil && fmt.Sprintf("%d", i) == lit {
			return name, sqltypes.FromInt64(i), true
		}
		if f, err := strconv.ParseFloat(lit, 64); err == nil && strings.Trim(lit, "-0123456789.") == "" {
			return name, sqltypes.FromFloat64(f), true
		}
		return "", sqltypes.DbValue{}, false
	}
}

func splitTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	inSingle := false
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'' && !inSingle:
			inSingle = true
		case c == '\'' && inSingle:
			if i+1 < len(s) && s[i+1] == '\'' {
				i++
				continue
			}
			inSingle = false
		case inSingle:
			// inside string, ignore
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}

// rewrite scans stmt for $name/:name placeholders and sqlpage.*(...) calls
// outside string/quote literals, replacing each with a dialect-correct
// positional marker and recording it at the next ordinal.
func rewrite(stmt string, dialect sqltypes.Dialect) (string, []PlaceholderRef, error) {
	var (
		out          strings.Builder
		placeholders []PlaceholderRef
		inSingle     bool
		i            int
		n            = len(stmt)
	)

	nextMarker := func(ordinal int) string {
		switch dialect {
		case sqltypes.DialectPostgres:
			return fmt.Sprintf("$%d", ordinal)
		case sqltypes.DialectMSSQL:
			return fmt.Sprintf("@p%d", ordinal)
		default: // mysql, sqlite
			return "?"
		}
	}

	for i < n {
		c := stmt[i]
		if inSingle {
			out.WriteByte(c)
			if c == '\'' {
				if i+1 < n && stmt[i+1] == '\'' {
					out.WriteByte(stmt[i+1])
					i += 2
					continue
				}
				inSingle = false
			}
			i++
			continue
		}
		if c == '\'' {
			inSingle = true
			out.WriteByte(c)
			i++
			continue
		}

		if isFuncStart(stmt, i) {
			name, args, consumed, err := parseFunctionCall(stmt, i, 0)
			if err != nil {
				return "", nil, err
			}
			if !functions.Known(name) {
				return "", nil, &AnalysisError{Kind: ErrUnknownFunction, Column: i, Message: name}
			}
			fnArgs, err := toFunctionArgs(args, 1)
			if err != nil {
				return "", nil, err
			}
			ordinal := len(placeholders) + 1
			placeholders = append(placeholders, PlaceholderRef{
				Ordinal:  ordinal,
				Kind:     SourceFunction,
				Function: &FunctionCall{Name: name, Args: fnArgs},
			})
			out.WriteString(nextMarker(ordinal))
			i += consumed
			continue
		}

		if (c == '$' || c == ':') && i+1 < n && isIdentStart(stmt[i+1]) {
			j := i + 1
			for j < n && isIdentByte(stmt[j]) {
				j++
			}
			name := stmt[i+1 : j]
			ordinal := len(placeholders) + 1
			placeholders = append(placeholders, PlaceholderRef{
				Ordinal: ordinal,
				Kind:    SourceNamed,
				Name:    name,
			})
			out.WriteString(nextMarker(ordinal))
			i = j
			continue
		}

		out.WriteByte(c)
		i++
	}

	return out.String(), placeholders, nil
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isFuncStart(s string, i int) bool {
	const prefix = "sqlpage."
	if !strings.HasPrefix(s[i:], prefix) {
		return false
	}
	j := i + len(prefix)
	k := j
	for k < len(s) && isIdentByte(s[k]) {
		k++
	}
	return k > j && k < len(s) && s[k] == '('
}

// rawArg is an unparsed argument slice of a function call, kept as text so
// nested calls can be re-parsed recursively.
type rawArg struct {
	text string
}

const maxFunctionDepth = 16

// parseFunctionCall parses `sqlpage.<name>(arg, arg, ...)` starting at i,
// returning the name, raw argument texts, and bytes consumed.
func parseFunctionCall(s string, i int, depth int) (name string, args []rawArg, consumed int, err error) {
	if depth > maxFunctionDepth {
		return "", nil, 0, &AnalysisError{Kind: ErrRecursiveFunction, Column: i, Message: "function nesting too deep"}
	}
	const prefix = "sqlpage."
	j := i + len(prefix)
	k := j
	for k < len(s) && isIdentByte(s[k]) {
		k++
	}
	name = s[j:k]
	// s[k] == '('
	depthParen := 0
	argStart := k + 1
	inSingle := false
	m := k
	for m < len(s) {
		c := s[m]
		if inSingle {
			if c == '\'' {
				if m+1 < len(s) && s[m+1] == '\'' {
					m += 2
					continue
				}
				inSingle = false
			}
			m++
			continue
		}
		switch c {
		case '\'':
			inSingle = true
		case '(':
			depthParen++
		case ')':
			depthParen--
			if depthParen == 0 {
				last := strings.TrimSpace(s[argStart:m])
				if last != "" {
					args = append(args, rawArg{text: last})
				}
				return name, args, m + 1 - i, nil
			}
		case ',':
			if depthParen == 1 {
				args = append(args, rawArg{text: strings.TrimSpace(s[argStart:m])})
				argStart = m + 1
			}
		}
		m++
	}
	return "", nil, 0, &AnalysisError{Kind: ErrParse, Column: i, Message: "unterminated function call: " + name}
}

func toFunctionArgs(raw []rawArg, depth int) ([]Arg, error) {
	args := make([]Arg, 0, len(raw))
	for _, r := range raw {
		text := r.text
		switch {
		case isFuncStart(text, 0):
			name, sub, _, err := parseFunctionCall(text, 0, depth)
			if err != nil {
				return nil, err
			}
			if !functions.Known(name) {
				return nil, &AnalysisError{Kind: ErrUnknownFunction, Message: name}
			}
			nested, err := toFunctionArgs(sub, depth+1)
			if err != nil {
				return nil, err
			}
			args = append(args, Arg{Func: &FunctionCall{Name: name, Args: nested}})
		case len(text) > 1 && (text[0] == '$' || text[0] == ':') && isIdentStart(text[1]):
			args = append(args, Arg{Named: text[1:]})
		case len(text) >= 2 && text[0] == '\'' && text[len(text)-1] == '\'':
			args = append(args, Arg{Literal: strings.ReplaceAll(text[1:len(text)-1], "''", "'")})
		default:
			args = append(args, Arg{Literal: text})
		}
	}
	return args, nil
}
