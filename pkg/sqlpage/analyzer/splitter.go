package analyzer

import "strings"

// splitStatements splits src into top-level statements on semicolons,
// tracking single/double quote, backtick, and Postgres dollar-quote state so
// semicolons inside string literals never split a statement. Line comments
// (--) and block comments (/* */) are tracked too so a semicolon inside a
// comment is ignored. Returns the statement texts and the byte offset each
// one starts at (for error line/column reporting).
func splitStatements(src string) (texts []string, offsets []int) {
	var (
		start      = 0
		inSingle   = false
		inDouble   = false
		inBacktick = false
		inLineCmt  = false
		inBlockCmt = false
		dollarTag  = ""
	)

	i := 0
	n := len(src)
	for i < n {
		c := src[i]

		if inLineCmt {
			if c == '\n' {
				inLineCmt = false
			}
			i++
			continue
		}
		if inBlockCmt {
			if c == '*' && i+1 < n && src[i+1] == '/' {
				inBlockCmt = false
				i += 2
				continue
			}
			i++
			continue
		}
		if dollarTag != "" {
			if strings.HasPrefix(src[i:], dollarTag) {
				i += len(dollarTag)
				dollarTag = ""
				continue
			}
			i++
			continue
		}
		if inSingle {
			if c == '\'' {
				if i+1 < n && src[i+1] == '\'' {
					i += 2
					continue
				}
				inSingle = false
			}
			i++
			continue
		}
		if inDouble {
			if c == '"' {
				inDouble = false
			}
			i++
			continue
		}
		if inBacktick {
			if c == '`' {
				inBacktick = false
			}
			i++
			continue
		}

		switch {
		case c == '-' && i+1 < n && src[i+1] == '-':
			inLineCmt = true
			i += 2
		case c == '/' && i+1 < n && src[i+1] == '*':
			inBlockCmt = true
			i += 2
		case c == '\'':
			inSingle = true
			i++
		case c == '"':
			inDouble = true
			i++
		case c == '`':
			inBacktick = true
			i++
		case c == '$':
			if tag, ok := matchDollarQuote(src, i); ok {
				dollarTag = tag
				i += len(tag)
				continue
			}
			i++
		case c == ';':
			stmt := src[start:i]
			if strings.TrimSpace(stmt) != "" {
				texts = append(texts, stmt)
				offsets = append(offsets, start)
			}
			start = i + 1
			i++
		default:
			i++
		}
	}

	if strings.TrimSpace(src[start:]) != "" {
		texts = append(texts, src[start:])
		offsets = append(offsets, start)
	}
	return texts, offsets
}

// matchDollarQuote recognizes a Postgres dollar-quote opening tag such as
// $$ or $tag$ starting at position i. A bare placeholder like $name is not a
// dollar-quote: a dollar-quote tag is either empty ($$) or an identifier
// immediately followed by another $.
func matchDollarQuote(src string, i int) (tag string, ok bool) {
	n := len(src)
	j := i + 1
	for j < n && isIdentByte(src[j]) {
		j++
	}
	if j < n && src[j] == '$' {
		return src[i : j+1], true
	}
	return "", false
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
