package expr

import (
	"strconv"
	"strings"
)

const (
	// SQLTrue and SQLFalse are the canonical boolean literals of the store
	// query dialect.
	SQLTrue  = "1"
	SQLFalse = "0"

	likeEscape = `\`
)

// QuoteString renders s as a single-quoted SQL string literal.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// EscapeLike escapes LIKE wildcards so s matches literally with
// `escape '\'`. The result is not quoted.
func EscapeLike(s string) string {
	r := strings.NewReplacer(likeEscape, likeEscape+likeEscape, "%", likeEscape+"%", "_", likeEscape+"_")
	return r.Replace(s)
}

// escapeLikeSQL is EscapeLike applied inside SQL to a non literal operand.
func escapeLikeSQL(q string) string {
	q = "replace(" + q + ", '\\', '\\\\')"
	q = "replace(" + q + ", '%', '\\%')"
	return "replace(" + q + ", '_', '\\_')"
}

// Coalesce wraps q so NULL becomes the given default.
func Coalesce(q string, def any) string {
	var ds string
	switch v := def.(type) {
	case string:
		ds = QuoteString(v)
	case int:
		ds = strconv.Itoa(v)
	case int64:
		ds = strconv.FormatInt(v, 10)
	case bool:
		ds = SQLFalse
		if v {
			ds = SQLTrue
		}
	default:
		panic("expr: unsupported coalesce default")
	}
	return "coalesce(" + q + ", " + ds + ")"
}

// Unparenthesize strips one pair of parentheses enclosing the whole of q.
func Unparenthesize(q string) string {
	q = strings.TrimSpace(q)
	if len(q) < 2 || q[0] != '(' || q[len(q)-1] != ')' {
		return q
	}
	depth := 0
	inQuote := false
	for i := 0; i < len(q); i++ {
		switch c := q[i]; {
		case c == '\'':
			inQuote = !inQuote
		case inQuote:
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 && i != len(q)-1 {
				// first paren closes before the end: (a) and (b)
				return q
			}
		}
	}
	return strings.TrimSpace(q[1 : len(q)-1])
}

// Parenthesize wraps q unless it is already enclosed.
func Parenthesize(q string) string {
	if Unparenthesize(q) != strings.TrimSpace(q) {
		return q
	}
	return "(" + q + ")"
}

// lowerASCII folds only ASCII letters, matching the store's LOWER().
func lowerASCII(s string) string {
	hasUpper := false
	for i := 0; i < len(s); i++ {
		if c := s[i]; 'A' <= c && c <= 'Z' {
			hasUpper = true
			break
		}
	}
	if !hasUpper {
		return s
	}
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
