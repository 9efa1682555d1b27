package query

import "strings"

// Dialect names the pattern tokens of the target store.
type Dialect struct {
	Multi  rune // matches any run of characters
	Single rune // matches exactly one character
	Escape rune // makes the next character literal
}

// SQLLike is the dialect of SQL LIKE with an explicit ESCAPE '\'.
var SQLLike = Dialect{Multi: '%', Single: '_', Escape: '\\'}

// Literal escapes every store metacharacter in s so it matches only itself.
func (d Dialect) Literal(s string) string {
	var b strings.Builder
	for _, r := range s {
		d.writeLiteral(&b, r)
	}
	return b.String()
}

func (d Dialect) writeLiteral(b *strings.Builder, r rune) {
	if r == d.Escape || r == d.Multi || r == d.Single {
		b.WriteRune(d.Escape)
	}
	b.WriteRune(r)
}

// Wildcard translates a raw query word into a store pattern.
//
// Store metacharacters and the store escape are escaped before anything else,
// so a literal '%', '_' or '\' in the query never becomes a wildcard. Only then
// are the query's unescaped '*' and '?' mapped to Multi and Single, and its
// escaped '\*' and '\?' kept as the literal characters.
func (d Dialect) Wildcard(raw string) string {
	var b strings.Builder
	rs := []rune(raw)
	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '\\' && i+1 < len(rs):
			i++
			d.writeLiteral(&b, rs[i])
		case r == '*':
			b.WriteRune(d.Multi)
		case r == '?':
			b.WriteRune(d.Single)
		default:
			d.writeLiteral(&b, r)
		}
	}
	return b.String()
}

// Contains wraps an already translated pattern as a substring match.
func (d Dialect) Contains(pattern string) string {
	m := string(d.Multi)
	return m + pattern + m
}
