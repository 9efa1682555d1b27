package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokPhrase
	tokColon
	tokLParen
	tokRParen
	tokLBracket // [
	tokRBracket // ]
	tokLBrace   // {
	tokRBrace   // }
	tokAnd
	tokOr
	tokNot
	tokTo
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of query"
	case tokWord:
		return "term"
	case tokPhrase:
		return "phrase"
	case tokColon:
		return "':'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokAnd:
		return "AND"
	case tokOr:
		return "OR"
	case tokNot:
		return "NOT"
	case tokTo:
		return "TO"
	}
	return "?"
}

// token keeps its raw text: words retain their backslash escapes so the
// wildcard translation can tell `\*` from `*`. Phrases are already unescaped.
type token struct {
	kind    tokenKind
	text    string
	pos     int
	escaped bool
}

const specials = `():"[]{}`

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		r, w := utf8.DecodeRuneInString(input[i:])
		if unicode.IsSpace(r) {
			i += w
			continue
		}
		switch r {
		case '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
			continue
		case ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
			continue
		case '[':
			toks = append(toks, token{kind: tokLBracket, text: "[", pos: i})
			i++
			continue
		case ']':
			toks = append(toks, token{kind: tokRBracket, text: "]", pos: i})
			i++
			continue
		case '{':
			toks = append(toks, token{kind: tokLBrace, text: "{", pos: i})
			i++
			continue
		case '}':
			toks = append(toks, token{kind: tokRBrace, text: "}", pos: i})
			i++
			continue
		case ':':
			toks = append(toks, token{kind: tokColon, text: ":", pos: i})
			i++
			continue
		case '"':
			text, next, err := lexPhrase(input, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokPhrase, text: text, pos: i})
			i = next
			continue
		}

		start := i
		escaped := false
		for i < len(input) {
			r, w := utf8.DecodeRuneInString(input[i:])
			if r == '\\' {
				if i+1 >= len(input) {
					return nil, syntaxErr(i, "dangling escape character")
				}
				_, ew := utf8.DecodeRuneInString(input[i+1:])
				i += 1 + ew
				escaped = true
				continue
			}
			if unicode.IsSpace(r) || strings.ContainsRune(specials, r) {
				break
			}
			i += w
		}
		text := input[start:i]
		toks = append(toks, token{kind: keyword(text, escaped), text: text, pos: start, escaped: escaped})
	}
	toks = append(toks, token{kind: tokEOF, pos: len(input)})
	return toks, nil
}

func keyword(text string, escaped bool) tokenKind {
	if escaped {
		return tokWord
	}
	switch text {
	case "AND", "&&":
		return tokAnd
	case "OR", "||":
		return tokOr
	case "NOT", "!":
		return tokNot
	case "TO":
		return tokTo
	}
	return tokWord
}

// lexPhrase reads a quoted phrase starting at input[start] == '"' and returns
// its unescaped content and the offset after the closing quote.
func lexPhrase(input string, start int) (string, int, error) {
	var b strings.Builder
	i := start + 1
	for i < len(input) {
		c := input[i]
		switch c {
		case '\\':
			if i+1 >= len(input) {
				return "", 0, syntaxErr(i, "dangling escape character")
			}
			_, w := utf8.DecodeRuneInString(input[i+1:])
			b.WriteString(input[i+1 : i+1+w])
			i += 1 + w
		case '"':
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, syntaxErr(start, "unterminated phrase")
}

// unescape drops backslash escapes from a raw word.
func unescape(raw string) string {
	if !strings.ContainsRune(raw, '\\') {
		return raw
	}
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\\' && i+1 < len(raw) {
			i++
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}
