// Package mavenrange translates Maven version ranges into the comparator
// syntax used throughout the catalog (">=1.0 <2.0 || 3.0").
//
// Bounds are opaque strings; the package never interprets a version.
package mavenrange

import (
	"errors"
	"fmt"
	"strings"
)

// maxSteps bounds the tokenizer loop.
const maxSteps = 512

// ErrUnparseableRange is wrapped by every range parse error.
var ErrUnparseableRange = errors.New("unparseable maven range")

// UnparseableRangeError reports the rejected input and why.
type UnparseableRangeError struct {
	Input  string
	Reason string
}

func (e *UnparseableRangeError) Error() string {
	return fmt.Sprintf("unparseable maven range %q: %s", e.Input, e.Reason)
}

func (e *UnparseableRangeError) Unwrap() error { return ErrUnparseableRange }

// Set is one interval. A nil bound is unbounded on that side.
type Set struct {
	Start          *string `json:"start,omitempty"`
	End            *string `json:"end,omitempty"`
	StartInclusive bool    `json:"start_inclusive"`
	EndInclusive   bool    `json:"end_inclusive"`
}

// Range is an OR of sets, in input order.
type Range []Set

// Parse parses a Maven range such as "[1.0,2.0)", "(,1.0],[1.2,)" or "1.5".
func Parse(s string) (Range, error) {
	tokens, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	r := make(Range, 0, len(tokens))
	for _, tok := range tokens {
		set, err := compileToken(tok)
		if err != nil {
			return nil, &UnparseableRangeError{Input: s, Reason: err.Error()}
		}
		r = append(r, set)
	}
	return r, nil
}

// ToEquivalent parses a Maven range and returns its equivalent expression.
func ToEquivalent(s string) (string, error) {
	r, err := Parse(s)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

// tokenize splits s on commas that sit outside bracket pairs.
func tokenize(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, &UnparseableRangeError{Input: s, Reason: "empty range"}
	}

	var tokens []string
	pos := skipSpaces(s, 0)
	for step := 0; pos < len(s); step++ {
		if step >= maxSteps {
			return nil, &UnparseableRangeError{Input: s, Reason: fmt.Sprintf("no progress after %d steps", maxSteps)}
		}
		start := pos

		var end int
		if c := s[pos]; c == '[' || c == '(' {
			closing := strings.IndexAny(s[pos+1:], "])")
			if closing < 0 {
				end = len(s)
			} else {
				end = pos + 1 + closing + 1
			}
		} else {
			comma := strings.IndexByte(s[pos:], ',')
			if comma < 0 {
				end = len(s)
			} else {
				end = pos + comma
			}
		}

		tok := strings.TrimSpace(s[start:end])
		if tok == "" {
			return nil, &UnparseableRangeError{Input: s, Reason: fmt.Sprintf("empty token at offset %d", start)}
		}
		tokens = append(tokens, tok)

		pos = skipSpaces(s, end)
		if pos < len(s) {
			if s[pos] != ',' {
				return nil, &UnparseableRangeError{Input: s, Reason: fmt.Sprintf("expected ',' at offset %d", pos)}
			}
			pos = skipSpaces(s, pos+1)
			if pos == len(s) {
				return nil, &UnparseableRangeError{Input: s, Reason: "trailing ','"}
			}
		}
		if pos <= start {
			return nil, &UnparseableRangeError{Input: s, Reason: fmt.Sprintf("stalled at offset %d", pos)}
		}
	}
	return tokens, nil
}

func skipSpaces(s string, pos int) int {
	for pos < len(s) && s[pos] == ' ' {
		pos++
	}
	return pos
}

func compileToken(tok string) (Set, error) {
	open := tok[0]
	if open != '[' && open != '(' {
		if strings.ContainsAny(tok, "[]()") {
			return Set{}, fmt.Errorf("stray bracket in %q", tok)
		}
		v := tok
		return Set{Start: &v, End: &v, StartInclusive: true, EndInclusive: true}, nil
	}

	body := tok[1:]
	// An unterminated interval runs to the end of input with an exclusive end.
	endInclusive := false
	if n := len(body); n > 0 && (body[n-1] == ']' || body[n-1] == ')') {
		endInclusive = body[n-1] == ']'
		body = body[:n-1]
	}
	set := Set{StartInclusive: open == '[', EndInclusive: endInclusive}

	lo, hi, hasComma := strings.Cut(body, ",")
	lo, hi = strings.TrimSpace(lo), strings.TrimSpace(hi)
	if !hasComma {
		if lo == "" {
			return Set{}, fmt.Errorf("empty interval %q", tok)
		}
		set.Start, set.End = &lo, &lo
		return set, nil
	}
	if strings.Contains(hi, ",") {
		return Set{}, fmt.Errorf("too many bounds in %q", tok)
	}
	if lo != "" {
		set.Start = &lo
	}
	if hi != "" {
		set.End = &hi
	}
	return set, nil
}

// String renders the set as comparator expressions. A closed single point
// renders as the bare version; an interval open on both sides renders as "*".
func (s Set) String() string {
	if s.Start != nil && s.End != nil && *s.Start == *s.End && s.StartInclusive && s.EndInclusive {
		return *s.Start
	}
	var parts []string
	if s.Start != nil {
		if s.StartInclusive {
			parts = append(parts, ">="+*s.Start)
		} else {
			parts = append(parts, ">"+*s.Start)
		}
	}
	if s.End != nil {
		if s.EndInclusive {
			parts = append(parts, "<="+*s.End)
		} else {
			parts = append(parts, "<"+*s.End)
		}
	}
	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// String joins the sets with "||".
func (r Range) String() string {
	parts := make([]string, len(r))
	for i, s := range r {
		parts[i] = s.String()
	}
	return strings.Join(parts, " || ")
}
