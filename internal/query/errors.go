package query

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCompile is wrapped by every query compile error.
var ErrCompile = errors.New("query compile error")

// CompileError describes a rejected query. Field is empty for syntax errors.
type CompileError struct {
	Field   string
	Allowed []string
	Pos     int
	Msg     string
}

func (e *CompileError) Error() string {
	var b strings.Builder
	if e.Field != "" {
		fmt.Fprintf(&b, "field %q: %s", e.Field, e.Msg)
	} else {
		fmt.Fprintf(&b, "at offset %d: %s", e.Pos, e.Msg)
	}
	if len(e.Allowed) > 0 {
		fmt.Fprintf(&b, " (allowed: %s)", strings.Join(e.Allowed, ", "))
	}
	return b.String()
}

func (e *CompileError) Unwrap() error { return ErrCompile }

func syntaxErr(pos int, format string, args ...any) *CompileError {
	return &CompileError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
