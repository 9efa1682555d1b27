// Package query parses boolean search queries and compiles them into
// validated predicate trees.
//
// Queries look like
//
//	modId:jei* AND NOT loader:FABRIC OR displayName:"Just Enough"
//	releaseDate:[2021-01-01 TO *} gameVersion:(1.16.5 OR 1.16.4)
//
// Only fields named in the compiler's Config may be queried; that allow-list
// is what keeps user input away from arbitrary columns.
package query

import (
	"fmt"
	"sort"
)

// TermInfo is the validated form of one field test, handed to custom builders.
type TermInfo struct {
	Field string
	Spec  FieldSpec
	Kind  ValueKind
	// Pattern is the store pattern for word and phrase terms.
	Pattern string
	// Value is the unescaped literal for word and phrase terms.
	Value string
	Min   Bound
	Max   Bound
}

// Builder replaces default compilation for one field. It must only place
// user values in Pattern, Min or Max, never in Field.
type Builder func(t TermInfo) (Node, error)

// FieldSpec configures one queryable field.
type FieldSpec struct {
	// Column is the physical location the field maps to.
	Column string
	// Range permits [a TO b] syntax.
	Range bool
	// Builder, when set, fully overrides default compilation.
	Builder Builder
	// Normalize rewrites range bounds, e.g. to a sortable date form.
	Normalize func(string) (string, error)
}

// Config parametrizes a Compiler.
type Config struct {
	Fields map[string]FieldSpec
	// ImplicitField receives field-less terms as substring matches. Empty
	// rejects field-less terms.
	ImplicitField string
	// Dialect defaults to SQLLike.
	Dialect Dialect
}

// Compiler compiles queries against a fixed configuration. It holds no
// mutable state and is safe for concurrent use.
type Compiler struct {
	cfg     Config
	allowed []string
}

// NewCompiler validates cfg and returns a compiler.
func NewCompiler(cfg Config) (*Compiler, error) {
	if len(cfg.Fields) == 0 {
		return nil, fmt.Errorf("query: no fields configured")
	}
	if cfg.Dialect == (Dialect{}) {
		cfg.Dialect = SQLLike
	}
	allowed := make([]string, 0, len(cfg.Fields))
	for name, spec := range cfg.Fields {
		if spec.Column == "" && spec.Builder == nil {
			return nil, fmt.Errorf("query: field %q has neither column nor builder", name)
		}
		allowed = append(allowed, name)
	}
	sort.Strings(allowed)
	if cfg.ImplicitField != "" {
		if _, ok := cfg.Fields[cfg.ImplicitField]; !ok {
			return nil, fmt.Errorf("query: implicit field %q is not configured", cfg.ImplicitField)
		}
	}
	return &Compiler{cfg: cfg, allowed: allowed}, nil
}

// Allowed returns the sorted queryable field names.
func (c *Compiler) Allowed() []string {
	return append([]string(nil), c.allowed...)
}

// Compile parses and compiles q.
func (c *Compiler) Compile(q string) (Node, error) {
	e, err := Parse(q)
	if err != nil {
		return Node{}, err
	}
	return c.CompileExpr(e)
}

// CompileExpr compiles an already parsed expression.
func (c *Compiler) CompileExpr(e Expr) (Node, error) {
	return c.compile(e, false)
}

// compile lowers e. When inverted is set the result is the negation of e,
// pushed down to the leaves by De Morgan's laws.
func (c *Compiler) compile(e Expr, inverted bool) (Node, error) {
	switch e := e.(type) {
	case *BinaryExpr:
		left, err := c.compile(e.Left, inverted)
		if err != nil {
			return Node{}, err
		}
		right, err := c.compile(e.Right, inverted)
		if err != nil {
			return Node{}, err
		}
		if (e.Op == OpAnd) != inverted {
			return And(left, right), nil
		}
		return Or(left, right), nil
	case *NotExpr:
		return c.compile(e.X, !inverted)
	case *TermExpr:
		n, err := c.compileTerm(e)
		if err != nil {
			return Node{}, err
		}
		if inverted {
			return Not(n), nil
		}
		return n, nil
	}
	return Node{}, fmt.Errorf("query: unknown expression %T", e)
}

func (c *Compiler) compileTerm(e *TermExpr) (Node, error) {
	d := c.cfg.Dialect
	field := e.Field
	implicit := field == ""
	if implicit {
		if c.cfg.ImplicitField == "" {
			return Node{}, &CompileError{Pos: e.Pos, Msg: "a field is required", Allowed: c.Allowed()}
		}
		field = c.cfg.ImplicitField
	}

	spec, ok := c.cfg.Fields[field]
	if !ok {
		return Node{}, &CompileError{Field: field, Pos: e.Pos, Msg: "unknown field", Allowed: c.Allowed()}
	}

	t := TermInfo{Field: field, Spec: spec, Kind: e.Kind}
	switch e.Kind {
	case ValueWord:
		t.Value = unescape(e.Raw)
		t.Pattern = d.Wildcard(e.Raw)
	case ValuePhrase:
		t.Value = e.Raw
		t.Pattern = d.Literal(e.Raw)
	case ValueRange:
		if !spec.Range {
			return Node{}, &CompileError{Field: field, Pos: e.Pos, Msg: "range syntax is not supported", Allowed: c.rangeFields()}
		}
		var err error
		if t.Min, err = normalizeBound(spec, e.Min); err != nil {
			return Node{}, &CompileError{Field: field, Pos: e.Pos, Msg: err.Error()}
		}
		if t.Max, err = normalizeBound(spec, e.Max); err != nil {
			return Node{}, &CompileError{Field: field, Pos: e.Pos, Msg: err.Error()}
		}
	}
	if implicit {
		t.Pattern = d.Contains(t.Pattern)
	}

	if spec.Builder != nil {
		n, err := spec.Builder(t)
		if err != nil {
			return Node{}, &CompileError{Field: field, Pos: e.Pos, Msg: err.Error()}
		}
		return n, nil
	}
	if t.Kind == ValueRange {
		return RangeNode(spec.Column, t.Min, t.Max), nil
	}
	return Term(spec.Column, t.Pattern), nil
}

// RangeNode maps range bounds onto a KindRange node over column.
func RangeNode(column string, lo, hi Bound) Node {
	n := Node{Kind: KindRange, Field: column}
	if !lo.Open {
		v := lo.Value
		n.Min = &v
		n.MinInclusive = lo.Inclusive
	}
	if !hi.Open {
		v := hi.Value
		n.Max = &v
		n.MaxInclusive = hi.Inclusive
	}
	return n
}

func normalizeBound(spec FieldSpec, b Bound) (Bound, error) {
	if b.Open || spec.Normalize == nil {
		return b, nil
	}
	v, err := spec.Normalize(b.Value)
	if err != nil {
		return b, err
	}
	b.Value = v
	return b, nil
}

func (c *Compiler) rangeFields() []string {
	var out []string
	for _, name := range c.allowed {
		if c.cfg.Fields[name].Range {
			out = append(out, name)
		}
	}
	return out
}
