package query

import (
	"fmt"
	"strings"
)

// Expr is a parsed query expression.
type Expr interface {
	expr()
	String() string
}

// Op is a binary boolean operator.
type Op int

const (
	OpAnd Op = iota
	OpOr
)

func (o Op) String() string {
	if o == OpOr {
		return "OR"
	}
	return "AND"
}

// BinaryExpr joins two expressions. Adjacent terms parse as OpAnd.
type BinaryExpr struct {
	Op          Op
	Left, Right Expr
}

// NotExpr negates X.
type NotExpr struct {
	X Expr
}

// ValueKind distinguishes the shapes a term value can take.
type ValueKind int

const (
	ValueWord ValueKind = iota
	ValuePhrase
	ValueRange
)

// Bound is one side of a range; Open means unbounded ("*").
type Bound struct {
	Value     string
	Open      bool
	Inclusive bool
}

// TermExpr is a single field:value test. Field is empty for a field-less term.
// Raw holds a word with its escapes intact, or a phrase already unescaped.
type TermExpr struct {
	Field string
	Kind  ValueKind
	Raw   string
	Min   Bound
	Max   Bound
	Pos   int
}

func (*BinaryExpr) expr() {}
func (*NotExpr) expr()    {}
func (*TermExpr) expr()   {}

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

func (e *NotExpr) String() string {
	return "NOT " + e.X.String()
}

func (e *TermExpr) String() string {
	var v string
	switch e.Kind {
	case ValuePhrase:
		v = `"` + strings.ReplaceAll(e.Raw, `"`, `\"`) + `"`
	case ValueRange:
		open, close := "{", "}"
		if e.Min.Inclusive {
			open = "["
		}
		if e.Max.Inclusive {
			close = "]"
		}
		v = open + e.Min.text() + " TO " + e.Max.text() + close
	default:
		v = e.Raw
	}
	if e.Field == "" {
		return v
	}
	return e.Field + ":" + v
}

func (b Bound) text() string {
	if b.Open {
		return "*"
	}
	return b.Value
}
