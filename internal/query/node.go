package query

import (
	"strings"
)

// Kind is the type of a predicate node.
type Kind int

const (
	KindAnd Kind = iota
	KindOr
	KindNot
	// KindTerm matches Field against a store pattern.
	KindTerm
	// KindRange compares Field against Min and Max.
	KindRange
	// KindAny holds when some row of the relation named by Field satisfies
	// the single child. Custom builders use it for multi-valued fields.
	KindAny
)

func (k Kind) String() string {
	switch k {
	case KindAnd:
		return "AND"
	case KindOr:
		return "OR"
	case KindNot:
		return "NOT"
	case KindTerm:
		return "TERM"
	case KindRange:
		return "RANGE"
	case KindAny:
		return "ANY"
	}
	return "?"
}

// Node is a compiled, storage-agnostic predicate. Field always holds a
// physical location taken from configuration, never user input.
type Node struct {
	Kind     Kind
	Children []Node `json:",omitempty"`

	Field   string `json:",omitempty"`
	Pattern string `json:",omitempty"`

	Min          *string `json:",omitempty"`
	Max          *string `json:",omitempty"`
	MinInclusive bool    `json:",omitempty"`
	MaxInclusive bool    `json:",omitempty"`
}

// And joins nodes, flattening nested ANDs.
func And(nodes ...Node) Node { return join(KindAnd, nodes) }

// Or joins nodes, flattening nested ORs.
func Or(nodes ...Node) Node { return join(KindOr, nodes) }

// Not negates n. Double negation collapses.
func Not(n Node) Node {
	if n.Kind == KindNot {
		return n.Children[0]
	}
	return Node{Kind: KindNot, Children: []Node{n}}
}

// Any wraps child in a relation existence test.
func Any(relation string, child Node) Node {
	return Node{Kind: KindAny, Field: relation, Children: []Node{child}}
}

// Term matches column against an already translated store pattern.
func Term(column, pattern string) Node {
	return Node{Kind: KindTerm, Field: column, Pattern: pattern}
}

func join(kind Kind, nodes []Node) Node {
	if len(nodes) == 1 {
		return nodes[0]
	}
	out := Node{Kind: kind}
	for _, n := range nodes {
		if n.Kind == kind {
			out.Children = append(out.Children, n.Children...)
			continue
		}
		out.Children = append(out.Children, n)
	}
	return out
}

// String renders the node for debugging and tests.
func (n Node) String() string {
	switch n.Kind {
	case KindAnd, KindOr:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = c.String()
		}
		return "(" + strings.Join(parts, " "+n.Kind.String()+" ") + ")"
	case KindNot:
		return "NOT " + n.Children[0].String()
	case KindTerm:
		return n.Field + " LIKE " + quote(n.Pattern)
	case KindRange:
		var parts []string
		if n.Min != nil {
			op := ">"
			if n.MinInclusive {
				op = ">="
			}
			parts = append(parts, n.Field+" "+op+" "+quote(*n.Min))
		}
		if n.Max != nil {
			op := "<"
			if n.MaxInclusive {
				op = "<="
			}
			parts = append(parts, n.Field+" "+op+" "+quote(*n.Max))
		}
		if len(parts) == 0 {
			return n.Field + " IS NOT NULL"
		}
		return strings.Join(parts, " AND ")
	case KindAny:
		return "ANY " + n.Field + " " + n.Children[0].String()
	}
	return "?"
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
