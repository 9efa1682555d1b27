package query

// Grammar, loosest binding first:
//
//	query   = or EOF
//	or      = and { OR and }
//	and     = unary { [AND] unary }
//	unary   = NOT unary | primary
//	primary = "(" or ")" | term
//	term    = [field ":"] value
//	value   = word | phrase | range | "(" or ")"
//	range   = ("[" | "{") bound TO bound ("]" | "}")
//
// Inside field:( ... ) every term inherits the field and may not name another.

type parser struct {
	toks []token
	pos  int
}

// Parse parses a query string into an expression tree.
func Parse(input string) (Expr, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, syntaxErr(0, "empty query")
	}
	e, err := p.parseOr("")
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, syntaxErr(t.pos, "unexpected %s", t.kind)
	}
	return e, nil
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(k tokenKind) (token, error) {
	t := p.next()
	if t.kind != k {
		return t, syntaxErr(t.pos, "expected %s, found %s", k, t.kind)
	}
	return t, nil
}

func (p *parser) parseOr(scope string) (Expr, error) {
	left, err := p.parseAnd(scope)
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokOr {
		p.next()
		right, err := p.parseAnd(scope)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd(scope string) (Expr, error) {
	left, err := p.parseUnary(scope)
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().kind {
		case tokAnd:
			p.next()
		case tokWord, tokPhrase, tokLParen, tokNot, tokTo:
			// adjacency
		default:
			return left, nil
		}
		right, err := p.parseUnary(scope)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpAnd, Left: left, Right: right}
	}
}

func (p *parser) parseUnary(scope string) (Expr, error) {
	if p.peek().kind == tokNot {
		p.next()
		x, err := p.parseUnary(scope)
		if err != nil {
			return nil, err
		}
		return &NotExpr{X: x}, nil
	}
	return p.parsePrimary(scope)
}

func (p *parser) parsePrimary(scope string) (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokLParen:
		p.next()
		e, err := p.parseOr(scope)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return e, nil
	case tokWord, tokTo:
		if p.toks[p.pos+1].kind == tokColon {
			if scope != "" {
				return nil, &CompileError{Field: t.text, Pos: t.pos, Msg: "cannot name a field inside " + scope + ":(...)"}
			}
			if t.escaped || t.text == "" {
				return nil, syntaxErr(t.pos, "invalid field name %q", t.text)
			}
			p.next()
			p.next()
			return p.parseValue(t.text, t.pos)
		}
		p.next()
		return &TermExpr{Field: scope, Kind: ValueWord, Raw: t.text, Pos: t.pos}, nil
	case tokPhrase:
		p.next()
		return &TermExpr{Field: scope, Kind: ValuePhrase, Raw: t.text, Pos: t.pos}, nil
	case tokLBracket, tokLBrace:
		if scope == "" {
			return nil, syntaxErr(t.pos, "range requires a field")
		}
		return p.parseRange(scope)
	}
	return nil, syntaxErr(t.pos, "unexpected %s", t.kind)
}

// parseValue parses what follows "field:".
func (p *parser) parseValue(field string, pos int) (Expr, error) {
	t := p.peek()
	switch t.kind {
	case tokWord, tokTo:
		p.next()
		return &TermExpr{Field: field, Kind: ValueWord, Raw: t.text, Pos: pos}, nil
	case tokPhrase:
		p.next()
		return &TermExpr{Field: field, Kind: ValuePhrase, Raw: t.text, Pos: pos}, nil
	case tokLBracket, tokLBrace:
		return p.parseRange(field)
	case tokLParen:
		p.next()
		e, err := p.parseOr(field)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, &CompileError{Field: field, Pos: t.pos, Msg: "missing value, found " + t.kind.String()}
}

func (p *parser) parseRange(field string) (Expr, error) {
	open := p.next()
	term := &TermExpr{Field: field, Kind: ValueRange, Pos: open.pos}
	term.Min.Inclusive = open.kind == tokLBracket

	var err error
	if term.Min, err = p.parseBound(term.Min.Inclusive); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokTo); err != nil {
		return nil, err
	}
	if term.Max, err = p.parseBound(false); err != nil {
		return nil, err
	}

	switch c := p.next(); c.kind {
	case tokRBracket:
		term.Max.Inclusive = true
	case tokRBrace:
		term.Max.Inclusive = false
	default:
		return nil, syntaxErr(c.pos, "expected ']' or '}', found %s", c.kind)
	}
	return term, nil
}

func (p *parser) parseBound(inclusive bool) (Bound, error) {
	t := p.next()
	switch t.kind {
	case tokWord:
		if t.text == "*" {
			return Bound{Open: true, Inclusive: inclusive}, nil
		}
		return Bound{Value: unescape(t.text), Inclusive: inclusive}, nil
	case tokPhrase:
		return Bound{Value: t.text, Inclusive: inclusive}, nil
	}
	return Bound{}, syntaxErr(t.pos, "expected range bound, found %s", t.kind)
}
