package expr

import "fmt"

// Grammar, loosest binding first:
//
//	expr   := and ( "||" and )*
//	and    := unary ( "&&" unary )*
//	unary  := "!" unary | primary
//	primary:= "(" expr ")" ( "*" INT )* | comparison
//	comparison := operand CMP operand
//	operand    := TERM | NUMBER
//
// Repetition only attaches to parenthesized groups.
type parser struct {
	toks []token
	pos  int
}

func parse(toks []token) (Node, error) {
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokenEOF {
		return nil, fmt.Errorf("unexpected %q after expression", tok.text)
	}
	return n, nil
}

func (p *parser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokenEOF, text: "end of expression"}
	}
	return p.toks[p.pos]
}

func (p *parser) next() token {
	tok := p.peek()
	if tok.kind != tokenEOF {
		p.pos++
	}
	return tok
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &Logic{Op: LogicOr, L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokenAnd {
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &Logic{Op: LogicAnd, L: left, R: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Node, error) {
	if p.peek().kind == tokenNot {
		p.next()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Not{X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Node, error) {
	if p.peek().kind != tokenLParen {
		return p.parseComparison()
	}
	p.next()
	inner, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokenRParen {
		return nil, fmt.Errorf("expected ')', got %q", p.peek().text)
	}
	p.next()

	node := inner
	for p.peek().kind == tokenStar {
		p.next()
		tok := p.next()
		if tok.kind != tokenNumber {
			return nil, fmt.Errorf("expected repeat count, got %q", tok.text)
		}
		n := int(tok.num)
		if float64(n) != tok.num || n < 1 {
			return nil, fmt.Errorf("repeat count must be a positive integer, got %q", tok.text)
		}
		node = &Repeat{Body: node, N: n}
	}
	return node, nil
}

func (p *parser) parseComparison() (Node, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	tok := p.next()
	if tok.kind != tokenCompare {
		return nil, fmt.Errorf("expected comparison operator, got %q", tok.text)
	}
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &Compare{Op: CompareOp(tok.text), L: left, R: right}, nil
}

func (p *parser) parseOperand() (Node, error) {
	tok := p.next()
	switch tok.kind {
	case tokenTerm:
		t := tok.term
		return &t, nil
	case tokenNumber:
		return &Number{Value: tok.num}, nil
	default:
		return nil, fmt.Errorf("expected term or number, got %q", tok.text)
	}
}
