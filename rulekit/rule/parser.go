package rule

import (
	"strconv"
	"strings"
)

// Parse tokenizes and parses a rule string into an AST
func Parse(input string) (Node, error) {
	tokens, err := Tokenize(input)
	if err != nil {
		return nil, err
	}
	return ParseTokens(tokens)
}

// ParseTokens parses a token sequence into an AST.
//
//	expr       := term (LOGICAL_OP term)*
//	term       := '(' expr ')' | comparison
//	comparison := IDENTIFIER COMPARATOR literal
//	literal    := NUMBER | STRING | true | false
//
// AND and OR share one precedence level and associate left to right.
func ParseTokens(tokens []Token) (Node, error) {
	p := &parser{tokens: tokens, pos: 0}
	if len(tokens) == 0 {
		return nil, p.errorf("comparison or '('")
	}

	n, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if !p.match(TokEOF) {
		if p.match(TokRParen) {
			return nil, p.errorf("logical operator or end of input (unbalanced ')')")
		}
		return nil, p.errorf("logical operator or end of input")
	}
	return n, nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) parseExpr() (Node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for p.match(TokLogicalOp) {
		op := LogicalOp(p.current().Text)
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &Operator{Op: op, Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parseTerm() (Node, error) {
	if p.match(TokLParen) {
		p.advance()
		n, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if !p.match(TokRParen) {
			return nil, p.errorf("')'")
		}
		p.advance()
		return n, nil
	}

	return p.parseComparison()
}

func (p *parser) parseComparison() (Node, error) {
	if !p.match(TokIdent) {
		return nil, p.errorf("attribute name or '('")
	}
	attribute := p.current().Text
	p.advance()

	if !p.match(TokComparator) {
		return nil, p.errorf("comparator")
	}
	cmp := Comparator(p.current().Text)
	p.advance()

	literal, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}

	return &Operand{Attribute: attribute, Comparator: cmp, Literal: literal}, nil
}

func (p *parser) parseLiteral() (Value, error) {
	tok := p.current()
	switch tok.Kind {
	case TokNumber:
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return Value{}, p.errorf("number")
		}
		p.advance()
		return NumberValue(f), nil
	case TokString:
		p.advance()
		return StringValue(tok.Text), nil
	case TokIdent:
		switch strings.ToLower(tok.Text) {
		case "true":
			p.advance()
			return BoolValue(true), nil
		case "false":
			p.advance()
			return BoolValue(false), nil
		}
	}
	return Value{}, p.errorf("literal")
}

func (p *parser) current() Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return Token{Kind: TokEOF, Pos: p.endPos()}
}

// endPos is the offset just past the last token
func (p *parser) endPos() int {
	if len(p.tokens) == 0 {
		return 0
	}
	last := p.tokens[len(p.tokens)-1]
	n := len([]rune(last.Text))
	if last.Kind == TokString {
		n += 2
	}
	return last.Pos + n
}

func (p *parser) advance() {
	if p.pos < len(p.tokens) {
		p.pos++
	}
}

func (p *parser) match(kind TokenKind) bool {
	return p.current().Kind == kind
}

func (p *parser) errorf(expected string) *ParseError {
	tok := p.current()
	return &ParseError{Pos: tok.Pos, Expected: expected, Found: tok.String()}
}
