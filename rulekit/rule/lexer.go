package rule

import (
	"fmt"
	"strings"
	"unicode"
)

// Token represents a lexical token
type Token struct {
	Kind TokenKind
	Text string
	Pos  int // rune offset into the source
}

func (t Token) String() string {
	if t.Kind == TokEOF {
		return "end of input"
	}
	if t.Kind == TokString {
		return fmt.Sprintf("%s('%s')", t.Kind, t.Text)
	}
	return fmt.Sprintf("%s(%s)", t.Kind, t.Text)
}

// TokenKind is the type of token
type TokenKind int

const (
	TokIdent TokenKind = iota
	TokNumber
	TokString
	TokComparator
	TokLogicalOp
	TokLParen
	TokRParen
	TokEOF // never produced by Tokenize; used by the parser past the last token
)

func (k TokenKind) String() string {
	switch k {
	case TokIdent:
		return "Ident"
	case TokNumber:
		return "Number"
	case TokString:
		return "String"
	case TokComparator:
		return "Comparator"
	case TokLogicalOp:
		return "LogicalOp"
	case TokLParen:
		return "LParen"
	case TokRParen:
		return "RParen"
	case TokEOF:
		return "EOF"
	default:
		return "Unknown"
	}
}

const snippetLen = 10

// Lexer tokenizes a rule string
type Lexer struct {
	input []rune
	pos   int
}

// NewLexer creates a new lexer for the input string
func NewLexer(input string) *Lexer {
	return &Lexer{
		input: []rune(input),
		pos:   0,
	}
}

// Tokenize turns the entire input into a token sequence. Whitespace is
// dropped and no EOF token is appended.
func Tokenize(input string) ([]Token, error) {
	lexer := NewLexer(input)
	var tokens []Token

	for {
		tok, ok, err := lexer.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tokens = append(tokens, tok)
	}

	return tokens, nil
}

// Next returns the next token. ok is false once the input is exhausted.
func (l *Lexer) Next() (tok Token, ok bool, err error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{}, false, nil
	}

	start := l.pos
	ch := l.input[l.pos]

	switch ch {
	case '(':
		l.pos++
		return Token{Kind: TokLParen, Text: "(", Pos: start}, true, nil
	case ')':
		l.pos++
		return Token{Kind: TokRParen, Text: ")", Pos: start}, true, nil
	}

	// Comparators. A bare '=' is read as '=='.
	switch ch {
	case '<', '>':
		if l.peek(1) == '=' {
			l.pos += 2
			return Token{Kind: TokComparator, Text: string(ch) + "=", Pos: start}, true, nil
		}
		l.pos++
		return Token{Kind: TokComparator, Text: string(ch), Pos: start}, true, nil
	case '=':
		if l.peek(1) == '=' {
			l.pos += 2
		} else {
			l.pos++
		}
		return Token{Kind: TokComparator, Text: "==", Pos: start}, true, nil
	case '!':
		if l.peek(1) == '=' {
			l.pos += 2
			return Token{Kind: TokComparator, Text: "!=", Pos: start}, true, nil
		}
		return Token{}, false, l.errorAt(start)
	}

	if ch == '\'' {
		tok, err := l.scanString()
		return tok, err == nil, err
	}

	if isDigit(ch) || (ch == '-' && isDigit(l.peek(1))) {
		return l.scanNumber(), true, nil
	}

	if isIdentStart(ch) {
		return l.scanIdent(), true, nil
	}

	return Token{}, false, l.errorAt(start)
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(l.input[l.pos]) {
		l.pos++
	}
}

func (l *Lexer) peek(offset int) rune {
	pos := l.pos + offset
	if pos < len(l.input) {
		return l.input[pos]
	}
	return 0
}

func (l *Lexer) errorAt(pos int) *LexError {
	end := pos + snippetLen
	if end > len(l.input) {
		end = len(l.input)
	}
	return &LexError{Pos: pos, Snippet: string(l.input[pos:end])}
}

func (l *Lexer) scanString() (Token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\'' {
			l.pos++
			return Token{Kind: TokString, Text: sb.String(), Pos: start}, nil
		}
		sb.WriteRune(ch)
		l.pos++
	}

	err := l.errorAt(start)
	err.Unterminated = true
	return Token{}, err
}

func (l *Lexer) scanNumber() Token {
	start := l.pos

	if l.input[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.input) && l.input[l.pos] == '.' && isDigit(l.peek(1)) {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}

	return Token{Kind: TokNumber, Text: string(l.input[start:l.pos]), Pos: start}
}

func (l *Lexer) scanIdent() Token {
	start := l.pos

	for l.pos < len(l.input) && isIdentChar(l.input[l.pos]) {
		l.pos++
	}

	value := string(l.input[start:l.pos])
	switch strings.ToUpper(value) {
	case "AND":
		return Token{Kind: TokLogicalOp, Text: string(OpAnd), Pos: start}
	case "OR":
		return Token{Kind: TokLogicalOp, Text: string(OpOr), Pos: start}
	}

	return Token{Kind: TokIdent, Text: value, Pos: start}
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

func isIdentChar(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}
