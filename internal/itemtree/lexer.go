package itemtree

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

type TokenType int

const (
	ILLEGAL TokenType = iota
	EOF

	IDENT    // Vec, T, i32
	LIFETIME // 'a
	VAR      // ?x

	LT       // <
	GT       // >
	LPAREN   // (
	RPAREN   // )
	COMMA    // ,
	COLON    // :
	PATHSEP  // ::
	AMP      // &
	STAR     // *
	PLUS     // +
	ASSIGN   // =
	EQ       // ==
	ARROW    // ->
	BANG     // !
	QUESTION // ?
)

var tokenNames = map[TokenType]string{
	ILLEGAL:  "ILLEGAL",
	EOF:      "end of input",
	IDENT:    "identifier",
	LIFETIME: "lifetime",
	VAR:      "inference variable",
	LT:       "`<`",
	GT:       "`>`",
	LPAREN:   "`(`",
	RPAREN:   "`)`",
	COMMA:    "`,`",
	COLON:    "`:`",
	PATHSEP:  "`::`",
	AMP:      "`&`",
	STAR:     "`*`",
	PLUS:     "`+`",
	ASSIGN:   "`=`",
	EQ:       "`==`",
	ARROW:    "`->`",
	BANG:     "`!`",
	QUESTION: "`?`",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

type Token struct {
	Type    TokenType
	Literal string
	// Offset is the column of the token within the expression, from 1.
	Offset int
}

// Lexer splits a type or predicate expression into tokens.
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           rune // current char under examination
	column       int
}

func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

func (l *Lexer) readChar() {
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.position = l.readPosition
		l.readPosition++
		l.column++
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.position = l.readPosition
	l.readPosition += w
	l.column++
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) NextToken() Token {
	l.skipWhitespace()
	col := l.column

	var tok Token
	switch l.ch {
	case 0:
		return Token{Type: EOF, Offset: col}
	case '<':
		tok = l.single(LT)
	case '>':
		tok = l.single(GT)
	case '(':
		tok = l.single(LPAREN)
	case ')':
		tok = l.single(RPAREN)
	case ',':
		tok = l.single(COMMA)
	case '&':
		tok = l.single(AMP)
	case '*':
		tok = l.single(STAR)
	case '+':
		tok = l.single(PLUS)
	case '!':
		tok = l.single(BANG)
	case ':':
		if l.peekChar() == ':' {
			l.readChar()
			tok = Token{Type: PATHSEP, Literal: "::"}
		} else {
			tok = l.single(COLON)
		}
	case '=':
		if l.peekChar() == '=' {
			l.readChar()
			tok = Token{Type: EQ, Literal: "=="}
		} else {
			tok = l.single(ASSIGN)
		}
	case '-':
		if l.peekChar() == '>' {
			l.readChar()
			tok = Token{Type: ARROW, Literal: "->"}
		} else {
			tok = l.single(ILLEGAL)
		}
	case '\'':
		l.readChar()
		if !isIdentStart(l.ch) {
			return Token{Type: ILLEGAL, Literal: "'", Offset: col}
		}
		return Token{Type: LIFETIME, Literal: l.readIdentifier(), Offset: col}
	case '?':
		if isIdentStart(l.peekChar()) {
			l.readChar()
			return Token{Type: VAR, Literal: l.readIdentifier(), Offset: col}
		}
		tok = l.single(QUESTION)
	default:
		if isIdentStart(l.ch) {
			return Token{Type: IDENT, Literal: l.readIdentifier(), Offset: col}
		}
		tok = l.single(ILLEGAL)
	}
	tok.Offset = col
	l.readChar()
	return tok
}

func (l *Lexer) single(t TokenType) Token {
	return Token{Type: t, Literal: string(l.ch)}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isIdentStart(l.ch) || unicode.IsDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}
