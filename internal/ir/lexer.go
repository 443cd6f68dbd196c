package ir

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber // integer or float literal, optionally signed
	tokString // "..." (Go quoting)
	tokAtom   // '...'
	tokPunct  // one of < > , * [ ] { } = :
)

type token struct {
	kind tokenKind
	text string // literal text; unquoted for tokString and tokAtom
	line int
	col  int
}

// lexer splits type and attribute text into tokens. Identifiers may contain
// letters, digits, '_' and '.', so "2x" lexes as a number followed by the
// identifier "x" and "0x4142" as "0" followed by "x4142"; the parser
// reassembles dimensions and hex payloads.
type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) errorf(line, col int, msg string) *ParseError {
	return &ParseError{Line: line, Col: col, Message: msg}
}

func (l *lexer) peekByte(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	l.pos += size
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return r
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			return
		}
		l.advance()
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *lexer) next() (token, error) {
	l.skipSpace()
	line, col := l.line, l.col
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: line, col: col}, nil
	}
	c := l.src[l.pos]
	switch {
	case c == '-' || c == '+':
		n := l.peekByte(1)
		if isDigit(n) {
			return l.number(line, col), nil
		}
		if isIdentStart(n) {
			// signed special floats: -Inf, +Inf
			start := l.pos
			l.advance()
			for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
				l.advance()
			}
			return token{kind: tokNumber, text: l.src[start:l.pos], line: line, col: col}, nil
		}
		return token{}, l.errorf(line, col, "unexpected "+strconv.QuoteRune(rune(c)))
	case isDigit(c):
		return l.number(line, col), nil
	case isIdentStart(c):
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.advance()
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], line: line, col: col}, nil
	case c == '"':
		return l.quoted(line, col)
	case c == '\'':
		return l.atom(line, col)
	case strings.IndexByte("<>,*[]{}=:", c) >= 0:
		l.advance()
		return token{kind: tokPunct, text: string(c), line: line, col: col}, nil
	}
	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return token{}, l.errorf(line, col, "unexpected "+strconv.QuoteRune(r))
}

func (l *lexer) number(line, col int) token {
	start := l.pos
	if c := l.src[l.pos]; c == '-' || c == '+' {
		l.advance()
	}
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.advance()
	}
	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		l.advance()
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.advance()
		}
	}
	if c := l.peekByte(0); c == 'e' || c == 'E' {
		n := l.peekByte(1)
		if isDigit(n) || ((n == '-' || n == '+') && isDigit(l.peekByte(2))) {
			l.advance()
			if n == '-' || n == '+' {
				l.advance()
			}
			for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
				l.advance()
			}
		}
	}
	return token{kind: tokNumber, text: l.src[start:l.pos], line: line, col: col}
}

func (l *lexer) quoted(line, col int) (token, error) {
	start := l.pos
	l.advance()
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '\\':
			l.advance()
			if l.pos < len(l.src) {
				l.advance()
			}
		case '"':
			l.advance()
			s, err := strconv.Unquote(l.src[start:l.pos])
			if err != nil {
				return token{}, l.errorf(line, col, "malformed string literal")
			}
			return token{kind: tokString, text: s, line: line, col: col}, nil
		case '\n':
			return token{}, l.errorf(line, col, "unterminated string literal")
		default:
			l.advance()
		}
	}
	return token{}, l.errorf(line, col, "unterminated string literal")
}

func (l *lexer) atom(line, col int) (token, error) {
	l.advance()
	var sb strings.Builder
	for l.pos < len(l.src) {
		r := l.advance()
		switch r {
		case '\\':
			if l.pos >= len(l.src) {
				return token{}, l.errorf(line, col, "unterminated atom literal")
			}
			sb.WriteRune(l.advance())
		case '\'':
			return token{kind: tokAtom, text: sb.String(), line: line, col: col}, nil
		default:
			sb.WriteRune(r)
		}
	}
	return token{}, l.errorf(line, col, "unterminated atom literal")
}

// quoteAtom is the inverse of lexer.atom.
func quoteAtom(name string) string {
	var sb strings.Builder
	sb.Grow(len(name) + 2)
	sb.WriteByte('\'')
	for _, r := range name {
		if r == '\'' || r == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	sb.WriteByte('\'')
	return sb.String()
}
