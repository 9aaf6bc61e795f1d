package compiler

import (
	"bytes"

	"c4vm/pkg/vm"
)

// dataSegment is the growing image of the program's initialized data.
// Addresses handed out are absolute VM addresses.
type dataSegment struct {
	buf []byte
}

func (d *dataSegment) addr() int64 {
	return vm.DataBase + int64(len(d.buf))
}

func (d *dataSegment) appendByte(b byte) {
	d.buf = append(d.buf, b)
}

// terminate moves to the next word boundary, always past at least one zero
// byte, so the string just written stays NUL-terminated.
func (d *dataSegment) terminate() {
	n := (len(d.buf) + vm.WordSize) &^ (vm.WordSize - 1)
	d.buf = append(d.buf, make([]byte, n-len(d.buf))...)
}

// reserveWord allocates one zeroed word and returns its address.
func (d *dataSegment) reserveWord() int64 {
	addr := d.addr()
	d.buf = append(d.buf, make([]byte, vm.WordSize)...)
	return addr
}

// Lexer holds all mutable state for a single scanning pass over src.
// Identifiers are interned into syms and string literal bytes are written
// to data as they are scanned.
type Lexer struct {
	src       []byte
	pos       int // index of the next byte to consume
	line      int // current 1-based source line
	lineStart int

	syms *SymbolTable
	data *dataSegment

	// onLine, if set, is called with each completed source line, newline
	// included.
	onLine func(line int, text string)
}

func newLexer(src string, syms *SymbolTable, data *dataSegment) *Lexer {
	b := []byte(src)
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return &Lexer{src: b, line: 1, syms: syms, data: data}
}

// peek returns the byte at the current position without advancing.
func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// accept consumes the next byte if it is ch.
func (l *Lexer) accept(ch byte) bool {
	if l.peek() == ch && l.pos < len(l.src) {
		l.pos++
		return true
	}
	return false
}

func (l *Lexer) skipLine() {
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.pos++
	}
}

func isIdentStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F'
}

// Next returns the next token. It never fails: bytes that start no token
// are skipped, and malformed input surfaces as a parse error.
func (l *Lexer) Next() Token {
	for l.pos < len(l.src) {
		ch := l.src[l.pos]
		l.pos++

		switch {
		case ch == '\n':
			if l.onLine != nil {
				l.onLine(l.line, string(l.src[l.lineStart:l.pos]))
			}
			l.lineStart = l.pos
			l.line++
		case ch == '#':
			// preprocessor directives are not interpreted
			l.skipLine()
		case isIdentStart(ch):
			return l.scanIdent()
		case isDigit(ch):
			return l.scanNumber(ch)
		case ch == '/':
			if l.accept('/') {
				l.skipLine()
				continue
			}
			return l.token(SLASH)
		case ch == '\'' || ch == '"':
			return l.scanQuoted(ch)
		default:
			if tt, ok := l.scanOperator(ch); ok {
				return l.token(tt)
			}
		}
	}
	return Token{Type: EOF, Line: l.line}
}

func (l *Lexer) token(tt TokenType) Token {
	return Token{Type: tt, Line: l.line}
}

// scanIdent collects an identifier or keyword. Its first byte has already
// been consumed.
func (l *Lexer) scanIdent() Token {
	start := l.pos - 1
	for l.pos < len(l.src) && (isIdentStart(l.src[l.pos]) || isDigit(l.src[l.pos])) {
		l.pos++
	}
	sym := l.syms.Intern(string(l.src[start:l.pos]))
	return Token{Type: sym.Token, Sym: sym, Line: l.line}
}

// scanNumber collects a decimal, 0x hex or 0-prefixed octal literal. Its
// first digit has already been consumed.
func (l *Lexer) scanNumber(first byte) Token {
	val := int64(first - '0')
	switch {
	case val != 0:
		for isDigit(l.peek()) {
			val = val*10 + int64(l.src[l.pos]-'0')
			l.pos++
		}
	case l.peek() == 'x' || l.peek() == 'X':
		l.pos++
		for isHexDigit(l.peek()) {
			ch := l.src[l.pos]
			val = val*16 + int64(ch&15)
			if ch >= 'A' {
				val += 9
			}
			l.pos++
		}
	default:
		for ch := l.peek(); ch >= '0' && ch <= '7'; ch = l.peek() {
			val = val*8 + int64(ch-'0')
			l.pos++
		}
	}
	return Token{Type: INTEGER, Val: val, Line: l.line}
}

// scanQuoted collects a 'c' or "..." literal. Only \n is an escape; any
// other backslash yields the following byte itself. String bytes go
// straight into the data segment; the caller terminates the string once
// adjacent literals have been joined.
func (l *Lexer) scanQuoted(quote byte) Token {
	start := l.data.addr()
	var val int64
	for l.pos < len(l.src) && l.src[l.pos] != quote {
		ch := l.src[l.pos]
		l.pos++
		if ch == '\\' && l.pos < len(l.src) {
			ch = l.src[l.pos]
			l.pos++
			if ch == 'n' {
				ch = '\n'
			}
		}
		val = int64(ch)
		if quote == '"' {
			l.data.appendByte(ch)
		}
	}
	if l.pos < len(l.src) {
		l.pos++ // closing quote
	}
	if quote == '"' {
		return Token{Type: STRING, Val: start, Line: l.line}
	}
	return Token{Type: INTEGER, Val: val, Line: l.line}
}

// scanOperator maps punctuation to a token, using one byte of lookahead for
// two-character operators.
func (l *Lexer) scanOperator(ch byte) (TokenType, bool) {
	switch ch {
	case '=':
		if l.accept('=') {
			return EQUALS, true
		}
		return ASSIGN, true
	case '+':
		if l.accept('+') {
			return PLUS_PLUS, true
		}
		return PLUS, true
	case '-':
		if l.accept('-') {
			return MINUS_MINUS, true
		}
		return MINUS, true
	case '!':
		if l.accept('=') {
			return NOT_EQ, true
		}
		return NOT, true
	case '<':
		if l.accept('=') {
			return LESS_EQ, true
		}
		if l.accept('<') {
			return SHL_OP, true
		}
		return LESS, true
	case '>':
		if l.accept('=') {
			return GREATER_EQ, true
		}
		if l.accept('>') {
			return SHR_OP, true
		}
		return GREATER, true
	case '|':
		if l.accept('|') {
			return OR_LOGICAL, true
		}
		return PIPE, true
	case '&':
		if l.accept('&') {
			return AND_LOGICAL, true
		}
		return AND, true
	case '^':
		return CARET, true
	case '%':
		return PERCENT, true
	case '*':
		return STAR, true
	case '[':
		return LBRACKET, true
	case '?':
		return QUESTION, true
	case '~':
		return TILDE, true
	case ';':
		return SEMICOLON, true
	case '{':
		return LBRACE, true
	case '}':
		return RBRACE, true
	case '(':
		return LPAREN, true
	case ')':
		return RPAREN, true
	case ']':
		return RBRACKET, true
	case ',':
		return COMMA, true
	case ':':
		return COLON, true
	}
	return EOF, false
}

// Lex tokenises src with a fresh symbol table holding the builtin names and
// returns all tokens including the final EOF token.
func Lex(src string) []Token {
	syms := NewSymbolTable()
	registerBuiltins(syms)
	l := newLexer(src, syms, &dataSegment{})
	var tokens []Token
	for {
		tok := l.Next()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}
