package compiler

import "fmt"

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / function name
	INTEGER    // decimal, hex or octal literal, or a 'c' character literal
	STRING     // string literal "..."; Token.Val holds its data address

	// Keywords
	CHAR
	ELSE
	ENUM
	IF
	INT
	RETURN
	SIZEOF
	WHILE

	// Punctuation
	LBRACE    // {
	RBRACE    // }
	LPAREN    // (
	RPAREN    // )
	LBRACKET  // [
	RBRACKET  // ]
	SEMICOLON // ;
	COMMA     // ,
	COLON     // :
	QUESTION  // ?
	TILDE     // ~
	NOT       // !

	// Operators
	ASSIGN      // =
	OR_LOGICAL  // ||
	AND_LOGICAL // &&
	PIPE        // |
	CARET       // ^
	AND         // & (binary bitwise AND, or unary address-of)
	EQUALS      // ==
	NOT_EQ      // !=
	LESS        // <
	GREATER     // >
	LESS_EQ     // <=
	GREATER_EQ  // >=
	SHL_OP      // <<
	SHR_OP      // >>
	PLUS        // +
	MINUS       // -
	STAR        // * (multiply, or unary dereference)
	SLASH       // /
	PERCENT     // %
	PLUS_PLUS   // ++
	MINUS_MINUS // --
)

// tokenNames is indexed by TokenType.
var tokenNames = [...]string{
	EOF:         "EOF",
	IDENTIFIER:  "IDENTIFIER",
	INTEGER:     "INTEGER",
	STRING:      "STRING",
	CHAR:        "CHAR",
	ELSE:        "ELSE",
	ENUM:        "ENUM",
	IF:          "IF",
	INT:         "INT",
	RETURN:      "RETURN",
	SIZEOF:      "SIZEOF",
	WHILE:       "WHILE",
	LBRACE:      "LBRACE",
	RBRACE:      "RBRACE",
	LPAREN:      "LPAREN",
	RPAREN:      "RPAREN",
	LBRACKET:    "LBRACKET",
	RBRACKET:    "RBRACKET",
	SEMICOLON:   "SEMICOLON",
	COMMA:       "COMMA",
	COLON:       "COLON",
	QUESTION:    "QUESTION",
	TILDE:       "TILDE",
	NOT:         "NOT",
	ASSIGN:      "ASSIGN",
	OR_LOGICAL:  "OR_LOGICAL",
	AND_LOGICAL: "AND_LOGICAL",
	PIPE:        "PIPE",
	CARET:       "CARET",
	AND:         "AND",
	EQUALS:      "EQUALS",
	NOT_EQ:      "NOT_EQ",
	LESS:        "LESS",
	GREATER:     "GREATER",
	LESS_EQ:     "LESS_EQ",
	GREATER_EQ:  "GREATER_EQ",
	SHL_OP:      "SHL_OP",
	SHR_OP:      "SHR_OP",
	PLUS:        "PLUS",
	MINUS:       "MINUS",
	STAR:        "STAR",
	SLASH:       "SLASH",
	PERCENT:     "PERCENT",
	PLUS_PLUS:   "PLUS_PLUS",
	MINUS_MINUS: "MINUS_MINUS",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type TokenType
	Val  int64   // number value, or data segment address of a string
	Sym  *Symbol // interned entry for identifiers and keywords
	Line int     // 1-based source line
}

func (t Token) String() string {
	switch t.Type {
	case INTEGER, STRING:
		return fmt.Sprintf("%-12s %-14d  line %d", t.Type, t.Val, t.Line)
	case IDENTIFIER:
		return fmt.Sprintf("%-12s %-14q  line %d", t.Type, t.Sym.Name, t.Line)
	}
	return fmt.Sprintf("%-12s %-14s  line %d", t.Type, "", t.Line)
}

// Operator precedence, lowest first. Binary and postfix operators continue
// an expression while their precedence is at least the caller's minimum.
const (
	precNone = iota
	precAssign
	precCond
	precLogicalOr
	precLogicalAnd
	precBitOr
	precBitXor
	precBitAnd
	precEquality
	precRelational
	precShift
	precAdditive
	precMultiplicative
	precIncDec
	precSubscript
)

var binaryPrec = map[TokenType]int{
	ASSIGN:      precAssign,
	QUESTION:    precCond,
	OR_LOGICAL:  precLogicalOr,
	AND_LOGICAL: precLogicalAnd,
	PIPE:        precBitOr,
	CARET:       precBitXor,
	AND:         precBitAnd,
	EQUALS:      precEquality,
	NOT_EQ:      precEquality,
	LESS:        precRelational,
	GREATER:     precRelational,
	LESS_EQ:     precRelational,
	GREATER_EQ:  precRelational,
	SHL_OP:      precShift,
	SHR_OP:      precShift,
	PLUS:        precAdditive,
	MINUS:       precAdditive,
	STAR:        precMultiplicative,
	SLASH:       precMultiplicative,
	PERCENT:     precMultiplicative,
	PLUS_PLUS:   precIncDec,
	MINUS_MINUS: precIncDec,
	LBRACKET:    precSubscript,
}
