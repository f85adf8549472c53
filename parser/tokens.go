package parser

import "fmt"

// Token kinds.
const (
	EOF = iota
	NEWLINE
	INDENT
	DEDENT
	IDENTIFIER
	INT_LITERAL
	FLOAT_LITERAL
	STRING_LITERAL
	BYTES_LITERAL

	// Keywords
	DEF
	CLASS
	IF
	ELIF
	ELSE
	WHILE
	FOR
	IN
	IS
	NOT
	AND
	OR
	RETURN
	PASS
	BREAK
	CONTINUE
	ASSERT
	IMPORT
	FROM
	AS
	NONE
	TRUE
	FALSE

	// Punctuation and operators
	LPAREN
	RPAREN
	LBRACKET
	RBRACKET
	LBRACE
	RBRACE
	COMMA
	COLON
	DOT
	SEMICOLON
	ASSIGN
	WALRUS
	ARROW
	AT
	ELLIPSIS
	EQ
	NEQ
	LT
	LTE
	GT
	GTE
	PLUS
	MINUS
	MUL
	DIV
	MOD
	PIPE
	AMP
	POWER
	PLUS_ASSIGN
	MINUS_ASSIGN
	MUL_ASSIGN
	PIPE_ASSIGN
)

var keywords = map[string]int{
	"def": DEF, "class": CLASS, "if": IF, "elif": ELIF, "else": ELSE,
	"while": WHILE, "for": FOR, "in": IN, "is": IS, "not": NOT,
	"and": AND, "or": OR, "return": RETURN, "pass": PASS, "break": BREAK,
	"continue": CONTINUE, "assert": ASSERT, "import": IMPORT, "from": FROM,
	"as": AS, "None": NONE, "True": TRUE, "False": FALSE,
}

var tokenNames = map[int]string{
	EOF: "EOF", NEWLINE: "NEWLINE", INDENT: "INDENT", DEDENT: "DEDENT",
	IDENTIFIER: "IDENTIFIER", INT_LITERAL: "INT_LITERAL", FLOAT_LITERAL: "FLOAT_LITERAL",
	STRING_LITERAL: "STRING_LITERAL", BYTES_LITERAL: "BYTES_LITERAL",
	LPAREN: "'('", RPAREN: "')'", LBRACKET: "'['", RBRACKET: "']'", LBRACE: "'{'", RBRACE: "'}'",
	COMMA: "','", COLON: "':'", DOT: "'.'", SEMICOLON: "';'", ASSIGN: "'='", WALRUS: "':='",
	ARROW: "'->'", AT: "'@'", ELLIPSIS: "'...'", EQ: "'=='", NEQ: "'!='", LT: "'<'", LTE: "'<='",
	GT: "'>'", GTE: "'>='", PLUS: "'+'", MINUS: "'-'", MUL: "'*'", DIV: "'/'", MOD: "'%'",
	PIPE: "'|'", AMP: "'&'", POWER: "'**'", PLUS_ASSIGN: "'+='", MINUS_ASSIGN: "'-='",
	MUL_ASSIGN: "'*='", PIPE_ASSIGN: "'|='",
}

func init() {
	for text, tok := range keywords {
		tokenNames[tok] = "'" + text + "'"
	}
}

// TokenString returns a printable name for a token kind.
func TokenString(tok int) string {
	if s, ok := tokenNames[tok]; ok {
		return s
	}
	return fmt.Sprintf("Token(%d)", tok)
}

// Token is one lexed token with its position and decoded value.
type Token struct {
	Kind     int
	Text     string
	StartPos int
	EndPos   int
	Line     int
	Col      int

	IntValue   int64
	FloatValue float64
	StrValue   string

	// IsBigInt marks an int literal too large for IntValue.
	IsBigInt bool
}
