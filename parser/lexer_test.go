package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper struct for expected token properties
type expectedToken struct {
	tok       int    // Token type
	text      string // Raw token text as scanned by lexer
	startLine int
	startCol  int
}

func runLexerTest(t *testing.T, input string, expectedTokens []expectedToken) *Lexer {
	t.Helper()
	lexer := NewLexer(strings.NewReader(input))
	for i, exp := range expectedTokens {
		tok := lexer.Next()
		assert.Equal(t, TokenString(exp.tok), TokenString(tok.Kind), "Test %d: token mismatch (%q)", i, tok.Text)
		if exp.text != "" {
			assert.Equal(t, exp.text, tok.Text, "Test %d: text mismatch", i)
		}
		if exp.startLine > 0 {
			assert.Equal(t, exp.startLine, tok.Line, "Test %d: line mismatch", i)
			assert.Equal(t, exp.startCol, tok.Col, "Test %d: col mismatch", i)
		}
	}
	return lexer
}

func kinds(t *testing.T, input string) []string {
	t.Helper()
	lexer := NewLexer(strings.NewReader(input))
	var out []string
	for i := 0; i < 200; i++ {
		tok := lexer.Next()
		out = append(out, TokenString(tok.Kind))
		if tok.Kind == EOF {
			break
		}
	}
	require.NoError(t, lexer.LastError())
	return out
}

func TestLexerSimpleLine(t *testing.T) {
	runLexerTest(t, "x = foo(1, 'a')\n", []expectedToken{
		{IDENTIFIER, "x", 1, 1},
		{ASSIGN, "=", 1, 3},
		{IDENTIFIER, "foo", 1, 5},
		{LPAREN, "(", 1, 8},
		{INT_LITERAL, "1", 1, 9},
		{COMMA, ",", 1, 10},
		{STRING_LITERAL, `"a"`, 1, 12},
		{RPAREN, ")", 1, 15},
		{NEWLINE, "", 0, 0},
		{EOF, "", 0, 0},
	})
}

func TestLexerIndentation(t *testing.T) {
	src := `if x:
    y = 1

    # comment
    if z:
        pass
w
`
	assert.Equal(t, []string{
		"'if'", "IDENTIFIER", "':'", "NEWLINE",
		"INDENT", "IDENTIFIER", "'='", "INT_LITERAL", "NEWLINE",
		"'if'", "IDENTIFIER", "':'", "NEWLINE",
		"INDENT", "'pass'", "NEWLINE",
		"DEDENT", "DEDENT", "IDENTIFIER", "NEWLINE",
		"EOF",
	}, kinds(t, src))
}

func TestLexerDedentsAtEOF(t *testing.T) {
	assert.Equal(t, []string{
		"'def'", "IDENTIFIER", "'('", "')'", "':'", "NEWLINE",
		"INDENT", "'return'", "NEWLINE", "DEDENT", "EOF",
	}, kinds(t, "def f():\n    return"))
}

func TestLexerBracketsSuppressNewlines(t *testing.T) {
	assert.Equal(t, []string{
		"IDENTIFIER", "'('", "INT_LITERAL", "','", "INT_LITERAL", "')'", "NEWLINE", "EOF",
	}, kinds(t, "f(1,\n      2)\n"))
	assert.Equal(t, []string{
		"IDENTIFIER", "'='", "INT_LITERAL", "'+'", "INT_LITERAL", "NEWLINE", "EOF",
	}, kinds(t, "x = 1 + \\\n  2\n"))
}

func TestLexerOperators(t *testing.T) {
	assert.Equal(t, []string{
		"'->'", "':='", "'...'", "'=='", "'!='", "'<='", "'>='", "'**'", "'|='", "'+='", "'@'", "'|'", "NEWLINE", "EOF",
	}, kinds(t, "-> := ... == != <= >= ** |= += @ |"))
}

func TestLexerLiterals(t *testing.T) {
	lexer := NewLexer(strings.NewReader(`0x1F 1_000 2.5 1e3 b'ab' "a\nb" '''x'y''' r'\d'`))
	tok := lexer.Next()
	assert.Equal(t, int64(31), tok.IntValue)
	tok = lexer.Next()
	assert.Equal(t, int64(1000), tok.IntValue)
	tok = lexer.Next()
	assert.Equal(t, FLOAT_LITERAL, tok.Kind)
	assert.Equal(t, 2.5, tok.FloatValue)
	tok = lexer.Next()
	assert.Equal(t, 1000.0, tok.FloatValue)
	tok = lexer.Next()
	assert.Equal(t, BYTES_LITERAL, tok.Kind)
	assert.Equal(t, "ab", tok.StrValue)
	tok = lexer.Next()
	assert.Equal(t, "a\nb", tok.StrValue)
	tok = lexer.Next()
	assert.Equal(t, "x'y", tok.StrValue)
	tok = lexer.Next()
	assert.Equal(t, `\d`, tok.StrValue)
	require.NoError(t, lexer.LastError())
}

func TestLexerBigIntegers(t *testing.T) {
	tests := []struct {
		name  string
		input string
		big   bool
		value int64
	}{
		{"max int64", "9223372036854775807", false, 9223372036854775807},
		{"past int64", "9223372036854775808", true, 0},
		{"long decimal", "123_456_789_012_345_678_901_234_567_890", true, 0},
		{"long hex", "0xFFFF_FFFF_FFFF_FFFF_FF", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer(strings.NewReader(tt.input))
			tok := lexer.Next()
			assert.Equal(t, INT_LITERAL, tok.Kind)
			assert.Equal(t, tt.big, tok.IsBigInt)
			assert.Equal(t, tt.value, tok.IntValue)
			require.NoError(t, lexer.LastError())
		})
	}
}

func TestLexerKeywordsAndNormalization(t *testing.T) {
	lexer := NewLexer(strings.NewReader("None is not ﬁle"))
	assert.Equal(t, NONE, lexer.Next().Kind)
	assert.Equal(t, IS, lexer.Next().Kind)
	assert.Equal(t, NOT, lexer.Next().Kind)
	tok := lexer.Next()
	assert.Equal(t, IDENTIFIER, tok.Kind)
	// The ligature normalizes to plain letters.
	assert.Equal(t, "file", tok.StrValue)
}

func TestLexerErrors(t *testing.T) {
	lexer := NewLexer(strings.NewReader("x = 'abc\n"))
	for tok := lexer.Next(); tok.Kind != EOF; tok = lexer.Next() {
	}
	require.Error(t, lexer.LastError())
	assert.Contains(t, lexer.LastError().Error(), "unterminated string")

	lexer = NewLexer(strings.NewReader("if x:\n        a\n    b\n"))
	for tok := lexer.Next(); tok.Kind != EOF; tok = lexer.Next() {
	}
	require.Error(t, lexer.LastError())
	assert.Contains(t, lexer.LastError().Error(), "unindent")
}
