package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

const eof = -1

// Lexer turns source text into tokens, synthesizing NEWLINE, INDENT and
// DEDENT from line structure.
type Lexer struct {
	lookaheadRunes  []rune
	lookaheadWidths []int
	reader          *bufio.Reader
	buf             bytes.Buffer // Temporary buffer for scanned text
	pos             int          // Current byte offset from the beginning of the input
	lastError       error

	// Position tracking for the current token
	tokenStartPos  int
	tokenStartLine int
	tokenStartCol  int

	// Current line and column (rune-based) in the input
	line int
	col  int

	indentStack []int
	pending     []Token
	parenDepth  int
	atLineStart bool
	lastKind    int
	done        bool
}

// NewLexer creates a new lexer instance
func NewLexer(r io.Reader) *Lexer {
	return &Lexer{
		reader:      bufio.NewReader(r),
		line:        1,
		col:         1,
		indentStack: []int{0},
		atLineStart: true,
		lastKind:    NEWLINE,
	}
}

// Error records a lexing error at the current token.
func (l *Lexer) Error(s string) {
	l.lastError = &ParseError{Loc: Location{Line: l.tokenStartLine, Col: l.tokenStartCol}, Msg: s}
}

// LastError returns the most recent error.
func (l *Lexer) LastError() error { return l.lastError }

// Position returns the line and column of the most recent token.
func (l *Lexer) Position() (int, int) { return l.tokenStartLine, l.tokenStartCol }

// --- Rune Reading Helpers (with line/col tracking) ---
func (l *Lexer) read() (r rune, width int) {
	if l.peek() == eof {
		return eof, 0
	}
	r, width = l.lookaheadRunes[0], l.lookaheadWidths[0]
	l.lookaheadRunes, l.lookaheadWidths = l.lookaheadRunes[1:], l.lookaheadWidths[1:]
	l.updatePosition(r, width)
	return r, width
}

func (l *Lexer) updatePosition(r rune, width int) {
	l.pos += width
	if r == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
}

func (l *Lexer) peekN(nthchar int) rune {
	l.ensureLookAhead(nthchar + 1)
	if nthchar >= len(l.lookaheadRunes) {
		return eof
	}
	return l.lookaheadRunes[nthchar]
}

func (l *Lexer) peek() rune {
	return l.peekN(0)
}

func (l *Lexer) ensureLookAhead(numchars int) int {
	for len(l.lookaheadRunes) < numchars {
		r, width, err := l.reader.ReadRune()
		if err != nil {
			break
		}
		l.lookaheadRunes = append(l.lookaheadRunes, r)
		l.lookaheadWidths = append(l.lookaheadWidths, width)
	}
	return len(l.lookaheadRunes)
}

func (l *Lexer) hasPrefix(prefix string, consume bool) bool {
	runes := []rune(prefix)
	if l.ensureLookAhead(len(runes)) < len(runes) {
		return false
	}
	for i, r := range runes {
		if l.lookaheadRunes[i] != r {
			return false
		}
	}
	if consume {
		for range runes {
			l.read()
		}
	}
	return true
}

func (l *Lexer) readTill(stop rune, skip bool) (foundeof bool) {
	for {
		r := l.peek()
		if r == eof {
			return true
		}
		if r == stop {
			if skip {
				l.read()
			}
			return false
		}
		l.read()
	}
}

func (l *Lexer) startToken() {
	l.tokenStartPos = l.pos
	l.tokenStartLine = l.line
	l.tokenStartCol = l.col
}

func (l *Lexer) makeToken(kind int, text string) Token {
	return Token{Kind: kind, Text: text, StartPos: l.tokenStartPos, EndPos: l.pos, Line: l.tokenStartLine, Col: l.tokenStartCol}
}

func (l *Lexer) emit(tok Token) Token {
	l.lastKind = tok.Kind
	return tok
}

// Next returns the next token.
func (l *Lexer) Next() Token {
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return l.emit(tok)
	}
	for {
		if l.atLineStart && l.parenDepth == 0 {
			if tok, ok := l.scanIndentation(); ok {
				return l.emit(tok)
			}
			if l.atLineStart {
				continue
			}
		}
		l.skipInlineWhitespace()
		l.startToken()
		r := l.peek()
		if r == eof {
			return l.emit(l.finish())
		}
		if r == '\n' {
			l.read()
			if l.parenDepth > 0 {
				continue
			}
			l.atLineStart = true
			if l.lastKind == NEWLINE || l.lastKind == INDENT || l.lastKind == DEDENT {
				continue
			}
			return l.emit(l.makeToken(NEWLINE, "\n"))
		}
		return l.emit(l.scanToken(r))
	}
}

// scanIndentation measures the indentation of a logical line. Blank and
// comment-only lines are consumed without producing tokens.
func (l *Lexer) scanIndentation() (Token, bool) {
	width := 0
	for {
		r := l.peek()
		if r == ' ' {
			width++
		} else if r == '\t' {
			width += 8 - width%8
		} else {
			break
		}
		l.read()
	}
	r := l.peek()
	if r == '#' {
		l.readTill('\n', false)
		r = l.peek()
	}
	if r == '\n' || r == '\r' {
		l.read()
		return Token{}, false
	}
	l.atLineStart = false
	if r == eof {
		return Token{}, false
	}

	l.startToken()
	top := l.indentStack[len(l.indentStack)-1]
	if width > top {
		l.indentStack = append(l.indentStack, width)
		return l.makeToken(INDENT, ""), true
	}
	if width < top {
		for len(l.indentStack) > 1 && l.indentStack[len(l.indentStack)-1] > width {
			l.indentStack = l.indentStack[:len(l.indentStack)-1]
			l.pending = append(l.pending, l.makeToken(DEDENT, ""))
		}
		if l.indentStack[len(l.indentStack)-1] != width {
			l.Error("unindent does not match any outer indentation level")
		}
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok, true
	}
	return Token{}, false
}

func (l *Lexer) skipInlineWhitespace() {
	for {
		r := l.peek()
		switch {
		case r == ' ' || r == '\t' || r == '\r' || r == '\f':
			l.read()
		case r == '#':
			l.readTill('\n', false)
		case r == '\\' && (l.peekN(1) == '\n' || (l.peekN(1) == '\r' && l.peekN(2) == '\n')):
			l.read()
			l.readTill('\n', true)
		default:
			return
		}
	}
}

func (l *Lexer) finish() Token {
	if !l.done {
		l.done = true
		if l.lastKind != NEWLINE && l.lastKind != DEDENT && l.lastKind != INDENT {
			l.pending = append(l.pending, l.makeToken(NEWLINE, ""))
		}
		for len(l.indentStack) > 1 {
			l.indentStack = l.indentStack[:len(l.indentStack)-1]
			l.pending = append(l.pending, l.makeToken(DEDENT, ""))
		}
	}
	if len(l.pending) > 0 {
		tok := l.pending[0]
		l.pending = l.pending[1:]
		return tok
	}
	return l.makeToken(EOF, "")
}

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
func isIdentChar(r rune) bool  { return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) }

func (l *Lexer) scanToken(r rune) Token {
	if isIdentStart(r) {
		if prefix, ok := l.stringPrefix(); ok {
			return l.scanString(prefix)
		}
		return l.scanIdentifierOrKeyword()
	}
	if unicode.IsDigit(r) || (r == '.' && unicode.IsDigit(l.peekN(1))) {
		return l.scanNumber()
	}
	if r == '"' || r == '\'' {
		return l.scanString("")
	}
	return l.scanOperator(r)
}

// stringPrefix detects prefixes such as b, r, rb or f directly followed by
// a quote.
func (l *Lexer) stringPrefix() (string, bool) {
	for n := 1; n <= 2; n++ {
		q := l.peekN(n)
		if q != '"' && q != '\'' {
			continue
		}
		var sb strings.Builder
		for i := 0; i < n; i++ {
			sb.WriteRune(unicode.ToLower(l.peekN(i)))
		}
		switch sb.String() {
		case "b", "r", "u", "f", "rb", "br", "fr", "rf":
			return sb.String(), true
		}
		return "", false
	}
	return "", false
}

func (l *Lexer) scanIdentifierOrKeyword() Token {
	l.buf.Reset()
	for r := l.peek(); r != eof && isIdentChar(r); r = l.peek() {
		l.read()
		l.buf.WriteRune(r)
	}
	text := norm.NFKC.String(l.buf.String())
	if kw, ok := keywords[text]; ok {
		return l.makeToken(kw, text)
	}
	tok := l.makeToken(IDENTIFIER, text)
	tok.StrValue = text
	return tok
}

func (l *Lexer) scanNumber() Token {
	l.buf.Reset()
	if l.peek() == '0' && (l.peekN(1) == 'x' || l.peekN(1) == 'X') {
		l.read()
		l.read()
		for r := l.peek(); r != eof && (unicode.Is(unicode.ASCII_Hex_Digit, r) || r == '_'); r = l.peek() {
			l.read()
			if r != '_' {
				l.buf.WriteRune(r)
			}
		}
		tok := l.makeToken(INT_LITERAL, "0x"+l.buf.String())
		l.setIntValue(&tok, l.buf.String(), 16)
		return tok
	}

	isFloat := false
	for r := l.peek(); r != eof; r = l.peek() {
		if unicode.IsDigit(r) || r == '_' {
			l.read()
			if r != '_' {
				l.buf.WriteRune(r)
			}
		} else if r == '.' && !isFloat {
			isFloat = true
			l.read()
			l.buf.WriteRune(r)
		} else if (r == 'e' || r == 'E') && (unicode.IsDigit(l.peekN(1)) || ((l.peekN(1) == '-' || l.peekN(1) == '+') && unicode.IsDigit(l.peekN(2)))) {
			isFloat = true
			l.read()
			l.buf.WriteRune(r)
			sign, _ := l.read()
			l.buf.WriteRune(sign)
		} else {
			break
		}
	}
	text := l.buf.String()
	if isFloat {
		tok := l.makeToken(FLOAT_LITERAL, text)
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			l.Error(fmt.Sprintf("invalid float: %s", text))
		}
		tok.FloatValue = v
		return tok
	}
	tok := l.makeToken(INT_LITERAL, text)
	l.setIntValue(&tok, text, 10)
	return tok
}

// setIntValue decodes digits into tok. Values beyond int64 are valid
// Python and only mark the token as big.
func (l *Lexer) setIntValue(tok *Token, digits string, base int) {
	v, err := strconv.ParseInt(digits, base, 64)
	switch {
	case err == nil:
		tok.IntValue = v
	case errors.Is(err, strconv.ErrRange):
		tok.IsBigInt = true
	default:
		l.Error(fmt.Sprintf("invalid integer: %s", tok.Text))
	}
}

func (l *Lexer) scanString(prefix string) Token {
	for range prefix {
		l.read()
	}
	isRaw := strings.Contains(prefix, "r")
	isBytes := strings.Contains(prefix, "b")
	quote := l.peek()
	triple := string([]rune{quote, quote, quote})
	isTriple := l.hasPrefix(triple, true)
	if !isTriple {
		l.read()
	}

	l.buf.Reset()
	for {
		if isTriple && l.hasPrefix(triple, true) {
			break
		}
		r, _ := l.read()
		if r == eof || (!isTriple && r == '\n') {
			l.Error("unterminated string literal")
			break
		}
		if !isTriple && r == quote {
			break
		}
		if r == '\\' && !isRaw {
			esc, _ := l.read()
			switch esc {
			case 'n':
				l.buf.WriteRune('\n')
			case 't':
				l.buf.WriteRune('\t')
			case 'r':
				l.buf.WriteRune('\r')
			case '0':
				l.buf.WriteRune(0)
			case '\\', '\'', '"':
				l.buf.WriteRune(esc)
			case '\n':
			case eof:
				l.Error("unterminated string literal after escape")
			default:
				l.buf.WriteRune('\\')
				l.buf.WriteRune(esc)
			}
			continue
		}
		l.buf.WriteRune(r)
	}

	kind := STRING_LITERAL
	if isBytes {
		kind = BYTES_LITERAL
	}
	tok := l.makeToken(kind, "")
	tok.StrValue = l.buf.String()
	tok.Text = strconv.Quote(tok.StrValue)
	return tok
}

var threeCharOps = map[string]int{"...": ELLIPSIS}

var twoCharOps = map[string]int{
	"==": EQ, "!=": NEQ, "<=": LTE, ">=": GTE, "->": ARROW, ":=": WALRUS,
	"**": POWER, "+=": PLUS_ASSIGN, "-=": MINUS_ASSIGN, "*=": MUL_ASSIGN, "|=": PIPE_ASSIGN,
}

var oneCharOps = map[rune]int{
	'(': LPAREN, ')': RPAREN, '[': LBRACKET, ']': RBRACKET, '{': LBRACE, '}': RBRACE,
	',': COMMA, ':': COLON, '.': DOT, ';': SEMICOLON, '=': ASSIGN, '@': AT,
	'<': LT, '>': GT, '+': PLUS, '-': MINUS, '*': MUL, '/': DIV, '%': MOD,
	'|': PIPE, '&': AMP,
}

func (l *Lexer) scanOperator(r rune) Token {
	for text, kind := range threeCharOps {
		if l.hasPrefix(text, true) {
			return l.makeToken(kind, text)
		}
	}
	if r2 := l.peekN(1); r2 != eof {
		text := string([]rune{r, r2})
		if kind, ok := twoCharOps[text]; ok {
			l.read()
			l.read()
			return l.makeToken(kind, text)
		}
	}
	l.read()
	kind, ok := oneCharOps[r]
	if !ok {
		l.Error(fmt.Sprintf("unexpected character %q", r))
		return l.Next()
	}
	switch kind {
	case LPAREN, LBRACKET, LBRACE:
		l.parenDepth++
	case RPAREN, RBRACKET, RBRACE:
		if l.parenDepth > 0 {
			l.parenDepth--
		}
	}
	return l.makeToken(kind, string(r))
}
