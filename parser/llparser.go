package parser

import (
	"fmt"
	"io"
	"strings"

	gfn "github.com/panyam/goutils/fn"
	"github.com/panyam/pynarrow/decl"
)

// LLParser is a recursive descent parser over the Lexer token stream.
type LLParser struct {
	lexer   *Lexer
	peeked  *Token
	lastEnd int

	PanicOnError bool
	Errors       []error
}

func NewLLParser(lexer *Lexer) *LLParser {
	return &LLParser{lexer: lexer}
}

// Parse reads a whole module and finalizes its tree.
func Parse(r io.Reader, name string) (*decl.Module, error) {
	p := NewLLParser(NewLexer(r))
	mod, err := p.ParseModule(name)
	if err != nil {
		return nil, err
	}
	decl.Finalize(mod)
	return mod, nil
}

// ParseString is Parse over a string.
func ParseString(src, name string) (*decl.Module, error) {
	return Parse(strings.NewReader(src), name)
}

// ParseExpression parses a single (possibly tuple) expression.
func ParseExpression(src string) (decl.Expr, error) {
	p := NewLLParser(NewLexer(strings.NewReader(src)))
	out, err := p.ParseTestList()
	if err != nil {
		return nil, err
	}
	for p.PeekToken() == NEWLINE {
		p.Advance()
	}
	if _, err := p.Expect(EOF); err != nil {
		return nil, err
	}
	if err := p.lexer.LastError(); err != nil {
		return nil, err
	}
	decl.Finalize(out)
	return out, nil
}

func (p *LLParser) Errorf(format string, args ...any) error {
	s := fmt.Sprintf(format, args...)
	p.lexer.Error(s)
	p.Errors = append(p.Errors, p.lexer.lastError)
	if p.PanicOnError {
		panic(p.lexer.lastError)
	}
	return p.lexer.lastError
}

func (p *LLParser) Advance() Token {
	p.PeekToken()
	tok := *p.peeked
	p.peeked = nil
	p.lastEnd = tok.EndPos
	return tok
}

func (p *LLParser) PeekToken() int {
	if p.peeked == nil {
		tok := p.lexer.Next()
		p.peeked = &tok
	}
	return p.peeked.Kind
}

func (p *LLParser) peekTok() Token {
	p.PeekToken()
	return *p.peeked
}

// Expect checks if the current peeked token is one of the expected tokens.
// It does NOT advance.
func (p *LLParser) Expect(tokensIn ...int) (foundToken int, err error) {
	peekedToken := p.PeekToken()
	for _, tok := range tokensIn {
		if tok == peekedToken {
			return tok, nil
		}
	}
	var errMsg string
	if len(tokensIn) == 1 {
		errMsg = fmt.Sprintf("expected %s, found: %s", TokenString(tokensIn[0]), TokenString(peekedToken))
	} else {
		expectedStrings := gfn.Map(tokensIn, func(t int) string { return TokenString(t) })
		errMsg = fmt.Sprintf("expected one of: [%s], found: %s", strings.Join(expectedStrings, ", "), TokenString(peekedToken))
	}
	if text := p.peeked.Text; text != "" && peekedToken != NEWLINE {
		errMsg = fmt.Sprintf("%s (%s)", errMsg, text)
	}
	return -1, p.Errorf("%s", errMsg)
}

// AdvanceIf expects one of the given tokens and advances if found.
func (p *LLParser) AdvanceIf(tokensIn ...int) (tok Token, err error) {
	if _, err = p.Expect(tokensIn...); err != nil {
		return tok, err
	}
	return p.Advance(), nil
}

func tokenInfo(tok Token) decl.NodeInfo {
	return decl.NodeInfo{StartPos: tok.StartPos, StopPos: tok.EndPos, Line: tok.Line, Col: tok.Col}
}

// span covers from the start of tok to the end of the last consumed token.
func (p *LLParser) span(tok Token) decl.NodeInfo {
	info := tokenInfo(tok)
	info.StopPos = p.lastEnd
	return info
}

func (p *LLParser) exprBase(tok Token) decl.ExprBase { return decl.ExprBase{NodeInfo: p.span(tok)} }
func (p *LLParser) stmtBase(tok Token) decl.StmtBase { return decl.StmtBase{NodeInfo: p.span(tok)} }

func (p *LLParser) ParseIdentifier() (*decl.NameExpr, error) {
	tok, err := p.AdvanceIf(IDENTIFIER)
	if err != nil {
		return nil, err
	}
	return &decl.NameExpr{ExprBase: decl.ExprBase{NodeInfo: tokenInfo(tok)}, Name: tok.StrValue}, nil
}

// ParseModule parses statements until EOF.
func (p *LLParser) ParseModule(name string) (*decl.Module, error) {
	mod := &decl.Module{Name: name}
	for {
		switch p.PeekToken() {
		case EOF:
			mod.StopPos = p.lastEnd
			mod.Line, mod.Col = 1, 1
			return mod, p.lexer.LastError()
		case NEWLINE, SEMICOLON:
			p.Advance()
		case INDENT:
			return nil, p.Errorf("unexpected indent")
		default:
			stmts, err := p.ParseStatement()
			if err != nil {
				return nil, err
			}
			if err := p.lexer.LastError(); err != nil {
				return nil, err
			}
			mod.Body = append(mod.Body, stmts...)
		}
	}
}

func one(s decl.Stmt, err error) ([]decl.Stmt, error) {
	if err != nil {
		return nil, err
	}
	return []decl.Stmt{s}, nil
}

// ParseStatement parses a compound statement or a line of simple ones.
func (p *LLParser) ParseStatement() ([]decl.Stmt, error) {
	switch p.PeekToken() {
	case IF:
		return one(p.ParseIfStmt())
	case WHILE:
		return one(p.ParseWhileStmt())
	case FOR:
		return one(p.ParseForStmt())
	case DEF:
		return one(p.ParseFunctionDef(nil, p.peekTok()))
	case CLASS:
		return one(p.ParseClassDef(nil, p.peekTok()))
	case AT:
		return one(p.ParseDecorated())
	}
	return p.ParseSimpleStatements()
}

func (p *LLParser) ParseSimpleStatements() (out []decl.Stmt, err error) {
	for {
		s, err := p.ParseSmallStatement()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
		if p.PeekToken() != SEMICOLON {
			break
		}
		p.Advance()
		if k := p.PeekToken(); k == NEWLINE || k == EOF {
			break
		}
	}
	if p.PeekToken() == EOF {
		return out, nil
	}
	if _, err := p.AdvanceIf(NEWLINE); err != nil {
		return nil, err
	}
	return out, nil
}

// ParseBlock parses ':' followed by an indented suite or same-line
// statements.
func (p *LLParser) ParseBlock() ([]decl.Stmt, error) {
	if _, err := p.AdvanceIf(COLON); err != nil {
		return nil, err
	}
	if p.PeekToken() != NEWLINE {
		return p.ParseSimpleStatements()
	}
	p.Advance()
	if _, err := p.AdvanceIf(INDENT); err != nil {
		return nil, err
	}
	var body []decl.Stmt
	for p.PeekToken() != DEDENT && p.PeekToken() != EOF {
		if p.PeekToken() == NEWLINE {
			p.Advance()
			continue
		}
		stmts, err := p.ParseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmts...)
	}
	if _, err := p.AdvanceIf(DEDENT); err != nil {
		return nil, err
	}
	return body, nil
}

func (p *LLParser) ParseIfStmt() (*decl.IfStmt, error) {
	tok := p.Advance() // if or elif
	test, err := p.ParseNamedExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.ParseBlock()
	if err != nil {
		return nil, err
	}
	out := &decl.IfStmt{Test: test, Body: body, IsElif: tok.Kind == ELIF}
	switch p.PeekToken() {
	case ELIF:
		elif, err := p.ParseIfStmt()
		if err != nil {
			return nil, err
		}
		out.Else = []decl.Stmt{elif}
	case ELSE:
		p.Advance()
		if out.Else, err = p.ParseBlock(); err != nil {
			return nil, err
		}
	}
	out.StmtBase = p.stmtBase(tok)
	return out, nil
}

func (p *LLParser) ParseWhileStmt() (*decl.WhileStmt, error) {
	tok := p.Advance()
	test, err := p.ParseNamedExpr()
	if err != nil {
		return nil, err
	}
	out := &decl.WhileStmt{Test: test}
	if out.Body, err = p.ParseBlock(); err != nil {
		return nil, err
	}
	if p.PeekToken() == ELSE {
		p.Advance()
		if out.Else, err = p.ParseBlock(); err != nil {
			return nil, err
		}
	}
	out.StmtBase = p.stmtBase(tok)
	return out, nil
}

func (p *LLParser) ParseForStmt() (*decl.ForStmt, error) {
	tok := p.Advance()
	target, err := p.parseTargetList()
	if err != nil {
		return nil, err
	}
	if _, err := p.AdvanceIf(IN); err != nil {
		return nil, err
	}
	iter, err := p.ParseTestList()
	if err != nil {
		return nil, err
	}
	out := &decl.ForStmt{Target: target, Iter: iter}
	if out.Body, err = p.ParseBlock(); err != nil {
		return nil, err
	}
	if p.PeekToken() == ELSE {
		p.Advance()
		if out.Else, err = p.ParseBlock(); err != nil {
			return nil, err
		}
	}
	out.StmtBase = p.stmtBase(tok)
	return out, nil
}

// parseTargetList parses loop targets below the comparison level so that
// the `in` keyword is left for the for statement.
func (p *LLParser) parseTargetList() (decl.Expr, error) {
	start := p.peekTok()
	first, err := p.ParseBitOrExpr()
	if err != nil || p.PeekToken() != COMMA {
		return first, err
	}
	elems := []decl.Expr{first}
	for p.PeekToken() == COMMA {
		p.Advance()
		if p.PeekToken() == IN {
			break
		}
		e, err := p.ParseBitOrExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return &decl.TupleExpr{ExprBase: p.exprBase(start), Elements: elems}, nil
}

func (p *LLParser) ParseDecorated() (decl.Stmt, error) {
	start := p.peekTok()
	var decorators []decl.Expr
	for p.PeekToken() == AT {
		p.Advance()
		d, err := p.ParseNamedExpr()
		if err != nil {
			return nil, err
		}
		decorators = append(decorators, d)
		if _, err := p.AdvanceIf(NEWLINE); err != nil {
			return nil, err
		}
	}
	kind, err := p.Expect(DEF, CLASS)
	if err != nil {
		return nil, err
	}
	if kind == DEF {
		return p.ParseFunctionDef(decorators, start)
	}
	return p.ParseClassDef(decorators, start)
}

func (p *LLParser) ParseFunctionDef(decorators []decl.Expr, start Token) (*decl.FunctionDef, error) {
	if _, err := p.AdvanceIf(DEF); err != nil {
		return nil, err
	}
	name, err := p.ParseIdentifier()
	if err != nil {
		return nil, err
	}
	out := &decl.FunctionDef{Name: name, Decorators: decorators}
	if out.Params, err = p.parseParameters(); err != nil {
		return nil, err
	}
	if p.PeekToken() == ARROW {
		p.Advance()
		if out.Returns, err = p.ParseTest(); err != nil {
			return nil, err
		}
	}
	if out.Body, err = p.ParseBlock(); err != nil {
		return nil, err
	}
	out.StmtBase = p.stmtBase(start)
	return out, nil
}

func (p *LLParser) parseParameters() (params []*decl.Parameter, err error) {
	if _, err = p.AdvanceIf(LPAREN); err != nil {
		return nil, err
	}
	for p.PeekToken() != RPAREN {
		tok := p.peekTok()
		category := decl.ParamSimple
		switch tok.Kind {
		case MUL:
			p.Advance()
			if k := p.PeekToken(); k == COMMA || k == RPAREN {
				// Keyword-only marker.
				if k == COMMA {
					p.Advance()
				}
				continue
			}
			category = decl.ParamArgsList
		case POWER:
			p.Advance()
			category = decl.ParamKwargsDict
		case DIV:
			// Positional-only marker.
			p.Advance()
			if p.PeekToken() == COMMA {
				p.Advance()
			}
			continue
		}
		name, err := p.ParseIdentifier()
		if err != nil {
			return nil, err
		}
		param := &decl.Parameter{Name: name, Category: category}
		if p.PeekToken() == COLON {
			p.Advance()
			if param.Annotation, err = p.ParseTest(); err != nil {
				return nil, err
			}
		}
		if p.PeekToken() == ASSIGN {
			p.Advance()
			if param.Default, err = p.ParseTest(); err != nil {
				return nil, err
			}
		}
		param.NodeInfo = p.span(tok)
		params = append(params, param)
		if p.PeekToken() != COMMA {
			break
		}
		p.Advance()
	}
	if _, err = p.AdvanceIf(RPAREN); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *LLParser) ParseClassDef(decorators []decl.Expr, start Token) (*decl.ClassDef, error) {
	if _, err := p.AdvanceIf(CLASS); err != nil {
		return nil, err
	}
	name, err := p.ParseIdentifier()
	if err != nil {
		return nil, err
	}
	out := &decl.ClassDef{Name: name, Decorators: decorators}
	if p.PeekToken() == LPAREN {
		p.Advance()
		if out.Arguments, err = p.parseArguments(RPAREN); err != nil {
			return nil, err
		}
		if _, err = p.AdvanceIf(RPAREN); err != nil {
			return nil, err
		}
	}
	if out.Body, err = p.ParseBlock(); err != nil {
		return nil, err
	}
	out.StmtBase = p.stmtBase(start)
	return out, nil
}

func (p *LLParser) atStatementEnd() bool {
	switch p.PeekToken() {
	case NEWLINE, SEMICOLON, EOF:
		return true
	}
	return false
}

var augAssignOps = map[int]decl.Operator{
	PLUS_ASSIGN:  decl.OpAdd,
	MINUS_ASSIGN: decl.OpSubtract,
	MUL_ASSIGN:   decl.OpMultiply,
	PIPE_ASSIGN:  decl.OpBitwiseOr,
}

func (p *LLParser) ParseSmallStatement() (decl.Stmt, error) {
	tok := p.peekTok()
	switch tok.Kind {
	case PASS:
		p.Advance()
		return &decl.PassStmt{StmtBase: p.stmtBase(tok)}, nil
	case BREAK:
		p.Advance()
		return &decl.BreakStmt{StmtBase: p.stmtBase(tok)}, nil
	case CONTINUE:
		p.Advance()
		return &decl.ContinueStmt{StmtBase: p.stmtBase(tok)}, nil
	case RETURN:
		p.Advance()
		out := &decl.ReturnStmt{}
		if !p.atStatementEnd() {
			value, err := p.ParseTestList()
			if err != nil {
				return nil, err
			}
			out.Value = value
		}
		out.StmtBase = p.stmtBase(tok)
		return out, nil
	case ASSERT:
		p.Advance()
		test, err := p.ParseNamedExpr()
		if err != nil {
			return nil, err
		}
		out := &decl.AssertStmt{Test: test}
		if p.PeekToken() == COMMA {
			p.Advance()
			if out.Message, err = p.ParseTest(); err != nil {
				return nil, err
			}
		}
		out.StmtBase = p.stmtBase(tok)
		return out, nil
	case IMPORT, FROM:
		return p.ParseImport()
	}

	target, err := p.ParseTestList()
	if err != nil {
		return nil, err
	}
	switch k := p.PeekToken(); k {
	case COLON:
		p.Advance()
		annotation, err := p.ParseTest()
		if err != nil {
			return nil, err
		}
		out := &decl.AssignStmt{Target: target, Annotation: annotation}
		if p.PeekToken() == ASSIGN {
			p.Advance()
			if out.Value, err = p.ParseTestList(); err != nil {
				return nil, err
			}
		}
		out.StmtBase = p.stmtBase(tok)
		return out, nil
	case ASSIGN:
		p.Advance()
		value, err := p.ParseTestList()
		if err != nil {
			return nil, err
		}
		if p.PeekToken() == ASSIGN {
			return nil, p.Errorf("chained assignment is not supported")
		}
		return &decl.AssignStmt{StmtBase: p.stmtBase(tok), Target: target, Value: value}, nil
	case PLUS_ASSIGN, MINUS_ASSIGN, MUL_ASSIGN, PIPE_ASSIGN:
		p.Advance()
		value, err := p.ParseTestList()
		if err != nil {
			return nil, err
		}
		return &decl.AugAssignStmt{StmtBase: p.stmtBase(tok), Target: target, Operator: augAssignOps[k], Value: value}, nil
	}
	return &decl.ExprStmt{StmtBase: p.stmtBase(tok), Expr: target}, nil
}

func (p *LLParser) parseDottedName() (string, error) {
	var parts []string
	prefix := ""
	for p.PeekToken() == DOT || p.PeekToken() == ELLIPSIS {
		if p.Advance().Kind == DOT {
			prefix += "."
		} else {
			prefix += "..."
		}
	}
	for {
		name, err := p.ParseIdentifier()
		if err != nil {
			return "", err
		}
		parts = append(parts, name.Name)
		if p.PeekToken() != DOT {
			break
		}
		p.Advance()
	}
	return prefix + strings.Join(parts, "."), nil
}

// ParseImport handles `import m [as a]` and `from m import x [as y], ...`.
func (p *LLParser) ParseImport() (decl.Stmt, error) {
	tok := p.Advance()
	module, err := p.parseDottedName()
	if err != nil {
		return nil, err
	}
	out := &decl.ImportStmt{Module: module}
	if tok.Kind == IMPORT {
		if p.PeekToken() == AS {
			p.Advance()
			alias, err := p.ParseIdentifier()
			if err != nil {
				return nil, err
			}
			out.Aliases = []string{alias.Name}
		}
		out.StmtBase = p.stmtBase(tok)
		return out, nil
	}

	if _, err := p.AdvanceIf(IMPORT); err != nil {
		return nil, err
	}
	if p.PeekToken() == MUL {
		p.Advance()
		out.Names = []string{"*"}
		out.StmtBase = p.stmtBase(tok)
		return out, nil
	}
	parens := p.PeekToken() == LPAREN
	if parens {
		p.Advance()
	}
	for {
		name, err := p.ParseIdentifier()
		if err != nil {
			return nil, err
		}
		alias := ""
		if p.PeekToken() == AS {
			p.Advance()
			a, err := p.ParseIdentifier()
			if err != nil {
				return nil, err
			}
			alias = a.Name
		}
		out.Names = append(out.Names, name.Name)
		out.Aliases = append(out.Aliases, alias)
		if p.PeekToken() != COMMA {
			break
		}
		p.Advance()
		if parens && p.PeekToken() == RPAREN {
			break
		}
	}
	if parens {
		if _, err := p.AdvanceIf(RPAREN); err != nil {
			return nil, err
		}
	}
	out.StmtBase = p.stmtBase(tok)
	return out, nil
}

func startsExpression(kind int) bool {
	switch kind {
	case IDENTIFIER, INT_LITERAL, FLOAT_LITERAL, STRING_LITERAL, BYTES_LITERAL,
		NONE, TRUE, FALSE, ELLIPSIS, LPAREN, LBRACKET, LBRACE, MINUS, PLUS, NOT:
		return true
	}
	return false
}

// ParseTestList parses comma separated expressions, producing a tuple when
// a comma is present.
func (p *LLParser) ParseTestList() (decl.Expr, error) {
	start := p.peekTok()
	first, err := p.ParseNamedExpr()
	if err != nil || p.PeekToken() != COMMA {
		return first, err
	}
	elems := []decl.Expr{first}
	for p.PeekToken() == COMMA {
		p.Advance()
		if !startsExpression(p.PeekToken()) {
			break
		}
		e, err := p.ParseNamedExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	return &decl.TupleExpr{ExprBase: p.exprBase(start), Elements: elems}, nil
}

// ParseNamedExpr parses a test optionally followed by `:=`.
func (p *LLParser) ParseNamedExpr() (decl.Expr, error) {
	start := p.peekTok()
	e, err := p.ParseTest()
	if err != nil || p.PeekToken() != WALRUS {
		return e, err
	}
	name, ok := e.(*decl.NameExpr)
	if !ok {
		return nil, p.Errorf("cannot use assignment expression with %s", e)
	}
	p.Advance()
	value, err := p.ParseTest()
	if err != nil {
		return nil, err
	}
	return &decl.AssignmentExpr{ExprBase: p.exprBase(start), Name: name, Value: value}, nil
}

func (p *LLParser) ParseTest() (decl.Expr, error) {
	return p.ParseOrExpr()
}

func (p *LLParser) parseBinaryExpr(operand func() (decl.Expr, error), operators map[int]decl.Operator) (decl.Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := operators[p.PeekToken()]
		if !ok {
			return left, nil
		}
		p.Advance()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &decl.BinaryExpr{ExprBase: decl.ExprBase{NodeInfo: decl.NodeInfoFrom(left, p.lastEnd)}, Left: left, Operator: op, Right: right}
	}
}

func (p *LLParser) ParseOrExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseAndExpr, map[int]decl.Operator{OR: decl.OpOr})
}

func (p *LLParser) ParseAndExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseNotExpr, map[int]decl.Operator{AND: decl.OpAnd})
}

func (p *LLParser) ParseNotExpr() (decl.Expr, error) {
	if p.PeekToken() != NOT {
		return p.ParseComparison()
	}
	tok := p.Advance()
	operand, err := p.ParseNotExpr()
	if err != nil {
		return nil, err
	}
	return &decl.UnaryExpr{ExprBase: p.exprBase(tok), Operator: decl.OpNot, Operand: operand}, nil
}

var comparisonOps = map[int]decl.Operator{
	EQ: decl.OpEquals, NEQ: decl.OpNotEquals,
	LT: decl.OpLessThan, LTE: decl.OpLessThanOrEqual,
	GT: decl.OpGreaterThan, GTE: decl.OpGreaterThanOrEqual,
	IN: decl.OpIn,
}

func (p *LLParser) ParseComparison() (decl.Expr, error) {
	left, err := p.ParseBitOrExpr()
	if err != nil {
		return nil, err
	}
	for {
		k := p.PeekToken()
		op, ok := comparisonOps[k]
		switch {
		case ok:
			p.Advance()
		case k == NOT:
			p.Advance()
			if _, err := p.AdvanceIf(IN); err != nil {
				return nil, err
			}
			op = decl.OpNotIn
		case k == IS:
			p.Advance()
			op = decl.OpIs
			if p.PeekToken() == NOT {
				p.Advance()
				op = decl.OpIsNot
			}
		default:
			return left, nil
		}
		right, err := p.ParseBitOrExpr()
		if err != nil {
			return nil, err
		}
		left = &decl.BinaryExpr{ExprBase: decl.ExprBase{NodeInfo: decl.NodeInfoFrom(left, p.lastEnd)}, Left: left, Operator: op, Right: right}
	}
}

func (p *LLParser) ParseBitOrExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseBitAndExpr, map[int]decl.Operator{PIPE: decl.OpBitwiseOr})
}

func (p *LLParser) ParseBitAndExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseArithExpr, map[int]decl.Operator{AMP: decl.OpBitwiseAnd})
}

func (p *LLParser) ParseArithExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseTermExpr, map[int]decl.Operator{PLUS: decl.OpAdd, MINUS: decl.OpSubtract})
}

func (p *LLParser) ParseTermExpr() (decl.Expr, error) {
	return p.parseBinaryExpr(p.ParseFactor, map[int]decl.Operator{MUL: decl.OpMultiply, DIV: decl.OpDivide, MOD: decl.OpMod})
}

func (p *LLParser) ParseFactor() (decl.Expr, error) {
	switch p.PeekToken() {
	case PLUS:
		p.Advance()
		return p.ParseFactor()
	case MINUS:
		tok := p.Advance()
		operand, err := p.ParseFactor()
		if err != nil {
			return nil, err
		}
		return &decl.UnaryExpr{ExprBase: p.exprBase(tok), Operator: decl.OpNegate, Operand: operand}, nil
	}
	return p.ParsePrimary()
}

// ParsePrimary parses an atom followed by calls, subscripts and member
// accesses.
func (p *LLParser) ParsePrimary() (decl.Expr, error) {
	start := p.peekTok()
	e, err := p.ParseAtom()
	if err != nil {
		return nil, err
	}
	for {
		switch p.PeekToken() {
		case LPAREN:
			p.Advance()
			args, err := p.parseArguments(RPAREN)
			if err != nil {
				return nil, err
			}
			if _, err := p.AdvanceIf(RPAREN); err != nil {
				return nil, err
			}
			e = &decl.CallExpr{ExprBase: p.exprBase(start), Callee: e, Args: args}
		case LBRACKET:
			p.Advance()
			var items []decl.Expr
			for p.PeekToken() != RBRACKET {
				item, err := p.ParseNamedExpr()
				if err != nil {
					return nil, err
				}
				items = append(items, item)
				if p.PeekToken() != COMMA {
					break
				}
				p.Advance()
			}
			if _, err := p.AdvanceIf(RBRACKET); err != nil {
				return nil, err
			}
			if len(items) == 0 {
				return nil, p.Errorf("empty subscript")
			}
			e = &decl.IndexExpr{ExprBase: p.exprBase(start), Base: e, Items: items}
		case DOT:
			p.Advance()
			member, err := p.ParseIdentifier()
			if err != nil {
				return nil, err
			}
			e = &decl.MemberAccessExpr{ExprBase: p.exprBase(start), Receiver: e, Member: member}
		default:
			return e, nil
		}
	}
}

func (p *LLParser) parseArguments(closer int) (args []*decl.Argument, err error) {
	for p.PeekToken() != closer {
		tok := p.peekTok()
		arg := &decl.Argument{}
		switch tok.Kind {
		case MUL:
			p.Advance()
			arg.Category = decl.ArgUnpackedList
		case POWER:
			p.Advance()
			arg.Category = decl.ArgUnpackedDict
		}
		value, err := p.ParseNamedExpr()
		if err != nil {
			return nil, err
		}
		if name, ok := value.(*decl.NameExpr); ok && arg.Category == decl.ArgSimple && p.PeekToken() == ASSIGN {
			p.Advance()
			arg.Name = name
			if value, err = p.ParseTest(); err != nil {
				return nil, err
			}
		}
		arg.Value = value
		arg.NodeInfo = p.span(tok)
		args = append(args, arg)
		if p.PeekToken() != COMMA {
			break
		}
		p.Advance()
	}
	return args, nil
}

func (p *LLParser) parseElements(closer int) (elems []decl.Expr, trailingComma bool, err error) {
	for p.PeekToken() != closer {
		e, err := p.ParseNamedExpr()
		if err != nil {
			return nil, false, err
		}
		elems = append(elems, e)
		trailingComma = false
		if p.PeekToken() != COMMA {
			break
		}
		p.Advance()
		trailingComma = true
	}
	_, err = p.AdvanceIf(closer)
	return elems, trailingComma, err
}

func (p *LLParser) ParseAtom() (decl.Expr, error) {
	tok := p.peekTok()
	switch tok.Kind {
	case IDENTIFIER:
		return p.ParseIdentifier()
	case INT_LITERAL:
		p.Advance()
		n := &decl.NumberExpr{ExprBase: p.exprBase(tok), IsInt: true, IntValue: tok.IntValue}
		if tok.IsBigInt {
			n.IsBig, n.Text = true, tok.Text
		}
		return n, nil
	case FLOAT_LITERAL:
		p.Advance()
		return &decl.NumberExpr{ExprBase: p.exprBase(tok), FloatValue: tok.FloatValue}, nil
	case STRING_LITERAL, BYTES_LITERAL:
		p.Advance()
		value := tok.StrValue
		// Adjacent literals concatenate.
		for p.PeekToken() == tok.Kind {
			value += p.Advance().StrValue
		}
		return &decl.StringExpr{ExprBase: p.exprBase(tok), Value: value, IsBytes: tok.Kind == BYTES_LITERAL}, nil
	case NONE, TRUE, FALSE, ELLIPSIS:
		p.Advance()
		kind := map[int]decl.ConstantKind{NONE: decl.ConstNone, TRUE: decl.ConstTrue, FALSE: decl.ConstFalse, ELLIPSIS: decl.ConstEllipsis}[tok.Kind]
		return &decl.ConstantExpr{ExprBase: p.exprBase(tok), Kind: kind}, nil
	case LPAREN:
		p.Advance()
		elems, trailingComma, err := p.parseElements(RPAREN)
		if err != nil {
			return nil, err
		}
		if len(elems) == 1 && !trailingComma {
			return elems[0], nil
		}
		return &decl.TupleExpr{ExprBase: p.exprBase(tok), Elements: elems}, nil
	case LBRACKET:
		p.Advance()
		elems, _, err := p.parseElements(RBRACKET)
		if err != nil {
			return nil, err
		}
		return &decl.ListExpr{ExprBase: p.exprBase(tok), Elements: elems}, nil
	case LBRACE:
		p.Advance()
		if p.PeekToken() == RBRACE {
			return nil, p.Errorf("dict displays are not supported")
		}
		elems, _, err := p.parseElements(RBRACE)
		if err != nil {
			if p.PeekToken() == COLON {
				return nil, p.Errorf("dict displays are not supported")
			}
			return nil, err
		}
		return &decl.SetExpr{ExprBase: p.exprBase(tok), Elements: elems}, nil
	}
	return nil, p.Errorf("unexpected %s", TokenString(tok.Kind))
}
