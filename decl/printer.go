package decl

import (
	"fmt"
	"strings"
)

type CodePrinter interface {
	Indent(n int)
	Unindent(n int)
	Print(str string)
	Printf(fmt string, args ...any)
	Println(str string)
	String() string
}

func WithIndent(n int, cp CodePrinter, block func(cp CodePrinter)) {
	cp.Indent(n)
	defer cp.Unindent(n)
	block(cp)
}

type codePrinter struct {
	indent      int
	line        int
	col         int
	builder     strings.Builder
	linebuilder strings.Builder
}

func (c *codePrinter) Indent(n int) {
	c.indent += n
}

func (c *codePrinter) Unindent(n int) {
	c.indent -= n
	if c.indent < 0 {
		c.indent = 0
	}
}

func (c *codePrinter) Print(str string) {
	lines := strings.Split(str, "\n")
	for idx, l := range lines {
		if c.col == 0 && l != "" {
			// new line has started so add the indent string
			c.linebuilder.WriteString(c.IndentString())
		}
		c.linebuilder.WriteString(l)
		c.col += len(l)
		if idx < len(lines)-1 {
			c.line++
			c.col = 0
			c.builder.WriteString(c.linebuilder.String())
			c.builder.WriteRune('\n')
			c.linebuilder.Reset()
		}
	}
}

func (c *codePrinter) Println(str string) {
	c.Print(str + "\n")
}

func (c *codePrinter) Printf(format string, args ...any) {
	c.Print(fmt.Sprintf(format, args...))
}

func (c *codePrinter) IndentString() string {
	return strings.Repeat("    ", c.indent)
}

// String returns everything printed so far, including an unterminated
// last line.
func (c *codePrinter) String() string {
	return c.builder.String() + c.linebuilder.String()
}

func NewCodePrinter() CodePrinter {
	return &codePrinter{}
}

// Format renders statements back to Python source. Comments and the
// original layout are not preserved.
func Format(stmts ...Stmt) string {
	cp := NewCodePrinter()
	for _, s := range stmts {
		PrintStmt(cp, s)
	}
	return cp.String()
}

// PrintStmt prints one statement and its nested blocks.
func PrintStmt(cp CodePrinter, s Stmt) {
	switch st := s.(type) {
	case *IfStmt:
		cp.Printf("if %s:\n", st.Test)
		printBlock(cp, st.Body)
		printElse(cp, st.Else)
	case *WhileStmt:
		cp.Printf("while %s:\n", st.Test)
		printBlock(cp, st.Body)
		printElse(cp, st.Else)
	case *ForStmt:
		cp.Printf("for %s in %s:\n", st.Target, st.Iter)
		printBlock(cp, st.Body)
		printElse(cp, st.Else)
	case *AssertStmt:
		if st.Message != nil {
			cp.Printf("assert %s, %s\n", st.Test, st.Message)
		} else {
			cp.Println(st.String())
		}
	case *FunctionDef:
		printDecorators(cp, st.Decorators)
		cp.Print(st.String())
		if st.Returns != nil {
			cp.Printf(" -> %s", st.Returns)
		}
		cp.Println(":")
		printBlock(cp, st.Body)
	case *ClassDef:
		printDecorators(cp, st.Decorators)
		cp.Printf("class %s", st.Name)
		if len(st.Arguments) > 0 {
			args := make([]string, len(st.Arguments))
			for i, a := range st.Arguments {
				args[i] = a.String()
			}
			cp.Printf("(%s)", strings.Join(args, ", "))
		}
		cp.Println(":")
		printBlock(cp, st.Body)
	default:
		cp.Println(s.String())
	}
}

func printDecorators(cp CodePrinter, decorators []Expr) {
	for _, d := range decorators {
		cp.Printf("@%s\n", d)
	}
}

func printBlock(cp CodePrinter, body []Stmt) {
	WithIndent(1, cp, func(cp CodePrinter) {
		if len(body) == 0 {
			cp.Println("pass")
		}
		for _, s := range body {
			PrintStmt(cp, s)
		}
	})
}

func printElse(cp CodePrinter, body []Stmt) {
	if len(body) == 0 {
		return
	}
	if elif, ok := body[0].(*IfStmt); ok && len(body) == 1 && elif.IsElif {
		cp.Print("el")
		PrintStmt(cp, elif)
		return
	}
	cp.Println("else:")
	printBlock(cp, body)
}
