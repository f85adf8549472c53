package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/panyam/pynarrow/checker"
	"github.com/panyam/pynarrow/config"
	"github.com/panyam/pynarrow/decl"
	"github.com/panyam/pynarrow/loader"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const scenarioFunction = "__narrow__"

// scenario is a synthesized module that declares parameters and reveals a
// reference before a condition and on both of its branches.
type scenario struct {
	decls   []string
	test    string
	ref     string
	prelude string
}

func (p *scenario) addFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArrayVarP(&p.decls, "decl", "d", nil, `Parameter declaration, e.g. "x: int | None" (repeatable)`)
	flags.StringVarP(&p.test, "test", "t", "", `Condition to narrow on, e.g. "x is None"`)
	flags.StringVarP(&p.ref, "ref", "r", "", "Reference expression to reveal (default: the first declared name)")
	flags.StringVarP(&p.prelude, "prelude", "p", "", "Python file with class and function definitions the declarations use")
}

func (p *scenario) reference() string {
	if p.ref != "" {
		return p.ref
	}
	if len(p.decls) > 0 {
		name, _, _ := strings.Cut(p.decls[0], ":")
		return strings.TrimSpace(name)
	}
	return ""
}

func (p *scenario) source() (string, error) {
	ref := p.reference()
	if ref == "" {
		return "", errors.New("a --decl or --ref is required")
	}
	if strings.TrimSpace(p.test) == "" {
		return "", errors.New("--test is required")
	}
	var b strings.Builder
	if p.prelude != "" {
		data, err := os.ReadFile(p.prelude)
		if err != nil {
			return "", errors.Wrapf(err, "reading prelude %s", p.prelude)
		}
		b.WriteString(strings.TrimRight(string(data), "\n"))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "def %s(%s):\n", scenarioFunction, strings.Join(p.decls, ", "))
	fmt.Fprintf(&b, "    reveal_type(%s)\n", ref)
	fmt.Fprintf(&b, "    if %s:\n        reveal_type(%s)\n", p.test, ref)
	fmt.Fprintf(&b, "    else:\n        reveal_type(%s)\n", ref)
	return b.String(), nil
}

type scenarioResult struct {
	checker *checker.Checker
	result  *checker.Result

	// ifStmt holds the condition; before is the reference revealed ahead
	// of it.
	fn     *decl.FunctionDef
	ifStmt *decl.IfStmt
	before decl.Expr

	declared, positive, negative string
}

func (p *scenario) run(cfg *config.Config) (*scenarioResult, error) {
	src, err := p.source()
	if err != nil {
		return nil, err
	}
	f, err := loader.NewLoader(loader.NewMemoryFS(), cfg.MaxErrors).LoadSource("<narrow>", src)
	if err != nil {
		return nil, err
	}
	c := checker.NewChecker(f, nil)
	c.Evaluator().MaxLoopIterations = cfg.MaxLoopIterations
	pr := &scenarioResult{checker: c, result: c.Check()}

	fd, ok := f.Module.Body[len(f.Module.Body)-1].(*decl.FunctionDef)
	if !ok || fd.Name.Name != scenarioFunction || len(fd.Body) != 2 {
		return nil, errors.New("the scenario function must be the last statement")
	}
	pr.fn = fd
	pr.ifStmt = fd.Body[1].(*decl.IfStmt)
	before := revealCall(fd.Body[0])
	onTrue := revealCall(pr.ifStmt.Body[0])
	onFalse := revealCall(pr.ifStmt.Else[0])
	pr.before = before.PositionalArgs()[0]

	pr.declared = revealedAt(pr.result, before)
	pr.positive = revealedAt(pr.result, onTrue)
	pr.negative = revealedAt(pr.result, onFalse)
	return pr, nil
}

func revealCall(s decl.Stmt) *decl.CallExpr {
	return s.(*decl.ExprStmt).Expr.(*decl.CallExpr)
}

// revealedAt returns the type revealed by call, or "<unreachable>" when the
// branch holding it is never checked.
func revealedAt(res *checker.Result, call *decl.CallExpr) string {
	for _, r := range res.Revealed {
		if r.Location == call.Location() {
			return r.Type
		}
	}
	return "<unreachable>"
}

// errorsOf returns the error diagnostics of a scenario as one error.
func (pr *scenarioResult) errorsOf() error {
	var msgs []string
	for _, d := range pr.result.Diagnostics {
		if d.Severity == loader.SeverityError {
			msgs = append(msgs, d.Error())
		}
	}
	if len(msgs) == 0 {
		return nil
	}
	return errors.Errorf("scenario has errors:\n  %s", strings.Join(msgs, "\n  "))
}
