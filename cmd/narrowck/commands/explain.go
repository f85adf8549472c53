package commands

import (
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	gfn "github.com/panyam/goutils/fn"
	"github.com/panyam/pynarrow/narrowing"
	"github.com/panyam/pynarrow/types"
	"github.com/spf13/cobra"
)

// ruleSummary is the printable form of a matched narrowing callback.
type ruleSummary struct {
	Rule         string
	IsPositive   bool
	IsIncomplete bool
	Operand      string
	Key          string
	Member       string
	Index        int64
	Filters      []string
	Narrowed     string
}

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func summarize(cb *narrowing.Callback, narrowed types.TypeResult) ruleSummary {
	s := ruleSummary{
		Rule:         cb.Rule.String(),
		IsPositive:   cb.IsPositive,
		IsIncomplete: cb.IsIncomplete || narrowed.IsIncomplete,
		Member:       cb.Member,
		Index:        cb.Index,
		Filters:      gfn.Map(cb.Filters, func(t types.Type) string { return t.String() }),
		Narrowed:     narrowed.Type.String(),
	}
	if cb.Operand != nil {
		s.Operand = cb.Operand.String()
	}
	if cb.Key != nil {
		s.Key = cb.Key.String()
	}
	return s
}

func newExplainCommand(opts *rootOptions) *cobra.Command {
	p := &scenario{}
	var dump bool
	cmd := &cobra.Command{
		Use:   "explain",
		Short: "Shows which narrowing rule a condition matches",
		Long: `The explain command matches the condition against the narrowing rules for the
reference and prints the matched rule for both branches together with the
type it narrows the declared type to.`,
		Example: `  narrowck explain --decl "x: int | str" --test "isinstance(x, int)"
  narrowck explain --decl "t: tuple[int] | tuple[int, int]" --test "len(t) == 2" --dump`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pr, err := p.run(opts.cfg)
			if err != nil {
				return err
			}
			if err := pr.errorsOf(); err != nil {
				return err
			}
			ev := pr.checker.Evaluator()
			declared := ev.GetTypeOfExpression(pr.before, nil).Type
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "reference: %s\n", p.reference())
			fmt.Fprintf(out, "declared:  %s\n", declared)
			for _, positive := range []bool{true, false} {
				label := "positive"
				if !positive {
					label = "negative"
				}
				cb := ev.NarrowingCallback(pr.before, pr.ifStmt.Test, positive)
				if cb == nil {
					fmt.Fprintf(out, "%s: no narrowing\n", label)
					continue
				}
				s := summarize(cb, cb.Apply(ev, declared))
				fmt.Fprintf(out, "%s: %s -> %s\n", label, cb, s.Narrowed)
				if dump {
					writeDump(out, s)
				}
			}
			return nil
		},
	}
	p.addFlags(cmd)
	cmd.Flags().BoolVar(&dump, "dump", false, "Dump every field of the matched rules")
	return cmd
}

func writeDump(w io.Writer, s ruleSummary) {
	dumper.Fdump(w, s)
}
