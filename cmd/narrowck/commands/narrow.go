package commands

import (
	"fmt"

	"github.com/panyam/pynarrow/decl"
	"github.com/spf13/cobra"
)

func newNarrowCommand(opts *rootOptions) *cobra.Command {
	p := &scenario{}
	var showSource bool
	cmd := &cobra.Command{
		Use:   "narrow",
		Short: "Prints the types a condition narrows a reference to",
		Long: `The narrow command declares the given parameters in a function, evaluates the
condition and prints the type of the reference before the condition and on
its positive and negative branches.`,
		Example: `  narrowck narrow --decl "x: int | None" --test "x is None"
  narrowck narrow -d "v: int | str" -d "flag: bool" -t "isinstance(v, int) and flag" -r v`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pr, err := p.run(opts.cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if showSource {
				fmt.Fprint(out, decl.Format(pr.fn))
			}
			fmt.Fprintf(out, "reference: %s\n", p.reference())
			fmt.Fprintf(out, "declared:  %s\n", pr.declared)
			fmt.Fprintf(out, "positive:  %s\n", pr.positive)
			fmt.Fprintf(out, "negative:  %s\n", pr.negative)
			return pr.errorsOf()
		},
	}
	p.addFlags(cmd)
	cmd.Flags().BoolVar(&showSource, "source", false, "Print the scenario function that is checked")
	return cmd
}
