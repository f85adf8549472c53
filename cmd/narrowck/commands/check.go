package commands

import (
	"os"

	"github.com/panyam/pynarrow/checker"
	"github.com/panyam/pynarrow/loader"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.py|dir...>",
		Short: "Type checks files and prints revealed types and diagnostics",
		Long: `The check command parses, binds and evaluates every statement of the given
files. Directories are expanded to the .py files directly inside them.
The command fails when any file has errors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			fs := loader.NewLocalFS("")
			paths, err := expandPaths(fs, args)
			if err != nil {
				return err
			}

			out := newPrinter(cmd.OutOrStdout(), cfg.Color)
			files, loadErrs := loader.NewLoader(fs, cfg.MaxErrors).LoadFiles(paths...)
			for _, err := range loadErrs {
				out.failure(err)
			}
			failed := len(loadErrs)
			for _, f := range files {
				c := checker.NewChecker(f, nil)
				c.Evaluator().MaxLoopIterations = cfg.MaxLoopIterations
				res := c.Check()
				out.result(res, cfg.ShowInfo)
				if res.HasErrors() {
					failed++
				}
			}
			out.summary(len(paths))
			if failed > 0 {
				return errors.Errorf("%d of %d files failed", failed, len(paths))
			}
			return nil
		},
	}
}

func expandPaths(fs *loader.LocalFS, args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil || !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		files, err := fs.ListFiles(arg)
		if err != nil {
			return nil, err
		}
		paths = append(paths, files...)
	}
	return paths, nil
}
