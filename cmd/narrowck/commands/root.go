package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/panyam/pynarrow/config"
	"github.com/panyam/pynarrow/logging"
	"github.com/spf13/cobra"
)

// rootOptions holds the global flags and the configuration resolved from
// them before any subcommand runs.
type rootOptions struct {
	configFile string
	envFile    string
	logLevel   string
	noColor    bool
	maxErrors  int

	cfg *config.Config
}

// NewRootCommand builds the narrowck command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "narrowck",
		Short: "narrowck reports how Python conditions narrow the types of references",
		Long: `narrowck type checks a subset of Python and reports, for every reveal_type
call, the type the reference has at that point after narrowing by the
conditions that guard it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", "", "Path to the YAML config file (default: "+config.DefaultFile+" if present)")
	flags.StringVar(&opts.envFile, "env-file", "", "Path to a .env file (default: "+config.DefaultEnvFile+" if present)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error or off")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flags.IntVar(&opts.maxErrors, "max-errors", 0, "Maximum diagnostics kept per file (0 = no limit)")

	rootCmd.AddCommand(
		newCheckCommand(opts),
		newNarrowCommand(opts),
		newExplainCommand(opts),
		newVersionCommand(),
	)
	return rootCmd
}

func (o *rootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(config.Sources{File: o.configFile, EnvFile: o.envFile})
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if flags.Changed("no-color") {
		cfg.Color = !o.noColor
	}
	if flags.Changed("max-errors") {
		cfg.MaxErrors = o.maxErrors
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, _ := logging.ParseLogLevel(cfg.LogLevel)
	logging.Setup(cmd.ErrOrStderr(), level, cfg.Color)
	o.cfg = cfg
	return nil
}

// Run executes the command line args, writing to stdout and stderr.
func Run(args []string, stdout, stderr io.Writer) error {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd.Execute()
}

// Execute runs the command line of the process and exits non-zero on
// failure. This is called by main.main().
func Execute() {
	if err := Run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
