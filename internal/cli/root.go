package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/provguard/internal/logging"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Suite   string // suite file; empty selects provguard.yaml or the built-in suite
	Policy  string // policy override (.yaml, .yml or .cue)
	Dir     string // harness directory override
}

// RunOptions holds flags for the default run.
type RunOptions struct {
	*RootOptions
	Rebuild      string
	SkipBuild    bool
	ProbeTimeout time.Duration
	BuildTimeout time.Duration
	History      string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the provguard command. Run without arguments it
// builds the toolchain and checks every case of the suite.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	runOpts := &RunOptions{RootOptions: opts}

	cmd := &cobra.Command{
		Use:   "provguard",
		Short: "Verify a release toolchain leaks no build provenance",
		Long: `Rebuild the toolchain, then check its artifacts against the provenance policy.

Every case probes one artifact (a file or the output of a command) and
requires the public product identifier while rejecting checkout paths,
infrastructure hostnames and revision tags.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed (violation or probe error)
  2 - Fatal error (build failure, invalid configuration, usage)

Examples:
  provguard
  provguard --suite release.yaml --format json
  provguard --policy policy.cue --rebuild per_case
  provguard --skip-build --history runs.db`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitFatal, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			level := slog.LevelInfo
			if opts.Verbose {
				level = slog.LevelDebug
			}
			logging.Init(level, opts.Format, cmd.ErrOrStderr())
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(cmd, runOpts)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return WrapExitError(ExitFatal, "usage error", err)
	})

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Suite, "suite", "", "suite file (default: ./"+DefaultSuiteFile+" or the built-in suite)")
	cmd.PersistentFlags().StringVar(&opts.Policy, "policy", "", "policy file overriding the suite policy (.yaml or .cue)")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "harness directory (default: the suite file's directory)")

	// Run flags
	cmd.Flags().StringVar(&runOpts.Rebuild, "rebuild", "", "rebuild mode (once|per_case); overrides the suite")
	cmd.Flags().BoolVar(&runOpts.SkipBuild, "skip-build", false, "probe the existing build without cleaning or rebuilding")
	cmd.Flags().DurationVar(&runOpts.ProbeTimeout, "probe-timeout", 0, "timeout per command probe; overrides the suite")
	cmd.Flags().DurationVar(&runOpts.BuildTimeout, "build-timeout", 0, "timeout for clean plus build; overrides the suite")
	cmd.Flags().StringVar(&runOpts.History, "history", "", "record the run in this SQLite database")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// noArgs rejects positional arguments with a fatal exit code.
func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return WrapExitError(ExitFatal, "usage error", err)
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
