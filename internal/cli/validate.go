package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/provguard/internal/harness"
	"github.com/roach88/provguard/internal/policy"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool              `json:"valid"`
	Suite     string            `json:"suite,omitempty"`
	Dir       string            `json:"dir,omitempty"`
	Required  []string          `json:"required,omitempty"`
	Forbidden []string          `json:"forbidden,omitempty"`
	Cases     []CaseDescription `json:"cases,omitempty"`
	Error     *ValidationError  `json:"error,omitempty"`
}

// CaseDescription summarizes one resolved case.
type CaseDescription struct {
	Name     string   `json:"name"`
	Artifact string   `json:"artifact"`
	Patterns []string `json:"patterns"`
}

// ValidationError locates a configuration problem.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the suite and policy without building",
		Long: `Load the suite and policy exactly as a run would, without touching the
build tree, and report the resolved cases.

Exit codes:
  0 - Configuration is valid
  2 - Configuration error`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	suite, err := loadSuite(opts)
	if err != nil {
		return outputValidateError(formatter, err)
	}

	result := describeSuite(suite)
	formatter.VerboseLog("Resolved %d case(s) against %d required and %d forbidden pattern(s)",
		len(result.Cases), len(result.Required), len(result.Forbidden))

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Suite %s is valid (%d case(s), harness dir %s)\n", result.Suite, len(result.Cases), result.Dir)
	fmt.Fprintf(w, "  required:  %q\n", result.Required)
	fmt.Fprintf(w, "  forbidden: %q\n", result.Forbidden)
	for _, c := range result.Cases {
		fmt.Fprintf(w, "  - %s: %s %q\n", c.Name, c.Artifact, c.Patterns)
	}
	return nil
}

func describeSuite(suite *harness.Suite) ValidationResult {
	p := suite.Policy()
	result := ValidationResult{
		Valid:     true,
		Suite:     suite.Name,
		Dir:       suite.Dir,
		Required:  p.Required(),
		Forbidden: p.Forbidden(),
	}
	for _, tc := range suite.TestCases() {
		patterns := make([]string, len(tc.Patterns))
		for i, pat := range tc.Patterns {
			patterns[i] = pat.Text
		}
		result.Cases = append(result.Cases, CaseDescription{
			Name:     tc.Name,
			Artifact: tc.Artifact.String(),
			Patterns: patterns,
		})
	}
	return result
}

func outputValidateError(f *OutputFormatter, err error) error {
	verr := &ValidationError{Message: err.Error()}
	var cfgErr *policy.ConfigError
	if errors.As(err, &cfgErr) {
		verr.Field = cfgErr.Field
		if cfgErr.Pos.IsValid() {
			verr.File = cfgErr.Pos.Filename()
			verr.Line = cfgErr.Pos.Line()
		}
	}

	if f.Format == "json" {
		if encErr := f.Response(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Error: verr},
			Error:  &CLIError{Code: ErrCodeConfig, Message: err.Error()},
		}); encErr != nil {
			return encErr
		}
	} else {
		fmt.Fprintf(f.Writer, "✗ %v\n", err)
	}
	return WrapExitError(ExitFatal, "invalid configuration", err)
}
