package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/provguard/internal/build"
	"github.com/roach88/provguard/internal/harness"
	"github.com/roach88/provguard/internal/policy"
	"github.com/roach88/provguard/internal/store"
)

// RunSummary is the JSON payload of a run.
type RunSummary struct {
	*harness.Report
	Passed int    `json:"passed"`
	Failed int    `json:"failed"`
	Total  int    `json:"total"`
	Digest string `json:"digest"`
	RunID  string `json:"run_id,omitempty"`
}

func runSuite(cmd *cobra.Command, opts *RunOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	suite, err := loadSuite(opts.RootOptions)
	if err != nil {
		return configFailure(formatter, err)
	}
	if err := applyRunFlags(suite, opts); err != nil {
		return configFailure(formatter, err)
	}

	formatter.VerboseLog("Suite %s: %d case(s), harness dir %s", suite.Name, len(suite.TestCases()), suite.Dir)

	report, runErr := harness.Run(ctx, suite, harness.Options{
		SkipBuild: opts.SkipBuild,
	})

	summary := RunSummary{
		Report: report,
		Passed: report.Passed(),
		Failed: report.Failed(),
		Total:  len(suite.TestCases()),
	}
	if summary.Digest, err = report.Digest(); err != nil {
		return WrapExitError(ExitFatal, "failed to digest report", err)
	}

	// Build failures are recorded; interrupted runs are not.
	var buildErr *build.Failure
	recordable := runErr == nil || (errors.As(runErr, &buildErr) && !errors.Is(runErr, context.Canceled))
	if opts.History != "" && recordable {
		runID, err := recordHistory(ctx, opts.History, report)
		if err != nil {
			_ = formatter.Error(ErrCodeHistory, err.Error(), nil)
			return WrapExitError(ExitFatal, "failed to record history", err)
		}
		summary.RunID = runID
	}

	if opts.Format == "json" {
		return outputRunJSON(formatter, summary, runErr)
	}
	return outputRunText(formatter, summary, runErr)
}

// applyRunFlags overrides suite settings with explicitly set run flags.
func applyRunFlags(suite *harness.Suite, opts *RunOptions) error {
	if opts.Rebuild != "" {
		mode, err := harness.ParseRebuildMode(opts.Rebuild)
		if err != nil {
			return &policy.ConfigError{Field: "--rebuild", Message: err.Error()}
		}
		suite.Build.Rebuild = mode
	}
	if opts.ProbeTimeout < 0 {
		return &policy.ConfigError{Field: "--probe-timeout", Message: "must be non-negative"}
	}
	if opts.ProbeTimeout > 0 {
		suite.ProbeTimeout = opts.ProbeTimeout
	}
	if opts.BuildTimeout < 0 {
		return &policy.ConfigError{Field: "--build-timeout", Message: "must be non-negative"}
	}
	if opts.BuildTimeout > 0 {
		suite.Build.Timeout = opts.BuildTimeout
	}
	return nil
}

func recordHistory(ctx context.Context, path string, report *harness.Report) (string, error) {
	s, err := store.Open(path)
	if err != nil {
		return "", err
	}
	defer s.Close()

	run, err := s.RecordRun(ctx, report)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// configFailure reports a configuration error and maps it to the fatal exit code.
func configFailure(f *OutputFormatter, err error) error {
	var details any
	var cfgErr *policy.ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Field != "" {
		details = map[string]string{"field": cfgErr.Field}
	}
	_ = f.Error(ErrCodeConfig, err.Error(), details)
	return WrapExitError(ExitFatal, "invalid configuration", err)
}

// fatalCode classifies an error that aborted a run.
func fatalCode(err error) string {
	var buildErr *build.Failure
	switch {
	case errors.Is(err, context.Canceled):
		return ErrCodeCancelled
	case errors.As(err, &buildErr):
		return ErrCodeBuildFailed
	default:
		return ErrCodeGeneric
	}
}

func outputRunJSON(f *OutputFormatter, summary RunSummary, runErr error) error {
	resp := CLIResponse{Status: "ok", Data: summary}

	var exitErr error
	switch {
	case runErr != nil:
		resp.Status = "error"
		var details any
		var buildErr *build.Failure
		if errors.As(runErr, &buildErr) {
			details = map[string]string{"diagnostics": buildErr.Diagnostics()}
		}
		resp.Error = &CLIError{Code: fatalCode(runErr), Message: runErr.Error(), Details: details}
		exitErr = WrapExitError(ExitFatal, "run aborted", runErr)
	case summary.Failed > 0:
		resp.Status = "error"
		resp.Error = &CLIError{
			Code:    ErrCodeSuiteFailed,
			Message: fmt.Sprintf("%d case(s) failed", summary.Failed),
		}
		exitErr = NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", summary.Failed))
	}

	if err := f.Response(resp); err != nil {
		return err
	}
	return exitErr
}

func outputRunText(f *OutputFormatter, summary RunSummary, runErr error) error {
	w := f.Writer

	for _, r := range summary.Results {
		writeResultText(w, r)
	}

	if runErr != nil {
		fmt.Fprintf(w, "✗ Run aborted: %v\n", runErr)
		var buildErr *build.Failure
		if errors.As(runErr, &buildErr) {
			if diag := buildErr.Diagnostics(); strings.TrimSpace(diag) != "" {
				for _, line := range strings.Split(diag, "\n") {
					fmt.Fprintf(w, "  | %s\n", line)
				}
			}
		}
		if pending := summary.Total - len(summary.Results); pending > 0 {
			fmt.Fprintf(w, "  %d case(s) not evaluated\n", pending)
		}
		return WrapExitError(ExitFatal, "run aborted", runErr)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	if summary.RunID != "" {
		fmt.Fprintf(w, "Recorded run %s\n", summary.RunID)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", summary.Failed))
	}

	fmt.Fprintln(w, "✓ All cases passed")
	return nil
}

func writeResultText(w io.Writer, r *harness.TestResult) {
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (%s)\n", mark, r.Case, r.Artifact)
	for _, v := range r.Violations {
		fmt.Fprintf(w, "  %s\n", v.Error())
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  %s error: %s\n", r.ErrorKind, r.Error)
	}
}
