package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/provguard/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Name     string
}

// HistoryResult is the JSON payload of the history command.
type HistoryResult struct {
	Suite       string             `json:"suite"`
	Previous    RunInfo            `json:"previous"`
	Current     RunInfo            `json:"current"`
	Identical   bool               `json:"identical"`
	Differences []store.Difference `json:"differences"`
}

// RunInfo identifies a recorded run.
type RunInfo struct {
	ID         string `json:"id"`
	Pass       bool   `json:"pass"`
	Aborted    bool   `json:"aborted"`
	Digest     string `json:"digest"`
	RecordedAt string `json:"recorded_at"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Compare the two most recent recorded runs",
		Long: `Compare the two most recent runs recorded with --history and report
any change in case outcomes, probe errors or violations.

Exit codes:
  0 - Outcomes identical
  1 - Outcomes differ
  2 - Command error (missing database, fewer than two runs)

Examples:
  provguard history --history runs.db
  provguard history --history runs.db --name clang-cgc-release --format json`,
		Args:          noArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "history", "", "SQLite history database (required)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "suite name (default: the most recently recorded suite)")
	_ = cmd.MarkFlagRequired("history")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
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

	s, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeHistory, err.Error(), nil)
		return WrapExitError(ExitFatal, "failed to open history", err)
	}
	defer s.Close()

	name := opts.Name
	if name == "" {
		suites, err := s.Suites(ctx)
		if err != nil {
			_ = formatter.Error(ErrCodeHistory, err.Error(), nil)
			return WrapExitError(ExitFatal, "failed to read history", err)
		}
		if len(suites) == 0 {
			msg := "no runs recorded in " + opts.Database
			_ = formatter.Error(ErrCodeHistory, msg, nil)
			return NewExitError(ExitFatal, msg)
		}
		name = suites[0]
	}

	runs, err := s.LatestRuns(ctx, name, 2)
	if err != nil {
		_ = formatter.Error(ErrCodeHistory, err.Error(), nil)
		return WrapExitError(ExitFatal, "failed to read history", err)
	}
	if len(runs) < 2 {
		msg := fmt.Sprintf("need at least two recorded runs of %s, found %d", name, len(runs))
		_ = formatter.Error(ErrCodeHistory, msg, nil)
		return NewExitError(ExitFatal, msg)
	}

	current, previous := runs[0], runs[1]
	diffs := store.Compare(previous, current)
	result := HistoryResult{
		Suite:       name,
		Previous:    runInfo(previous),
		Current:     runInfo(current),
		Identical:   len(diffs) == 0,
		Differences: diffs,
	}
	formatter.VerboseLog("Digests: previous %s, current %s", previous.Digest, current.Digest)

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Identical {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeHistoryDiff,
				Message: fmt.Sprintf("%d difference(s) between runs", len(diffs)),
			}
		}
		if err := formatter.Response(resp); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		fmt.Fprintf(w, "Comparing runs of %s\n", name)
		fmt.Fprintf(w, "  previous: %s (%s)\n", previous.ID, result.Previous.RecordedAt)
		fmt.Fprintf(w, "  current:  %s (%s)\n", current.ID, result.Current.RecordedAt)
		for _, d := range diffs {
			fmt.Fprintf(w, "✗ %s\n", d)
		}
		if result.Identical {
			fmt.Fprintln(w, "✓ Outcomes identical")
		}
	}

	if !result.Identical {
		return NewExitError(ExitFailure, fmt.Sprintf("%d difference(s) between runs", len(diffs)))
	}
	return nil
}

func runInfo(r store.Run) RunInfo {
	return RunInfo{
		ID:         r.ID,
		Pass:       r.Pass,
		Aborted:    r.Aborted,
		Digest:     r.Digest,
		RecordedAt: r.RecordedAt.Format(time.RFC3339),
	}
}
