package harness

import (
	"context"
	"log/slog"

	"github.com/roach88/provguard/internal/build"
	"github.com/roach88/provguard/internal/logging"
	"github.com/roach88/provguard/internal/probe"
)

// Resetter rebuilds the toolchain tree. *build.Orchestrator implements it.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Prober extracts artifact content. *probe.Prober implements it.
type Prober interface {
	Probe(ctx context.Context, a probe.Artifact) (string, error)
}

// Options tunes a run. The zero value builds and probes according to the
// suite and logs through the process default logger.
type Options struct {
	// SkipBuild treats the tree as already built.
	SkipBuild bool

	// Logger is the base logger; component attributes are added. Nil uses
	// the default configured by logging.Init.
	Logger *slog.Logger

	// Resetter and Prober replace the suite-configured implementations.
	Resetter Resetter
	Prober   Prober
}

// Harness executes one suite run. It is single-use and not safe for
// concurrent use; runs are strictly sequential.
type Harness struct {
	suite     *Suite
	builder   Resetter
	prober    Prober
	skipBuild bool
	logger    *slog.Logger
	seq       int64
	report    *Report
}

// Run executes the suite and returns its report.
//
// A non-nil error is fatal (build failure or cancellation): the returned
// report is marked aborted and holds only the cases evaluated before the
// failure. Probe errors and violations are not returned as errors; they
// fail their case and the run continues.
func Run(ctx context.Context, suite *Suite, opts Options) (*Report, error) {
	return New(suite, opts).Run(ctx)
}

// New wires a Harness for suite.
func New(suite *Suite, opts Options) *Harness {
	component := func(name string) *slog.Logger {
		if opts.Logger != nil {
			return opts.Logger.With(slog.String("component", name))
		}
		return logging.New(name)
	}

	builder := opts.Resetter
	if builder == nil {
		builder = build.New(build.Config{
			Dir:     suite.Dir,
			Clean:   suite.Build.Clean,
			Build:   suite.Build.Build,
			Timeout: suite.Build.Timeout,
		}, component("build"))
	}

	prober := opts.Prober
	if prober == nil {
		prober = probe.New(suite.Dir, suite.ProbeTimeout, component("probe"))
	}

	return &Harness{
		suite:     suite,
		builder:   builder,
		prober:    prober,
		skipBuild: opts.SkipBuild,
		logger:    component("harness"),
		report:    NewReport(suite.Name),
	}
}

// Run executes the suite. See the package-level Run.
func (h *Harness) Run(ctx context.Context) (*Report, error) {
	cases := h.suite.TestCases()
	results := make([]*TestResult, len(cases))
	for i, tc := range cases {
		results[i] = NewResult(tc)
		h.record(tc.Name, StateNotBuilt)
	}

	h.logger.Info("running suite",
		"suite", h.suite.Name,
		"cases", len(cases),
		"rebuild", h.suite.Build.Rebuild,
		"skip_build", h.skipBuild,
	)

	perCase := h.suite.Build.Rebuild == RebuildPerCase
	if !perCase {
		if err := h.build(ctx, results); err != nil {
			return h.abort(err)
		}
	}

	for i, tc := range cases {
		if err := ctx.Err(); err != nil {
			return h.abort(err)
		}

		r := results[i]
		if perCase {
			if err := h.build(ctx, results[i:i+1]); err != nil {
				return h.abort(err)
			}
		}

		h.transition(r, StateProbing)
		content, err := h.prober.Probe(ctx, tc.Artifact)
		if err != nil {
			if ctx.Err() != nil {
				return h.abort(ctx.Err())
			}
			r.SetProbeError(err)
			h.logger.Warn("probe failed", "case", tc.Name, "artifact", tc.Artifact.String(), "error", err)
		} else {
			for _, v := range EvaluatePatterns(content, tc.Patterns).Violations {
				r.AddViolation(v)
			}
		}
		h.transition(r, StateAsserted)

		h.report.Results = append(h.report.Results, r)
		if !r.Pass {
			h.report.Pass = false
		}

		h.logger.Info("case asserted",
			"case", tc.Name,
			"pass", r.Pass,
			"violations", len(r.Violations),
		)
	}

	h.logger.Info("suite finished",
		"suite", h.suite.Name,
		"passed", h.report.Passed(),
		"failed", h.report.Failed(),
	)
	return h.report, nil
}

// build resets the tree on behalf of the given cases.
func (h *Harness) build(ctx context.Context, results []*TestResult) error {
	if h.skipBuild {
		for _, r := range results {
			h.transition(r, StateBuilt)
		}
		return nil
	}

	for _, r := range results {
		h.transition(r, StateBuilding)
	}
	if err := h.builder.Reset(ctx); err != nil {
		return err
	}
	for _, r := range results {
		h.transition(r, StateBuilt)
	}
	return nil
}

func (h *Harness) abort(err error) (*Report, error) {
	h.report.Aborted = true
	h.report.Pass = false
	h.report.Fatal = err.Error()
	h.record("", StateAborted)
	h.logger.Error("suite aborted", "suite", h.suite.Name, "error", err)
	return h.report, err
}

func (h *Harness) transition(r *TestResult, s State) {
	r.State = s
	h.record(r.Case, s)
}

func (h *Harness) record(name string, s State) {
	h.seq++
	h.report.Trace = append(h.report.Trace, TraceEvent{Seq: h.seq, Case: name, State: s})
}
