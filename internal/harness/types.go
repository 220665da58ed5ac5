package harness

import (
	"fmt"

	"github.com/roach88/provguard/internal/policy"
	"github.com/roach88/provguard/internal/probe"
)

// State is a test case lifecycle state.
type State string

const (
	StateNotBuilt State = "not_built"
	StateBuilding State = "building"
	StateBuilt    State = "built"
	StateProbing  State = "probing"
	StateAsserted State = "asserted"

	// StateAborted is recorded once, run-wide, when a fatal error stops
	// the run.
	StateAborted State = "aborted"
)

// ViolationKind tags a policy violation.
type ViolationKind string

const (
	// MissingRequired: a required pattern is absent from the probed text.
	MissingRequired ViolationKind = "missing_required"
	// LeakedProvenance: a forbidden pattern is present in the probed text.
	LeakedProvenance ViolationKind = "leaked_provenance"
)

// Violation is a single policy breach found in one artifact.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Pattern string        `json:"pattern"`
}

// Error implements the error interface.
func (v Violation) Error() string {
	switch v.Kind {
	case MissingRequired:
		return fmt.Sprintf("missing required pattern %q", v.Pattern)
	case LeakedProvenance:
		return fmt.Sprintf("leaked forbidden pattern %q", v.Pattern)
	default:
		return fmt.Sprintf("%s: %q", v.Kind, v.Pattern)
	}
}

// TestCase is an artifact paired with the patterns it must satisfy.
// Patterns are resolved from the policy when the suite is loaded.
type TestCase struct {
	Name        string
	Description string
	Artifact    probe.Artifact
	Patterns    []policy.Pattern
}

// TestResult is the outcome of one test case.
type TestResult struct {
	// Case is the test case name.
	Case string `json:"case"`

	// Artifact is the probed target.
	Artifact probe.Artifact `json:"artifact"`

	// Pass is true iff there are no violations and no probe error.
	Pass bool `json:"pass"`

	// State is the last lifecycle state the case reached.
	State State `json:"state"`

	// Violations are ordered: missing required patterns first, then leaked
	// forbidden ones, each in policy order.
	Violations []Violation `json:"violations"`

	// Error describes a probe failure (process or access error), if any.
	Error string `json:"error,omitempty"`

	// ErrorKind classifies Error: "process" or "access".
	ErrorKind string `json:"error_kind,omitempty"`

	err error
}

// NewResult creates a passing result for a case that has not run yet.
func NewResult(tc TestCase) *TestResult {
	return &TestResult{
		Case:       tc.Name,
		Artifact:   tc.Artifact,
		Pass:       true,
		State:      StateNotBuilt,
		Violations: []Violation{},
	}
}

// AddViolation records a violation and marks the result failed.
func (r *TestResult) AddViolation(v Violation) {
	r.Violations = append(r.Violations, v)
	r.Pass = false
}

// SetProbeError records a probe failure and marks the result failed.
func (r *TestResult) SetProbeError(err error) {
	r.err = err
	r.Error = err.Error()
	r.ErrorKind = errorKind(err)
	r.Pass = false
}

// Err returns the probe error, if any.
func (r *TestResult) Err() error {
	return r.err
}

// TraceEvent records one lifecycle transition.
type TraceEvent struct {
	Seq   int64  `json:"seq"`
	Case  string `json:"case,omitempty"` // empty for run-wide events
	State State  `json:"state"`
}

// Report is the outcome of one suite run.
type Report struct {
	// Suite is the suite name.
	Suite string `json:"suite"`

	// Pass is true iff every case ran and passed.
	Pass bool `json:"pass"`

	// Aborted is set when a fatal error stopped the run.
	Aborted bool `json:"aborted"`

	// Fatal describes the error that aborted the run.
	Fatal string `json:"fatal,omitempty"`

	// Results holds one entry per evaluated case, in declared order.
	Results []*TestResult `json:"results"`

	// Trace holds every lifecycle transition in order.
	Trace []TraceEvent `json:"trace"`
}

// NewReport creates an empty passing report.
func NewReport(suite string) *Report {
	return &Report{
		Suite:   suite,
		Pass:    true,
		Results: []*TestResult{},
		Trace:   []TraceEvent{},
	}
}

// Passed returns the number of passing results.
func (r *Report) Passed() int {
	n := 0
	for _, res := range r.Results {
		if res.Pass {
			n++
		}
	}
	return n
}

// Failed returns the number of failing results.
func (r *Report) Failed() int {
	return len(r.Results) - r.Passed()
}
