package build

import (
	"fmt"
	"strings"
)

// Step names a phase of a reset.
type Step string

const (
	StepClean Step = "clean"
	StepBuild Step = "build"
)

// maxDiagnosticLines bounds the captured output quoted by Failure.Diagnostics.
const maxDiagnosticLines = 20

// Failure is returned when a clean or build command cannot start, exits
// non-zero, or exceeds the build timeout. It is fatal to a run.
//
// Captured output is kept only here, for diagnostics.
type Failure struct {
	Step     Step
	Args     []string
	ExitCode int // -1 if the process never exited normally
	TimedOut bool
	Stdout   string
	Stderr   string
	Err      error
}

func (e *Failure) Error() string {
	cmd := strings.Join(e.Args, " ")
	switch {
	case e.TimedOut:
		return fmt.Sprintf("build failure: %s step %q timed out", e.Step, cmd)
	case e.ExitCode > 0:
		return fmt.Sprintf("build failure: %s step %q exited with status %d", e.Step, cmd, e.ExitCode)
	default:
		return fmt.Sprintf("build failure: %s step %q: %v", e.Step, cmd, e.Err)
	}
}

func (e *Failure) Unwrap() error {
	return e.Err
}

// Diagnostics returns the tail of the captured stderr, falling back to
// stdout when stderr is empty.
func (e *Failure) Diagnostics() string {
	out := e.Stderr
	if strings.TrimSpace(out) == "" {
		out = e.Stdout
	}
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) > maxDiagnosticLines {
		lines = lines[len(lines)-maxDiagnosticLines:]
	}
	return strings.Join(lines, "\n")
}
