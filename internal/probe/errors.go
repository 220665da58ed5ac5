package probe

import (
	"fmt"
	"strings"
	"time"
)

// AccessError is returned when a file artifact cannot be read.
type AccessError struct {
	Path string
	Err  error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("cannot access artifact %s: %v", e.Path, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}

// ProcessError is returned when a command artifact cannot be located,
// fails to start, or exceeds its timeout.
type ProcessError struct {
	Args     []string
	TimedOut bool
	Timeout  time.Duration
	Err      error
}

func (e *ProcessError) Error() string {
	cmd := strings.Join(e.Args, " ")
	if e.TimedOut {
		return fmt.Sprintf("command %q timed out after %v", cmd, e.Timeout)
	}
	return fmt.Sprintf("command %q failed: %v", cmd, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
