package policy

import (
	"fmt"

	"cuelang.org/go/cue/token"
)

// ConfigError reports an empty or malformed pattern set.
// It is fatal: no test case may run against an invalid policy.
type ConfigError struct {
	Field   string    // e.g. "forbidden[2]"; empty when the whole document is bad
	Message string    // human-readable description
	Pos     token.Pos // CUE source position, when loaded from CUE
	Err     error     // underlying decode error, if any
}

func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Pos.IsValid() {
		msg = fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("policy config error: %s: %v", msg, e.Err)
	}
	return "policy config error: " + msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
