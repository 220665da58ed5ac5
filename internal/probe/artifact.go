// Package probe extracts text from release artifacts: the raw bytes of a
// built file, or the captured output of a command run against the toolchain.
package probe

import (
	"fmt"
	"strings"
)

// Kind identifies how an artifact's content is obtained.
type Kind string

const (
	// KindFile reads a file artifact verbatim.
	KindFile Kind = "file"
	// KindCommand runs a command and captures stdout followed by stderr.
	KindCommand Kind = "command-output"
)

// Artifact is a probing target. For KindFile the locator holds exactly one
// path; for KindCommand it holds the argument list, executable first.
type Artifact struct {
	Kind    Kind     `yaml:"kind" json:"kind"`
	Locator []string `yaml:"locator" json:"locator"`
}

// File returns a file artifact.
func File(path string) Artifact {
	return Artifact{Kind: KindFile, Locator: []string{path}}
}

// Command returns a command-output artifact.
func Command(args ...string) Artifact {
	return Artifact{Kind: KindCommand, Locator: append([]string(nil), args...)}
}

// String renders the artifact for reports, e.g. "file ./tester".
func (a Artifact) String() string {
	return fmt.Sprintf("%s %s", a.Kind, strings.Join(a.Locator, " "))
}

// Validate checks the artifact is well-formed.
func (a Artifact) Validate() error {
	switch a.Kind {
	case KindFile:
		if len(a.Locator) != 1 || a.Locator[0] == "" {
			return fmt.Errorf("file artifact needs exactly one non-empty path, got %q", a.Locator)
		}
	case KindCommand:
		if len(a.Locator) == 0 || a.Locator[0] == "" {
			return fmt.Errorf("command-output artifact needs an executable")
		}
	case "":
		return fmt.Errorf("artifact kind is required")
	default:
		return fmt.Errorf("unknown artifact kind %q: must be %s or %s", a.Kind, KindFile, KindCommand)
	}
	return nil
}
