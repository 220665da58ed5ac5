package harness

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/provguard/internal/policy"
	"github.com/roach88/provguard/internal/probe"
)

//go:embed default_suite.yaml
var defaultSuiteYAML []byte

// RebuildMode controls how often the tree is rebuilt during a run.
type RebuildMode string

const (
	// RebuildOnce builds a single time before any case is probed.
	RebuildOnce RebuildMode = "once"
	// RebuildPerCase resets the tree before every case.
	RebuildPerCase RebuildMode = "per_case"
)

// ParseRebuildMode validates a rebuild mode name. Empty selects RebuildOnce.
func ParseRebuildMode(s string) (RebuildMode, error) {
	switch RebuildMode(s) {
	case "", RebuildOnce:
		return RebuildOnce, nil
	case RebuildPerCase:
		return RebuildPerCase, nil
	default:
		return "", fmt.Errorf("unknown rebuild mode %q: must be %s or %s", s, RebuildOnce, RebuildPerCase)
	}
}

// Suite is a provenance suite definition.
type Suite struct {
	// Name identifies the suite in reports and history.
	Name string `yaml:"name"`

	// Description explains what the suite protects.
	Description string `yaml:"description,omitempty"`

	// Dir is the harness directory: build commands run there and relative
	// artifact paths resolve against it. Relative to the suite file;
	// defaults to the suite file's directory.
	Dir string `yaml:"dir,omitempty"`

	// Build configures the reset step.
	Build BuildSpec `yaml:"build,omitempty"`

	// ProbeTimeout bounds each command probe. Zero selects the probe default.
	ProbeTimeout time.Duration `yaml:"probe_timeout,omitempty"`

	// InlinePolicy is the policy block. At most one of InlinePolicy and
	// PolicyFile may be set; with neither, the default release policy applies.
	InlinePolicy *policy.File `yaml:"policy,omitempty"`

	// PolicyFile names a YAML or CUE policy, relative to the suite file.
	PolicyFile string `yaml:"policy_file,omitempty"`

	// Cases are evaluated in declared order.
	Cases []CaseSpec `yaml:"cases"`

	policy *policy.Policy
	cases  []TestCase
}

// BuildSpec configures the clean and build commands.
type BuildSpec struct {
	Clean   []string      `yaml:"clean,omitempty"`
	Build   []string      `yaml:"build,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
	Rebuild RebuildMode   `yaml:"rebuild,omitempty"`
}

// CaseSpec declares one test case.
type CaseSpec struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Artifact    probe.Artifact `yaml:"artifact"`

	// Checks names the pattern sets applied: "required", "forbidden".
	// Empty means both.
	Checks []string `yaml:"checks,omitempty"`
}

// LoadSuite reads, validates and resolves a suite file. Any problem is
// reported as a *policy.ConfigError.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &policy.ConfigError{Message: fmt.Sprintf("failed to read suite file %s", path), Err: err}
	}
	return ParseSuite(data, filepath.Dir(path))
}

// DefaultSuite returns the built-in clang-cgc release suite, with its
// harness directory set to baseDir.
func DefaultSuite(baseDir string) *Suite {
	s, err := ParseSuite(defaultSuiteYAML, baseDir)
	if err != nil {
		panic(fmt.Sprintf("built-in suite is invalid: %v", err))
	}
	return s
}

// ParseSuite decodes a suite document. Relative paths inside it resolve
// against baseDir.
func ParseSuite(data []byte, baseDir string) (*Suite, error) {
	var s Suite
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &policy.ConfigError{Message: "suite document is empty"}
		}
		return nil, &policy.ConfigError{Message: "failed to parse suite YAML", Err: err}
	}

	if !filepath.IsAbs(s.Dir) {
		s.Dir = filepath.Join(baseDir, s.Dir)
	}
	if s.PolicyFile != "" && !filepath.IsAbs(s.PolicyFile) {
		s.PolicyFile = filepath.Join(baseDir, s.PolicyFile)
	}

	if err := validateSuite(&s); err != nil {
		return nil, err
	}

	p, err := s.loadPolicy()
	if err != nil {
		return nil, err
	}
	if err := s.resolve(p); err != nil {
		return nil, err
	}
	return &s, nil
}

// WithPolicy returns a copy of the suite checked against p instead of its
// configured policy.
func (s *Suite) WithPolicy(p *policy.Policy) (*Suite, error) {
	c := *s
	if err := c.resolve(p); err != nil {
		return nil, err
	}
	return &c, nil
}

// WithDir returns a copy of the suite using dir as the harness directory.
func (s *Suite) WithDir(dir string) *Suite {
	c := *s
	c.Dir = dir
	return &c
}

// Policy returns the resolved policy.
func (s *Suite) Policy() *policy.Policy {
	return s.policy
}

// TestCases returns the resolved test cases in declared order.
func (s *Suite) TestCases() []TestCase {
	return append([]TestCase(nil), s.cases...)
}

func (s *Suite) loadPolicy() (*policy.Policy, error) {
	switch {
	case s.InlinePolicy != nil:
		return s.InlinePolicy.Policy()
	case s.PolicyFile != "":
		return policy.Load(s.PolicyFile)
	default:
		return policy.Default(), nil
	}
}

// resolve binds each case to its pattern subset of p.
func (s *Suite) resolve(p *policy.Policy) error {
	cases := make([]TestCase, 0, len(s.Cases))
	for i, spec := range s.Cases {
		classes := []policy.Class{policy.Required, policy.Forbidden}
		if len(spec.Checks) > 0 {
			classes = classes[:0]
			for j, name := range spec.Checks {
				c, err := policy.ParseClass(name)
				if err != nil {
					return &policy.ConfigError{Field: fmt.Sprintf("cases[%d].checks[%d]", i, j), Message: err.Error()}
				}
				classes = append(classes, c)
			}
		}
		cases = append(cases, TestCase{
			Name:        spec.Name,
			Description: spec.Description,
			Artifact:    spec.Artifact,
			Patterns:    p.Select(classes...),
		})
	}
	s.policy = p
	s.cases = cases
	return nil
}

// validateSuite checks required fields and per-case shape.
func validateSuite(s *Suite) error {
	if s.Name == "" {
		return &policy.ConfigError{Field: "name", Message: "name is required"}
	}
	if len(s.Cases) == 0 {
		return &policy.ConfigError{Field: "cases", Message: "cases list is required and must be non-empty"}
	}
	if s.InlinePolicy != nil && s.PolicyFile != "" {
		return &policy.ConfigError{Field: "policy_file", Message: "policy and policy_file are mutually exclusive"}
	}
	if s.ProbeTimeout < 0 {
		return &policy.ConfigError{Field: "probe_timeout", Message: "must be non-negative"}
	}
	if s.Build.Timeout < 0 {
		return &policy.ConfigError{Field: "build.timeout", Message: "must be non-negative"}
	}

	mode, err := ParseRebuildMode(string(s.Build.Rebuild))
	if err != nil {
		return &policy.ConfigError{Field: "build.rebuild", Message: err.Error()}
	}
	s.Build.Rebuild = mode

	if s.Build.Clean != nil && len(s.Build.Clean) == 0 {
		return &policy.ConfigError{Field: "build.clean", Message: "command must be non-empty"}
	}
	if s.Build.Build != nil && len(s.Build.Build) == 0 {
		return &policy.ConfigError{Field: "build.build", Message: "command must be non-empty"}
	}

	seen := make(map[string]int, len(s.Cases))
	for i, c := range s.Cases {
		if c.Name == "" {
			return &policy.ConfigError{Field: fmt.Sprintf("cases[%d].name", i), Message: "name is required"}
		}
		if first, ok := seen[c.Name]; ok {
			return &policy.ConfigError{
				Field:   fmt.Sprintf("cases[%d].name", i),
				Message: fmt.Sprintf("duplicate case name %q (first at index %d)", c.Name, first),
			}
		}
		seen[c.Name] = i
		if err := c.Artifact.Validate(); err != nil {
			return &policy.ConfigError{Field: fmt.Sprintf("cases[%d].artifact", i), Message: err.Error()}
		}
	}

	return nil
}
