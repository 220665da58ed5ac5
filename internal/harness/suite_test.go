package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provguard/internal/policy"
	"github.com/roach88/provguard/internal/probe"
)

const fullSuiteYAML = `
name: release
description: "Release checks"
dir: tests
build:
  clean: [make, clean]
  build: [make, -j8]
  timeout: 90m
  rebuild: per_case
probe_timeout: 5s
policy:
  required: [clang-cgc]
  forbidden: [svn/svn, "(tags/"]
cases:
  - name: nosvn
    artifact:
      kind: file
      locator: [./tester]
  - name: clangver
    artifact:
      kind: command-output
      locator: [../Release+Asserts/bin/clang, --version]
    checks: [forbidden]
`

func TestParseSuite_Full(t *testing.T) {
	s, err := ParseSuite([]byte(fullSuiteYAML), "/work")
	require.NoError(t, err)

	assert.Equal(t, "release", s.Name)
	assert.Equal(t, filepath.Join("/work", "tests"), s.Dir)
	assert.Equal(t, []string{"make", "-j8"}, s.Build.Build)
	assert.Equal(t, 90*time.Minute, s.Build.Timeout)
	assert.Equal(t, RebuildPerCase, s.Build.Rebuild)
	assert.Equal(t, 5*time.Second, s.ProbeTimeout)

	cases := s.TestCases()
	require.Len(t, cases, 2)

	// No checks means both sets.
	assert.Equal(t, []policy.Pattern{
		{Text: "clang-cgc", Class: policy.Required},
		{Text: "svn/svn", Class: policy.Forbidden},
		{Text: "(tags/", Class: policy.Forbidden},
	}, cases[0].Patterns)
	assert.Equal(t, probe.File("./tester"), cases[0].Artifact)

	assert.Equal(t, []policy.Pattern{
		{Text: "svn/svn", Class: policy.Forbidden},
		{Text: "(tags/", Class: policy.Forbidden},
	}, cases[1].Patterns)
	assert.Equal(t, probe.Command("../Release+Asserts/bin/clang", "--version"), cases[1].Artifact)
}

func TestParseSuite_Defaults(t *testing.T) {
	s, err := ParseSuite([]byte(`
name: minimal
cases:
  - name: nosvn
    artifact: {kind: file, locator: [./tester]}
`), "/work/tests")
	require.NoError(t, err)

	assert.Equal(t, "/work/tests", s.Dir)
	assert.Equal(t, RebuildOnce, s.Build.Rebuild)
	assert.Nil(t, s.Build.Clean)
	assert.Equal(t, policy.Default().Patterns(), s.Policy().Patterns())
}

func TestParseSuite_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
		msg   string
	}{
		{
			name:  "missing name",
			yaml:  "cases: [{name: a, artifact: {kind: file, locator: [x]}}]",
			field: "name",
			msg:   "name is required",
		},
		{
			name:  "no cases",
			yaml:  "name: s",
			field: "cases",
			msg:   "must be non-empty",
		},
		{
			name:  "policy and policy_file",
			yaml:  "name: s\npolicy_file: p.cue\npolicy: {required: [a], forbidden: [b]}\ncases: [{name: a, artifact: {kind: file, locator: [x]}}]",
			field: "policy_file",
			msg:   "mutually exclusive",
		},
		{
			name:  "bad rebuild mode",
			yaml:  "name: s\nbuild: {rebuild: always}\ncases: [{name: a, artifact: {kind: file, locator: [x]}}]",
			field: "build.rebuild",
			msg:   "unknown rebuild mode",
		},
		{
			name:  "empty build command",
			yaml:  "name: s\nbuild: {build: []}\ncases: [{name: a, artifact: {kind: file, locator: [x]}}]",
			field: "build.build",
			msg:   "command must be non-empty",
		},
		{
			name:  "negative probe timeout",
			yaml:  "name: s\nprobe_timeout: -1s\ncases: [{name: a, artifact: {kind: file, locator: [x]}}]",
			field: "probe_timeout",
			msg:   "non-negative",
		},
		{
			name:  "bad artifact kind",
			yaml:  "name: s\ncases: [{name: a, artifact: {kind: strings, locator: [x]}}]",
			field: "cases[0].artifact",
			msg:   "unknown artifact kind",
		},
		{
			name:  "duplicate case",
			yaml:  "name: s\ncases: [{name: a, artifact: {kind: file, locator: [x]}}, {name: a, artifact: {kind: file, locator: [y]}}]",
			field: "cases[1].name",
			msg:   "duplicate case name",
		},
		{
			name:  "bad check",
			yaml:  "name: s\ncases: [{name: a, artifact: {kind: file, locator: [x]}, checks: [optional]}]",
			field: "cases[0].checks[0]",
			msg:   "unknown pattern set",
		},
		{
			name:  "empty forbidden set",
			yaml:  "name: s\npolicy: {required: [clang-cgc], forbidden: []}\ncases: [{name: a, artifact: {kind: file, locator: [x]}}]",
			field: "forbidden",
			msg:   "pattern set is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSuite([]byte(tt.yaml), "/work")
			require.Error(t, err)

			var cfgErr *policy.ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %T: %v", err, err)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Contains(t, cfgErr.Error(), tt.msg)
		})
	}
}

func TestParseSuite_UnknownField(t *testing.T) {
	_, err := ParseSuite([]byte("name: s\ncase: []\n"), "/work")

	var cfgErr *policy.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "case")
}

func TestParseSuite_Empty(t *testing.T) {
	_, err := ParseSuite(nil, "/work")
	assert.ErrorContains(t, err, "suite document is empty")
}

func TestLoadSuite_PolicyFileRelative(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "release.cue"), []byte(`
required: ["clang-cgc"]
forbidden: ["infrastructure"]
`), 0644))
	suitePath := filepath.Join(dir, "provguard.yaml")
	require.NoError(t, os.WriteFile(suitePath, []byte(`
name: s
policy_file: release.cue
cases:
  - name: nosvn
    artifact: {kind: file, locator: [./tester]}
`), 0644))

	s, err := LoadSuite(suitePath)
	require.NoError(t, err)

	assert.Equal(t, dir, s.Dir)
	assert.Equal(t, filepath.Join(dir, "release.cue"), s.PolicyFile)
	assert.Equal(t, []string{"infrastructure"}, s.Policy().Forbidden())
}

func TestLoadSuite_MissingFile(t *testing.T) {
	_, err := LoadSuite(filepath.Join(t.TempDir(), "nope.yaml"))

	var cfgErr *policy.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestSuite_WithPolicy(t *testing.T) {
	s := DefaultSuite("/work/tests")
	p, err := policy.New([]string{"clang-cgc"}, []string{"corp.internal"})
	require.NoError(t, err)

	c, err := s.WithPolicy(p)
	require.NoError(t, err)

	assert.Equal(t, []policy.Pattern{{Text: "corp.internal", Class: policy.Forbidden}}, c.TestCases()[2].Patterns)
	// The receiver is untouched.
	assert.Len(t, s.TestCases()[2].Patterns, 3)
}

func TestSuite_WithDir(t *testing.T) {
	s := DefaultSuite("/a")
	c := s.WithDir("/b")

	assert.Equal(t, "/a", s.Dir)
	assert.Equal(t, "/b", c.Dir)
	assert.Equal(t, s.TestCases(), c.TestCases())
}

func TestDefaultSuite(t *testing.T) {
	s := DefaultSuite("/work/tests")

	assert.Equal(t, "clang-cgc-release", s.Name)
	assert.Equal(t, "/work/tests", s.Dir)
	assert.Equal(t, []string{"make", "clean"}, s.Build.Clean)
	assert.Equal(t, []string{"make"}, s.Build.Build)
	assert.Equal(t, time.Minute, s.ProbeTimeout)

	cases := s.TestCases()
	require.Len(t, cases, 3)
	assert.Equal(t, "nosvn", cases[0].Name)
	assert.Len(t, cases[0].Patterns, 4)
	assert.Equal(t, "is_correct_clang", cases[1].Name)
	assert.Equal(t, []policy.Pattern{{Text: "clang-cgc", Class: policy.Required}}, cases[1].Patterns)
	assert.Equal(t, "clangver", cases[2].Name)
	assert.Len(t, cases[2].Patterns, 3)
}

func TestParseRebuildMode(t *testing.T) {
	m, err := ParseRebuildMode("")
	require.NoError(t, err)
	assert.Equal(t, RebuildOnce, m)

	m, err = ParseRebuildMode("per_case")
	require.NoError(t, err)
	assert.Equal(t, RebuildPerCase, m)

	_, err = ParseRebuildMode("sometimes")
	assert.Error(t, err)
}
