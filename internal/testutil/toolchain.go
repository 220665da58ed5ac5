// Package testutil builds fake toolchain trees for harness tests.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ToolchainOptions controls what the fake toolchain produces when built.
type ToolchainOptions struct {
	// VersionOutput is written to stdout by "clang --version".
	VersionOutput string

	// VersionStderr is written to stderr by "clang --version".
	VersionStderr string

	// VersionExit is the exit status of "clang --version".
	VersionExit int

	// HangVersion makes "clang --version" sleep far beyond any probe timeout.
	HangVersion bool

	// TesterContent is the content of the ./tester artifact.
	TesterContent string

	// SkipTester makes the build succeed without producing ./tester.
	SkipTester bool

	// FailBuild makes the build step exit non-zero.
	FailBuild bool

	// FailClean makes the clean step exit non-zero.
	FailClean bool

	// HangBuild makes the build step sleep far beyond any test timeout.
	HangBuild bool
}

// Toolchain is a fake compiler tree laid out like the real one:
//
//	<root>/
//	  src/                       sources copied by the build
//	  tests/                     harness directory (Dir)
//	    clean.sh  build.sh
//	    tester                   produced by build.sh
//	  Release+Asserts/bin/clang  produced by build.sh
//	  builds.log                 one line per successful build
type Toolchain struct {
	Root string
	Dir  string

	// Clean and Build are the argv of the clean and build steps, run in Dir.
	Clean []string
	Build []string

	// Clang and Tester are artifact paths relative to Dir.
	Clang  string
	Tester string
}

// NewToolchain lays out a fake toolchain tree in a fresh temp directory.
// Nothing is built until the build step runs.
func NewToolchain(t testing.TB, opts ToolchainOptions) *Toolchain {
	t.Helper()

	root := t.TempDir()
	tc := &Toolchain{
		Root:   root,
		Dir:    filepath.Join(root, "tests"),
		Clean:  []string{"sh", "clean.sh"},
		Build:  []string{"sh", "build.sh"},
		Clang:  filepath.Join("..", "Release+Asserts", "bin", "clang"),
		Tester: filepath.Join(".", "tester"),
	}

	mustMkdir(t, tc.Dir)
	mustMkdir(t, filepath.Join(root, "src"))

	WriteExecutable(t, filepath.Join(root, "src", "clang"), clangScript(opts))
	mustWrite(t, filepath.Join(root, "src", "tester"), opts.TesterContent)

	mustWrite(t, filepath.Join(tc.Dir, "clean.sh"), cleanScript(opts))
	mustWrite(t, filepath.Join(tc.Dir, "build.sh"), buildScript(opts))

	return tc
}

// Builds returns how many times the build step has completed.
func (tc *Toolchain) Builds(t testing.TB) int {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(tc.Root, "builds.log"))
	if os.IsNotExist(err) {
		return 0
	}
	if err != nil {
		t.Fatal(err)
	}
	return strings.Count(string(data), "\n")
}

// Built reports whether both build outputs exist.
func (tc *Toolchain) Built() bool {
	for _, p := range []string{tc.Clang, tc.Tester} {
		if _, err := os.Stat(filepath.Join(tc.Dir, p)); err != nil {
			return false
		}
	}
	return true
}

// WriteExecutable writes a shell script and marks it executable.
func WriteExecutable(t testing.TB, path, script string) {
	t.Helper()
	mustMkdir(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
}

func clangScript(opts ToolchainOptions) string {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	if opts.HangVersion {
		b.WriteString("sleep 30\n")
	}
	if opts.VersionOutput != "" {
		fmt.Fprintf(&b, "cat <<'PROVGUARD_EOF'\n%s\nPROVGUARD_EOF\n", opts.VersionOutput)
	}
	if opts.VersionStderr != "" {
		fmt.Fprintf(&b, "cat >&2 <<'PROVGUARD_EOF'\n%s\nPROVGUARD_EOF\n", opts.VersionStderr)
	}
	fmt.Fprintf(&b, "exit %d\n", opts.VersionExit)
	return b.String()
}

func cleanScript(opts ToolchainOptions) string {
	if opts.FailClean {
		return "echo 'make: *** No rule to make target clean' >&2\nexit 2\n"
	}
	return "rm -rf ../Release+Asserts tester\n"
}

func buildScript(opts ToolchainOptions) string {
	if opts.HangBuild {
		return "echo 'compiling...'\nexec sleep 30\n"
	}
	if opts.FailBuild {
		return "echo 'compiling...'\necho 'error: linker command failed' >&2\nexit 1\n"
	}

	var b strings.Builder
	b.WriteString("set -e\n")
	b.WriteString("mkdir -p ../Release+Asserts/bin\n")
	b.WriteString("cp ../src/clang ../Release+Asserts/bin/clang\n")
	b.WriteString("chmod +x ../Release+Asserts/bin/clang\n")
	if !opts.SkipTester {
		b.WriteString("cp ../src/tester tester\n")
	}
	b.WriteString("echo built >> ../builds.log\n")
	return b.String()
}

func mustMkdir(t testing.TB, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
}

func mustWrite(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

// WriteSuite writes a suite file into Dir that runs the fake clean and
// build steps and checks the release cases against the default policy.
// extra is appended verbatim as additional top-level YAML.
func (tc *Toolchain) WriteSuite(t testing.TB, extra string) string {
	t.Helper()
	suite := `name: fake-release
build:
  clean: [sh, clean.sh]
  build: [sh, build.sh]
cases:
  - name: nosvn
    artifact: {kind: file, locator: [./tester]}
  - name: is_correct_clang
    artifact: {kind: command-output, locator: [../Release+Asserts/bin/clang, --version]}
    checks: [required]
  - name: clangver
    artifact: {kind: command-output, locator: [../Release+Asserts/bin/clang, --version]}
    checks: [forbidden]
` + extra
	path := filepath.Join(tc.Dir, "provguard.yaml")
	mustWrite(t, path, suite)
	return path
}
