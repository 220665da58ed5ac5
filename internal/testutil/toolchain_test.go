package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dir string, args []string) ([]byte, error) {
	t.Helper()
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

func TestToolchain_BuildAndClean(t *testing.T) {
	tc := NewToolchain(t, ToolchainOptions{
		VersionOutput: "clang-cgc version 3.4",
		TesterContent: "tester built by clang-cgc",
	})
	assert.False(t, tc.Built())
	assert.Equal(t, 0, tc.Builds(t))

	_, err := run(t, tc.Dir, tc.Build)
	require.NoError(t, err)
	assert.True(t, tc.Built())
	assert.Equal(t, 1, tc.Builds(t))

	out, err := run(t, tc.Dir, []string{tc.Clang, "--version"})
	require.NoError(t, err)
	assert.Equal(t, "clang-cgc version 3.4\n", string(out))

	data, err := os.ReadFile(filepath.Join(tc.Dir, tc.Tester))
	require.NoError(t, err)
	assert.Equal(t, "tester built by clang-cgc", string(data))

	_, err = run(t, tc.Dir, tc.Clean)
	require.NoError(t, err)
	assert.False(t, tc.Built())
}

func TestToolchain_FailBuild(t *testing.T) {
	tc := NewToolchain(t, ToolchainOptions{FailBuild: true})

	out, err := run(t, tc.Dir, tc.Build)
	require.Error(t, err)
	assert.Contains(t, string(out), "linker command failed")
	assert.False(t, tc.Built())
}
