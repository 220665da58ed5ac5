package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/provguard/internal/store"
	"github.com/roach88/provguard/internal/testutil"
)

func TestHistory_IdenticalRuns(t *testing.T) {
	tc := cleanToolchain(t)
	suite := tc.WriteSuite(t, "")
	db := filepath.Join(t.TempDir(), "runs.db")

	for i := 0; i < 2; i++ {
		out, err := execute(t, "--suite", suite, "--history", db)
		require.NoError(t, err)
		assert.Contains(t, out, "Recorded run ")
	}

	out, err := execute(t, "history", "--history", db)
	require.NoError(t, err)
	assert.Contains(t, out, "Comparing runs of fake-release")
	assert.Contains(t, out, "✓ Outcomes identical")
}

func TestHistory_OutcomeChanged(t *testing.T) {
	tc := cleanToolchain(t)
	suite := tc.WriteSuite(t, "")
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, "--suite", suite, "--history", db)
	require.NoError(t, err)

	// The next build ships a tester carrying a checkout path.
	require.NoError(t, os.WriteFile(filepath.Join(tc.Root, "src", "tester"),
		[]byte("clang-cgc /src/svn/svn/trunk"), 0644))
	_, err = execute(t, "--suite", suite, "--history", db)
	require.Error(t, err)

	out, err := execute(t, "history", "--history", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string        `json:"status"`
		Data   HistoryResult `json:"data"`
		Error  *CLIError     `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeHistoryDiff, resp.Error.Code)
	assert.False(t, resp.Data.Identical)
	assert.True(t, resp.Data.Previous.Pass)
	assert.False(t, resp.Data.Current.Pass)
	assert.Contains(t, resp.Data.Differences, store.Difference{Case: "nosvn", Field: "pass", Previous: "true", Current: "false"})
}

func TestHistory_RecordsBuildFailure(t *testing.T) {
	tc := testutil.NewToolchain(t, testutil.ToolchainOptions{FailBuild: true})
	suite := tc.WriteSuite(t, "")
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, "--suite", suite, "--history", db)
	require.Error(t, err)
	_, err = execute(t, "--suite", suite, "--history", db)
	require.Error(t, err)

	out, err := execute(t, "history", "--history", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Outcomes identical")
}

func TestHistory_SkipsInterruptedRun(t *testing.T) {
	tc := testutil.NewToolchain(t, testutil.ToolchainOptions{HangBuild: true})
	suite := tc.WriteSuite(t, "")
	db := filepath.Join(t.TempDir(), "runs.db")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(200*time.Millisecond, cancel)

	out, err := executeContext(t, ctx, "--suite", suite, "--history", db, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFatal, GetExitCode(err))

	var resp struct {
		Data struct {
			Aborted bool   `json:"aborted"`
			Fatal   string `json:"fatal"`
			RunID   string `json:"run_id"`
		} `json:"data"`
		Error *CLIError `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeCancelled, resp.Error.Code)
	assert.True(t, resp.Data.Aborted)
	assert.Equal(t, context.Canceled.Error(), resp.Data.Fatal)
	assert.Empty(t, resp.Data.RunID)

	out, err = execute(t, "history", "--history", db)
	require.Error(t, err)
	assert.Contains(t, out, "no runs recorded")
}

func TestHistory_NeedsTwoRuns(t *testing.T) {
	tc := cleanToolchain(t)
	suite := tc.WriteSuite(t, "")
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := execute(t, "--suite", suite, "--history", db)
	require.NoError(t, err)

	out, err := execute(t, "history", "--history", db)
	require.Error(t, err)
	assert.Equal(t, ExitFatal, GetExitCode(err))
	assert.Contains(t, out, "need at least two recorded runs of fake-release, found 1")
}

func TestHistory_EmptyDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := execute(t, "history", "--history", db)
	require.Error(t, err)
	assert.Equal(t, ExitFatal, GetExitCode(err))
	assert.Contains(t, out, "no runs recorded")
}

func TestHistory_RequiresDatabaseFlag(t *testing.T) {
	_, err := execute(t, "history")
	require.Error(t, err)
	assert.Equal(t, ExitFatal, GetExitCode(err))
}
