package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/playspec/packages/core/outcome"
	"github.com/abdul-hamid-achik/playspec/packages/core/runner"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func suiteResult(loginOutcome outcome.Outcome) *runner.RunResult {
	r := &runner.RunResult{File: "login.playspec.yaml", Suite: "Login"}
	checks := []*runner.CheckResult{
		{Name: "Login page", Kind: runner.KindUI, Outcome: loginOutcome, Duration: 1500 * time.Millisecond, Attempts: 1},
		{Name: "Token", Kind: runner.KindAPI, Outcome: outcome.Success, Duration: 80 * time.Millisecond, Attempts: 1},
		{Name: "Legacy", Kind: runner.KindAPI, Outcome: outcome.Skipped, SkipReason: "retired"},
	}
	if loginOutcome != outcome.Success {
		checks[0].Error = errors.New("timed out after 500ms waiting for #login to be visible")
	}
	for _, c := range checks {
		r.Results = append(r.Results, c)
		switch {
		case c.Outcome == outcome.Skipped:
			r.Skipped++
		case c.Passed():
			r.Passed++
		default:
			r.Failed++
		}
	}
	return r
}

func TestStore_RecordAndRead(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	run, err := store.Record(ctx, started, 2*time.Second, []*runner.RunResult{suiteResult(outcome.Timeout)})
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 1, run.Passed)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 1, run.Skipped)

	runs, err := store.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.True(t, started.Equal(runs[0].StartedAt))
	assert.Equal(t, 2*time.Second, runs[0].Duration)

	checks, err := store.Checks(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, checks, 3)
	assert.Equal(t, "Login page", checks[0].Name)
	assert.Equal(t, "ui", checks[0].Kind)
	assert.Equal(t, outcome.Timeout, checks[0].Outcome)
	assert.Equal(t, 1500*time.Millisecond, checks[0].Duration)
	assert.Contains(t, checks[0].Error, "#login")
	assert.Equal(t, outcome.Skipped, checks[2].Outcome)
}

func TestStore_RunsNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		run, err := store.Record(ctx, base.Add(time.Duration(i)*time.Hour), time.Second, []*runner.RunResult{suiteResult(outcome.Success)})
		require.NoError(t, err)
		ids = append(ids, run.ID)
	}

	runs, err := store.Runs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
}

func TestStore_Flaky(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, o := range []outcome.Outcome{outcome.Success, outcome.Timeout, outcome.Success, outcome.Failure} {
		_, err := store.Record(ctx, base.Add(time.Duration(i)*time.Minute), time.Second, []*runner.RunResult{suiteResult(o)})
		require.NoError(t, err)
	}

	flaky, err := store.Flaky(ctx, 10)
	require.NoError(t, err)
	require.Len(t, flaky, 1)
	assert.Equal(t, Flaky{Suite: "Login", Name: "Login page", Passed: 2, Failed: 2}, flaky[0])

	// Only the last run: one failure, no pass
	flaky, err = store.Flaky(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, flaky)
}

func TestDataSource(t *testing.T) {
	assert.Equal(t, "/tmp/h.db", dataSource("sqlite:///tmp/h.db"))
	assert.Equal(t, "./h.db", dataSource("sqlite:./h.db"))
	assert.Equal(t, "h.db", dataSource(" h.db "))
}
