package manifest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
)

func openTemp(t *testing.T) *Manifest {
	t.Helper()
	m, err := Open(filepath.Join(t.TempDir(), "manifest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	m := openTemp(t)
	runID := uuid.NewString()

	require.NoError(t, m.StartRun(ctx, runID, "params.json5", 2))

	run, err := m.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, StateRunning, run.State)
	assert.Equal(t, 2, run.Workers)
	assert.Empty(t, run.FinishedAt)

	require.NoError(t, m.RecordPartition(ctx, Partition{RunID: runID, Index: 1, File: "lc_1.jsonl", State: StateFailed, Error: "boom"}))
	require.NoError(t, m.RecordPartition(ctx, Partition{RunID: runID, Index: 0, File: "lc_0.jsonl", Rows: 10, State: StateDone, Seconds: 1.5}))
	// Re-recording a partition replaces it.
	require.NoError(t, m.RecordPartition(ctx, Partition{RunID: runID, Index: 1, File: "lc_1.jsonl", Rows: 10, State: StateDone}))

	parts, err := m.Partitions(ctx, runID)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, 0, parts[0].Index)
	assert.Equal(t, 1.5, parts[0].Seconds)
	assert.Equal(t, StateDone, parts[1].State)
	assert.Empty(t, parts[1].Error)

	require.NoError(t, m.FinishRun(ctx, runID, StateDone))
	run, err = m.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, StateDone, run.State)
	assert.NotEmpty(t, run.FinishedAt)
}

func TestUnknownRun(t *testing.T) {
	ctx := context.Background()
	m := openTemp(t)

	_, err := m.GetRun(ctx, "nope")
	assert.True(t, kerrors.IsDataFormat(err))
	assert.True(t, kerrors.IsDataFormat(m.FinishRun(ctx, "nope", StateDone)))

	parts, err := m.Partitions(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, parts)
}

func TestReopenKeepsRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "manifest.db")

	m, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, m.StartRun(ctx, "r1", "in.csv", 1))
	require.NoError(t, m.Close())

	m, err = Open(path)
	require.NoError(t, err)
	defer m.Close()
	run, err := m.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "in.csv", run.Input)
}
