// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/linediff/internal/diff"
	"github.com/jeranaias/linediff/internal/fsops"
)

func writePair(t *testing.T, original, modified string) (string, string) {
	t.Helper()
	dir := t.TempDir()
	a := filepath.Join(dir, "original.txt")
	b := filepath.Join(dir, "modified.txt")
	require.NoError(t, os.WriteFile(a, []byte(original), 0o644))
	require.NoError(t, os.WriteFile(b, []byte(modified), 0o644))
	return a, b
}

func TestExecute(t *testing.T) {
	a, b := writePair(t, "line1\nline2\nline3\n", "line1\nlineX\nline3\n")
	task := NewTask(a, b)

	require.NoError(t, Execute(context.Background(), task))

	assert.Equal(t, TaskStatusComplete, task.GetStatus())
	result := task.GetResult()
	require.NotNil(t, result)
	assert.Equal(t, b, result.FilePath)
	assert.Equal(t, []diff.DiffOp{
		diff.Equal("line1"),
		diff.Delete("line2"),
		diff.Insert("lineX"),
		diff.Equal("line3"),
	}, result.Ops)
	assert.Equal(t, diff.FileModeModified, result.Stats.FileMode)
}

func TestExecuteMissingFile(t *testing.T) {
	a, _ := writePair(t, "x\n", "y\n")
	task := NewTask(a, filepath.Join(t.TempDir(), "nope.txt"))

	err := Execute(context.Background(), task)

	assert.ErrorIs(t, err, fsops.ErrNotFound)
	assert.Equal(t, TaskStatusFailed, task.GetStatus())
	assert.Nil(t, task.GetResult())
	assert.NotEmpty(t, task.GetError())
}

func TestExecuteTooLarge(t *testing.T) {
	a, b := writePair(t, "small\n", "this one is larger than the limit\n")
	task := NewTask(a, b)

	err := ExecuteWithOptions(context.Background(), task, RunnerOptions{MaxFileSize: 10})

	assert.ErrorIs(t, err, fsops.ErrTooLarge)
	assert.Equal(t, TaskStatusFailed, task.GetStatus())
}

func TestExecuteCanceled(t *testing.T) {
	a, b := writePair(t, "a\n", "b\n")
	task := NewTask(a, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Execute(ctx, task)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, TaskStatusCanceled, task.GetStatus())
}

func TestExecuteTimeout(t *testing.T) {
	a, b := writePair(t, "a\n", "b\n")
	task := NewTask(a, b)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	err := ExecuteWithOptions(ctx, task, RunnerOptions{TaskTimeout: time.Minute})

	assert.ErrorIs(t, err, diff.ErrAborted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, TaskStatusFailed, task.GetStatus())
	assert.Contains(t, task.GetError(), "task timeout after 1m0s")
}

func TestExecuteRejectsStartedTask(t *testing.T) {
	task := NewTask("a", "b")
	task.MarkStarted()

	assert.Error(t, Execute(context.Background(), task))
}

func TestRunnerProcessesQueue(t *testing.T) {
	queue := NewQueue(10)
	runner := NewRunnerWithOptions(queue, RunnerOptions{MaxConcurrent: 2, TaskTimeout: 10 * time.Second})
	runner.Start()
	defer runner.Stop()

	a, b := writePair(t, "a\nb\n", "a\nc\n")
	good := NewTask(a, b)
	bad := NewTask(a, filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, queue.Add(good))
	require.NoError(t, queue.Add(bad))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done, err := queue.Wait(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusComplete, done.GetStatus())
	require.NotNil(t, done.GetResult())
	assert.Equal(t, 1, done.GetResult().Stats.Additions)
	assert.Equal(t, 1, done.GetResult().Stats.Deletions)

	failed, err := queue.Wait(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusFailed, failed.GetStatus())
	assert.ErrorIs(t, failed.Err(), fsops.ErrNotFound)

	assert.Eventually(t, func() bool { return queue.RunningCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestRunnerSkipsCanceledTask(t *testing.T) {
	queue := NewQueue(10)
	a, b := writePair(t, "a\n", "b\n")
	task := NewTask(a, b)
	require.NoError(t, queue.Add(task))
	require.True(t, queue.Cancel(task.ID))

	runner := NewRunner(queue)
	runner.Start()
	defer runner.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	got, err := queue.Wait(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCanceled, got.GetStatus())
	assert.Nil(t, got.GetResult())
}

func TestRunnerStopLeavesQueuedTasks(t *testing.T) {
	queue := NewQueue(10)
	runner := NewRunner(queue)
	runner.Start()
	runner.Stop()
	runner.Stop()

	task := NewTask("a", "b")
	require.NoError(t, queue.Add(task))
	time.Sleep(150 * time.Millisecond)

	assert.Equal(t, TaskStatusQueued, queue.Get(task.ID).GetStatus())
}
