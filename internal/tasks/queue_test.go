// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueOperations(t *testing.T) {
	queue := NewQueue(10)

	task1 := NewTask("a1", "b1")
	task2 := NewTask("a2", "b2")

	require.NoError(t, queue.Add(task1))
	require.NoError(t, queue.Add(task2))
	assert.Equal(t, 2, queue.Count())

	retrieved := queue.Get(task1.ID)
	require.NotNil(t, retrieved)
	assert.Equal(t, "a1", retrieved.OriginalPath)
	assert.Nil(t, queue.Get("missing"))

	assert.Len(t, queue.Queued(), 2)
}

func TestQueueFull(t *testing.T) {
	queue := NewQueueWithOptions(10, 1)

	require.NoError(t, queue.Add(NewTask("a", "b")))
	err := queue.Add(NewTask("c", "d"))

	assert.ErrorIs(t, err, ErrQueueFull)
}

func TestQueueRejectsStartedTask(t *testing.T) {
	queue := NewQueue(10)
	task := NewTask("a", "b")
	task.MarkStarted()

	assert.Error(t, queue.Add(task))
}

func TestQueueClaimAndFinish(t *testing.T) {
	queue := NewQueue(10)
	for i := 0; i < 3; i++ {
		require.NoError(t, queue.Add(NewTask("a", "b")))
	}

	claimed := queue.claim(2)
	require.Len(t, claimed, 2)
	assert.Equal(t, 2, queue.RunningCount())
	assert.Len(t, queue.Queued(), 1)

	// Already-running tasks are never claimed twice.
	again := queue.claim(5)
	require.Len(t, again, 1)
	assert.NotEqual(t, claimed[0].ID, again[0].ID)
	assert.NotEqual(t, claimed[1].ID, again[0].ID)

	claimed[0].SetError(errors.New("boom"))
	queue.finish(claimed[0])

	assert.Equal(t, 2, queue.RunningCount())
	assert.Len(t, queue.Completed(), 1)

	n := <-queue.Notifications()
	assert.Equal(t, claimed[0].ID, n.TaskID)
	assert.Equal(t, TaskStatusFailed, n.Status)
	assert.Equal(t, "boom", n.Error)
}

func TestQueueCancel(t *testing.T) {
	queue := NewQueue(10)
	queued := NewTask("a", "b")
	running := NewTask("c", "d")
	require.NoError(t, queue.Add(running))
	require.NoError(t, queue.Add(queued))

	claimed := queue.claim(1)
	require.Len(t, claimed, 1)
	require.Equal(t, running.ID, claimed[0].ID)

	assert.True(t, queue.Cancel(queued.ID))
	assert.True(t, queue.Cancel(running.ID))
	assert.False(t, queue.Cancel(queued.ID))
	assert.False(t, queue.Cancel("missing"))

	assert.Equal(t, TaskStatusCanceled, queue.Get(queued.ID).GetStatus())
	assert.Equal(t, TaskStatusCanceled, queue.Get(running.ID).GetStatus())

	n := <-queue.Notifications()
	assert.Equal(t, queued.ID, n.TaskID)
	assert.Equal(t, TaskStatusCanceled, n.Status)
}

func TestQueueHistoryTrim(t *testing.T) {
	queue := NewQueue(2)

	var ids []string
	for i := 0; i < 4; i++ {
		task := NewTask("a", "b")
		ids = append(ids, task.ID)
		require.NoError(t, queue.Add(task))
	}
	for _, task := range queue.claim(4) {
		task.MarkCanceled()
		queue.finish(task)
	}

	assert.Equal(t, 2, queue.Count())
	assert.Nil(t, queue.Get(ids[0]))
	assert.Nil(t, queue.Get(ids[1]))
	assert.NotNil(t, queue.Get(ids[3]))
}

func TestQueueClear(t *testing.T) {
	queue := NewQueue(0)
	done := NewTask("a", "b")
	pending := NewTask("c", "d")
	require.NoError(t, queue.Add(done))
	require.NoError(t, queue.Add(pending))
	queue.Cancel(done.ID)

	queue.Clear()

	assert.Equal(t, 1, queue.Count())
	assert.NotNil(t, queue.Get(pending.ID))
}

func TestQueueWait(t *testing.T) {
	queue := NewQueue(10)
	task := NewTask("a", "b")
	require.NoError(t, queue.Add(task))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := queue.Wait(ctx, task.ID)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	go queue.Cancel(task.ID)
	got, err := queue.Wait(context.Background(), task.ID)
	require.NoError(t, err)
	assert.Equal(t, TaskStatusCanceled, got.GetStatus())

	_, err = queue.Wait(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestQueueSummary(t *testing.T) {
	queue := NewQueue(10)
	require.NoError(t, queue.Add(NewTask("a", "b")))
	canceled := NewTask("c", "d")
	require.NoError(t, queue.Add(canceled))
	queue.Cancel(canceled.ID)

	assert.Equal(t, "Running: 0 | Queued: 1 | Completed: 0 | Failed: 0 | Canceled: 1", queue.Summary())
}
