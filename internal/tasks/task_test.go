// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/jeranaias/linediff/internal/diff"
)

func TestNewTask(t *testing.T) {
	task := NewTask("old/a.txt", "new/a.txt")

	if task.ID == "" {
		t.Error("Task ID should not be empty")
	}
	if task.OriginalPath != "old/a.txt" || task.ModifiedPath != "new/a.txt" {
		t.Errorf("Unexpected paths: %s, %s", task.OriginalPath, task.ModifiedPath)
	}
	if task.GetStatus() != TaskStatusQueued {
		t.Errorf("Expected status Queued, got %s", task.GetStatus())
	}
	if task.Description() != "a.txt -> a.txt" {
		t.Errorf("Unexpected description %q", task.Description())
	}
}

func TestTaskStatus(t *testing.T) {
	task := NewTask("a", "b")

	if !task.MarkStarted() {
		t.Fatal("MarkStarted should succeed on a queued task")
	}
	if task.GetStatus() != TaskStatusRunning {
		t.Error("Task should be running after MarkStarted()")
	}
	if task.MarkStarted() {
		t.Error("MarkStarted should fail on a running task")
	}

	d := diff.New("b", "x", "y", diff.ComputeDiff("x", "y"))
	task.MarkComplete(d)
	if task.GetStatus() != TaskStatusComplete {
		t.Error("Task should be complete after MarkComplete()")
	}
	if task.GetResult() != d {
		t.Error("Result should be stored")
	}

	select {
	case <-task.Done():
	default:
		t.Error("Done should be closed after completion")
	}

	if task.Duration() < 0 {
		t.Error("Task duration should not be negative")
	}
}

func TestTaskTerminalStateSticks(t *testing.T) {
	task := NewTask("a", "b")
	task.MarkStarted()
	task.Cancel()

	task.MarkComplete(&diff.Diff{})
	task.SetError(errors.New("late"))

	if task.GetStatus() != TaskStatusCanceled {
		t.Errorf("Expected Canceled to stick, got %s", task.GetStatus())
	}
	if task.GetResult() != nil || task.GetError() != "" {
		t.Error("Late results must not be recorded")
	}
	if !errors.Is(task.Err(), context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", task.Err())
	}
}

func TestSetStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to TaskStatus
		ok       bool
	}{
		{TaskStatusQueued, TaskStatusRunning, true},
		{TaskStatusQueued, TaskStatusCanceled, true},
		{TaskStatusQueued, TaskStatusComplete, false},
		{TaskStatusRunning, TaskStatusComplete, true},
		{TaskStatusRunning, TaskStatusFailed, true},
		{TaskStatusRunning, TaskStatusQueued, false},
		{TaskStatusComplete, TaskStatusRunning, false},
		{TaskStatusFailed, TaskStatusFailed, true},
	}

	for _, tt := range tests {
		task := NewTask("a", "b")
		task.Status = tt.from

		err := task.SetStatus(tt.to)
		if (err == nil) != tt.ok {
			t.Errorf("%s -> %s: expected ok=%v, got err=%v", tt.from, tt.to, tt.ok, err)
		}
	}
}

func TestTaskCancel(t *testing.T) {
	task := NewTask("a", "b")
	task.MarkStarted()

	canceled := false
	task.SetCancelFunc(func() { canceled = true })

	if !task.Cancel() {
		t.Error("Cancel should succeed for running task")
	}
	if !canceled {
		t.Error("Cancel should invoke the context cancel func")
	}
	if task.GetStatus() != TaskStatusCanceled {
		t.Error("Task should be canceled")
	}
	if task.Cancel() {
		t.Error("Second cancel should fail")
	}
}

func TestTaskSummaryAndInfo(t *testing.T) {
	task := NewTask("dir/old.txt", "dir/new.txt")
	task.MarkStarted()
	task.MarkComplete(diff.New("dir/new.txt", "a", "a\nb", diff.ComputeDiff("a", "a\nb")))

	info := task.Info()
	if info.ID != task.ID || info.Status != TaskStatusComplete || info.Result == nil {
		t.Errorf("Unexpected info: %+v", info)
	}

	want := "[" + task.ID[:8] + "] old.txt -> new.txt - Complete"
	if got := task.Summary(); len(got) < len(want) || got[:len(want)] != want {
		t.Errorf("Summary %q should start with %q", got, want)
	}
}

func TestTaskClone(t *testing.T) {
	task := NewTask("a", "b")
	task.MarkStarted()
	task.SetError(errors.New("boom"))

	clone := task.Clone()
	if clone.ID != task.ID || clone.GetStatus() != TaskStatusFailed || clone.GetError() != "boom" {
		t.Errorf("Clone mismatch: %+v", clone)
	}
	if clone.Err() == nil {
		t.Error("Clone should carry the error value")
	}
}
