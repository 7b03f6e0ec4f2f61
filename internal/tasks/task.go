// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/linediff/internal/diff"
)

// =============================================================================
// TASK STATUS
// =============================================================================

// TaskStatus represents the current state of a diff task.
type TaskStatus string

const (
	// TaskStatusQueued indicates the task is waiting to be executed
	TaskStatusQueued TaskStatus = "Queued"

	// TaskStatusRunning indicates the task is currently executing
	TaskStatusRunning TaskStatus = "Running"

	// TaskStatusComplete indicates the diff was computed
	TaskStatusComplete TaskStatus = "Complete"

	// TaskStatusFailed indicates an input could not be read or the diff gave up
	TaskStatusFailed TaskStatus = "Failed"

	// TaskStatusCanceled indicates the task was canceled by the caller
	TaskStatusCanceled TaskStatus = "Canceled"
)

// String returns the string representation of the task status.
func (s TaskStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusComplete || s == TaskStatusFailed || s == TaskStatusCanceled
}

// =============================================================================
// TASK STRUCTURE
// =============================================================================

// Task is one request to diff two files.
type Task struct {
	// ID is a unique identifier for this task
	ID string

	// OriginalPath and ModifiedPath name the inputs
	OriginalPath string
	ModifiedPath string

	// Status is the current state of the task
	Status TaskStatus

	// CreatedAt is when the task was created
	CreatedAt time.Time

	// StartTime is when the task started running
	StartTime time.Time

	// EndTime is when the task reached a terminal state
	EndTime time.Time

	// Result holds the diff once the task is Complete
	Result *diff.Diff

	// Error is the error message if the task failed
	Error string

	err    error
	cancel context.CancelFunc
	done   chan struct{}

	// mu protects concurrent access to the task
	mu sync.RWMutex
}

// Info is a serializable snapshot of a task.
type Info struct {
	ID           string     `json:"id"`
	OriginalPath string     `json:"original_path"`
	ModifiedPath string     `json:"modified_path"`
	Status       TaskStatus `json:"status"`
	DurationMS   int64      `json:"duration_ms"`
	Result       *diff.Diff `json:"result,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// =============================================================================
// TASK CREATION
// =============================================================================

// NewTask creates a queued task that diffs originalPath against modifiedPath.
func NewTask(originalPath, modifiedPath string) *Task {
	return &Task{
		ID:           uuid.New().String(),
		OriginalPath: originalPath,
		ModifiedPath: modifiedPath,
		Status:       TaskStatusQueued,
		CreatedAt:    time.Now(),
		done:         make(chan struct{}),
	}
}

// =============================================================================
// TASK METHODS
// =============================================================================

// SetStatus updates the task status (thread-safe).
// Valid transitions: Queued -> Running -> Complete/Failed/Canceled, and
// Queued -> Canceled.
func (t *Task) SetStatus(status TaskStatus) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !isValidTransition(t.Status, status) {
		return fmt.Errorf("invalid status transition from %s to %s", t.Status, status)
	}

	t.Status = status
	if status.IsTerminal() {
		t.finishLocked()
	}
	return nil
}

func isValidTransition(from, to TaskStatus) bool {
	// Setting the same status is idempotent
	if from == to {
		return true
	}

	switch from {
	case TaskStatusQueued:
		return to == TaskStatusRunning || to == TaskStatusCanceled
	case TaskStatusRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

// GetStatus returns the current task status (thread-safe).
func (t *Task) GetStatus() TaskStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Status
}

// GetResult returns the diff, or nil unless the task is Complete.
func (t *Task) GetResult() *diff.Diff {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Result
}

// GetError returns the error message (thread-safe).
func (t *Task) GetError() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.Error
}

// Err returns the error the task failed with, for errors.Is inspection.
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Done is closed once the task reaches a terminal state.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// MarkStarted moves a queued task to Running. It reports false if the task
// was no longer queued (for example, canceled in the meantime).
func (t *Task) MarkStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status != TaskStatusQueued {
		return false
	}
	t.Status = TaskStatusRunning
	t.StartTime = time.Now()
	return true
}

// MarkComplete records the result. A task that already reached a terminal
// state keeps it.
func (t *Task) MarkComplete(result *diff.Diff) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status.IsTerminal() {
		return
	}
	t.Status = TaskStatusComplete
	t.Result = result
	t.finishLocked()
}

// SetError records err and marks the task as failed.
func (t *Task) SetError(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status.IsTerminal() {
		return
	}
	t.Status = TaskStatusFailed
	t.Error = err.Error()
	t.err = err
	t.finishLocked()
}

// MarkCanceled marks the task as canceled.
func (t *Task) MarkCanceled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Status.IsTerminal() {
		return
	}
	t.Status = TaskStatusCanceled
	t.err = context.Canceled
	t.finishLocked()
}

// finishLocked stamps EndTime and releases waiters. Must hold mu.
func (t *Task) finishLocked() {
	t.EndTime = time.Now()
	if t.done != nil {
		select {
		case <-t.done:
		default:
			close(t.done)
		}
	}
}

// SetCancelFunc stores the context cancel function for this task. It must be
// called at most once, before the task can be canceled.
func (t *Task) SetCancelFunc(cancel context.CancelFunc) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancel = cancel
}

// Cancel cancels a queued or running task.
// Returns true if the task was canceled, false if it had already finished.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.Status.IsTerminal() {
		return false
	}

	if t.cancel != nil {
		t.cancel()
	}

	t.Status = TaskStatusCanceled
	t.err = context.Canceled
	t.finishLocked()
	return true
}

// Duration returns how long the task has been running or took to complete.
func (t *Task) Duration() time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.StartTime.IsZero() {
		return 0
	}
	if t.EndTime.IsZero() {
		return time.Since(t.StartTime)
	}
	return t.EndTime.Sub(t.StartTime)
}

// IsRunning returns true if the task is currently running.
func (t *Task) IsRunning() bool {
	return t.GetStatus() == TaskStatusRunning
}

// IsComplete returns true if the task has finished (success, failure, or canceled).
func (t *Task) IsComplete() bool {
	return t.GetStatus().IsTerminal()
}

// Description names the two inputs.
func (t *Task) Description() string {
	return fmt.Sprintf("%s -> %s", filepath.Base(t.OriginalPath), filepath.Base(t.ModifiedPath))
}

// Summary returns a one-line summary of the task.
func (t *Task) Summary() string {
	status := t.GetStatus()
	duration := t.Duration()

	summary := fmt.Sprintf("[%s] %s - %s", t.ID[:8], t.Description(), status)

	if duration > 0 {
		summary += fmt.Sprintf(" (%.1fs)", duration.Seconds())
	}
	if result := t.GetResult(); result != nil {
		summary += ": " + result.Summary()
	} else if msg := t.GetError(); msg != "" {
		summary += ": " + msg
	}

	return summary
}

// Info returns a serializable snapshot of the task.
func (t *Task) Info() Info {
	duration := t.Duration()

	t.mu.RLock()
	defer t.mu.RUnlock()

	return Info{
		ID:           t.ID,
		OriginalPath: t.OriginalPath,
		ModifiedPath: t.ModifiedPath,
		Status:       t.Status,
		DurationMS:   duration.Milliseconds(),
		Result:       t.Result,
		Error:        t.Error,
	}
}

// Clone creates a copy of the task for reading. The Result is shared; diffs
// are never modified after a task completes.
func (t *Task) Clone() *Task {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return &Task{
		ID:           t.ID,
		OriginalPath: t.OriginalPath,
		ModifiedPath: t.ModifiedPath,
		Status:       t.Status,
		CreatedAt:    t.CreatedAt,
		StartTime:    t.StartTime,
		EndTime:      t.EndTime,
		Result:       t.Result,
		Error:        t.Error,
		err:          t.err,
		done:         t.done,
	}
}
