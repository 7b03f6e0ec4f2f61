// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apex/log"
)

var (
	ErrQueueFull    = errors.New("queue is full")
	ErrTaskNotFound = errors.New("task not found")
)

// =============================================================================
// TASK QUEUE
// =============================================================================

// Queue holds diff tasks from submission until they age out of history.
type Queue struct {
	// tasks is the list of all tasks (both queued and completed)
	tasks []*Task

	// running tracks currently running tasks by ID
	running map[string]*Task

	// maxHistory is the maximum number of completed tasks to keep
	maxHistory int

	// maxQueueSize is the maximum number of queued tasks allowed (0 = unlimited)
	maxQueueSize int

	// mu protects concurrent access to the queue
	mu sync.RWMutex

	// notifyChan sends notifications when tasks finish
	notifyChan chan TaskNotification

	// added wakes the runner when work arrives
	added chan struct{}
}

// TaskNotification represents a notification about a task state change.
type TaskNotification struct {
	TaskID      string
	Description string
	Status      TaskStatus
	Error       string
	Duration    time.Duration
}

// =============================================================================
// QUEUE CREATION
// =============================================================================

// NewQueue creates a new task queue.
// maxHistory sets the maximum number of completed tasks to keep (0 = unlimited).
func NewQueue(maxHistory int) *Queue {
	return NewQueueWithOptions(maxHistory, 0)
}

// NewQueueWithOptions creates a new task queue with custom settings.
// maxHistory: maximum number of completed tasks to keep (0 = unlimited)
// maxQueueSize: maximum number of queued tasks allowed (0 = unlimited)
func NewQueueWithOptions(maxHistory, maxQueueSize int) *Queue {
	return &Queue{
		tasks:        make([]*Task, 0),
		running:      make(map[string]*Task),
		maxHistory:   maxHistory,
		maxQueueSize: maxQueueSize,
		notifyChan:   make(chan TaskNotification, 100),
		added:        make(chan struct{}, 1),
	}
}

// =============================================================================
// TASK MANAGEMENT
// =============================================================================

// Add adds a queued task. It returns ErrQueueFull when the queue already
// holds maxQueueSize queued tasks.
func (q *Queue) Add(task *Task) error {
	if task.GetStatus() != TaskStatusQueued {
		return fmt.Errorf("task %s is %s, not queued", task.ID, task.GetStatus())
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxQueueSize > 0 {
		queuedCount := 0
		for _, t := range q.tasks {
			if t.GetStatus() == TaskStatusQueued {
				queuedCount++
			}
		}
		if queuedCount >= q.maxQueueSize {
			return fmt.Errorf("%w: %d queued tasks (max: %d)", ErrQueueFull, queuedCount, q.maxQueueSize)
		}
	}

	q.tasks = append(q.tasks, task)

	select {
	case q.added <- struct{}{}:
	default:
	}
	return nil
}

// Get retrieves a copy of a task by ID, or nil if it is unknown.
func (q *Queue) Get(id string) *Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	for _, task := range q.tasks {
		if task.ID == id {
			return task.Clone()
		}
	}
	return nil
}

// Wait blocks until the task finishes or ctx ends and returns a copy of it.
func (q *Queue) Wait(ctx context.Context, id string) (*Task, error) {
	q.mu.RLock()
	var task *Task
	for _, t := range q.tasks {
		if t.ID == id {
			task = t
			break
		}
	}
	q.mu.RUnlock()

	if task == nil {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	select {
	case <-task.Done():
		return task.Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel cancels a queued or running task by ID.
// Returns true if the task was successfully canceled.
func (q *Queue) Cancel(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if task, ok := q.running[id]; ok {
		// The runner notices through the context and reports the cancel.
		return task.Cancel()
	}

	for _, task := range q.tasks {
		if task.ID == id && task.Cancel() {
			q.notify(notificationFor(task))
			q.cleanupLocked()
			return true
		}
	}
	return false
}

// claim moves the oldest queued tasks, up to limit, to Running and returns
// them. Claiming under the queue lock keeps a task from being started twice.
func (q *Queue) claim(limit int) []*Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	var claimed []*Task
	for _, task := range q.tasks {
		if len(claimed) >= limit {
			break
		}
		if task.MarkStarted() {
			q.running[task.ID] = task
			claimed = append(claimed, task)
		}
	}
	return claimed
}

// finish removes a task from the running set after it reached a terminal
// state, and reports it.
func (q *Queue) finish(task *Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.running, task.ID)
	q.notify(notificationFor(task))
	q.cleanupLocked()
}

func notificationFor(task *Task) TaskNotification {
	return TaskNotification{
		TaskID:      task.ID,
		Description: task.Description(),
		Status:      task.GetStatus(),
		Error:       task.GetError(),
		Duration:    task.Duration(),
	}
}

// =============================================================================
// QUEUE QUERIES
// =============================================================================

// All returns a copy of all tasks.
func (q *Queue) All() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]*Task, len(q.tasks))
	for i, task := range q.tasks {
		result[i] = task.Clone()
	}
	return result
}

// Running returns a copy of all running tasks.
func (q *Queue) Running() []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]*Task, 0, len(q.running))
	for _, task := range q.running {
		result = append(result, task.Clone())
	}
	return result
}

// Queued returns copies of the tasks that have not started yet.
func (q *Queue) Queued() []*Task {
	return q.filter(func(s TaskStatus) bool { return s == TaskStatusQueued })
}

// Completed returns all finished tasks (success, failure, or canceled).
func (q *Queue) Completed() []*Task {
	return q.filter(TaskStatus.IsTerminal)
}

func (q *Queue) filter(keep func(TaskStatus) bool) []*Task {
	q.mu.RLock()
	defer q.mu.RUnlock()

	result := make([]*Task, 0)
	for _, task := range q.tasks {
		if keep(task.GetStatus()) {
			result = append(result, task.Clone())
		}
	}
	return result
}

// Count returns the total number of tasks.
func (q *Queue) Count() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.tasks)
}

// RunningCount returns the number of running tasks.
func (q *Queue) RunningCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.running)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

// Notifications returns the notification channel.
// Consumers can read from this channel to receive task completion notifications.
func (q *Queue) Notifications() <-chan TaskNotification {
	return q.notifyChan
}

// notify sends a notification (must be called with lock held).
func (q *Queue) notify(notification TaskNotification) {
	select {
	case q.notifyChan <- notification:
	default:
		log.WithFields(log.Fields{
			"task":   notification.TaskID,
			"status": notification.Status,
		}).Warn("tasks: notification channel full, dropped notification")
	}
}

// =============================================================================
// CLEANUP
// =============================================================================

// cleanupLocked drops the oldest finished tasks beyond maxHistory.
// Must be called with lock held. Age is slice position, not completion time.
func (q *Queue) cleanupLocked() {
	if q.maxHistory <= 0 {
		return
	}

	completedCount := 0
	for _, task := range q.tasks {
		if task.IsComplete() {
			completedCount++
		}
	}
	if completedCount <= q.maxHistory {
		return
	}

	toRemove := completedCount - q.maxHistory
	newTasks := make([]*Task, 0, len(q.tasks)-toRemove)
	for _, task := range q.tasks {
		if task.IsComplete() && toRemove > 0 {
			toRemove--
			continue
		}
		newTasks = append(newTasks, task)
	}
	q.tasks = newTasks
}

// Clear removes all completed tasks from the history.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()

	newTasks := make([]*Task, 0)
	for _, task := range q.tasks {
		if !task.IsComplete() {
			newTasks = append(newTasks, task)
		}
	}
	q.tasks = newTasks
}

// =============================================================================
// FORMATTING
// =============================================================================

// Summary returns a formatted summary of the queue.
func (q *Queue) Summary() string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	var queued, completed, failed, canceled int
	for _, task := range q.tasks {
		switch task.GetStatus() {
		case TaskStatusQueued:
			queued++
		case TaskStatusComplete:
			completed++
		case TaskStatusFailed:
			failed++
		case TaskStatusCanceled:
			canceled++
		}
	}

	return fmt.Sprintf("Running: %d | Queued: %d | Completed: %d | Failed: %d | Canceled: %d",
		len(q.running), queued, completed, failed, canceled)
}
