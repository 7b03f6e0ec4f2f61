// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"

	"github.com/jeranaias/linediff/internal/diff"
	"github.com/jeranaias/linediff/internal/fsops"
)

// =============================================================================
// TASK RUNNER
// =============================================================================

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// MaxConcurrent is the number of diffs computed at once (default 5)
	MaxConcurrent int

	// TaskTimeout bounds each task, reading included (0 = no timeout)
	TaskTimeout time.Duration

	// MaxFileSize is the per-input read limit (0 = fsops default)
	MaxFileSize int64
}

// DefaultRunnerOptions returns the options used by NewRunner.
func DefaultRunnerOptions() RunnerOptions {
	return RunnerOptions{
		MaxConcurrent: 5,
		TaskTimeout:   30 * time.Second,
		MaxFileSize:   fsops.DefaultMaxFileSize,
	}
}

// Runner executes diff tasks from a queue on a bounded pool of goroutines.
type Runner struct {
	queue     *Queue
	opts      RunnerOptions
	wg        sync.WaitGroup
	stop      chan struct{}
	stopOnce  sync.Once
	stopped   atomic.Bool   // no new tasks after Stop
	semaphore chan struct{} // limits concurrency
}

// NewRunner creates a task runner for the given queue with default options.
func NewRunner(queue *Queue) *Runner {
	return NewRunnerWithOptions(queue, DefaultRunnerOptions())
}

// NewRunnerWithOptions creates a task runner with custom settings.
func NewRunnerWithOptions(queue *Queue, opts RunnerOptions) *Runner {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 5
	}
	if opts.MaxFileSize == 0 {
		opts.MaxFileSize = fsops.DefaultMaxFileSize
	}
	return &Runner{
		queue:     queue,
		opts:      opts,
		stop:      make(chan struct{}),
		semaphore: make(chan struct{}, opts.MaxConcurrent),
	}
}

// =============================================================================
// RUNNER LIFECYCLE
// =============================================================================

// Start begins processing tasks from the queue.
func (r *Runner) Start() {
	r.wg.Add(1)
	go r.processLoop()
}

// Stop stops taking new tasks and waits for running ones to finish.
// Tasks still queued stay queued.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.stopped.Store(true)
		close(r.stop)
	})
	r.wg.Wait()
}

// =============================================================================
// TASK PROCESSING
// =============================================================================

// processLoop starts queued tasks whenever a worker slot is free.
func (r *Runner) processLoop() {
	defer r.wg.Done()

	// The ticker is a fallback; Add normally wakes the loop directly.
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-r.queue.added:
		case <-ticker.C:
		}

		for {
			if r.stopped.Load() {
				return
			}

			// Acquire a slot before claiming, so claimed tasks never wait.
			select {
			case r.semaphore <- struct{}{}:
			case <-r.stop:
				return
			}

			claimed := r.queue.claim(1)
			if len(claimed) == 0 {
				<-r.semaphore
				break
			}

			r.wg.Add(1)
			go r.executeTask(claimed[0])
		}
	}
}

// executeTask runs a claimed task and records the outcome.
func (r *Runner) executeTask(task *Task) {
	defer r.wg.Done()
	defer func() { <-r.semaphore }()

	var ctx context.Context
	var cancel context.CancelFunc
	if r.opts.TaskTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), r.opts.TaskTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	task.SetCancelFunc(cancel)
	defer cancel()

	// Canceled between claim and SetCancelFunc.
	if task.IsComplete() {
		r.queue.finish(task)
		return
	}

	logger := log.WithFields(log.Fields{
		"task":     task.ID,
		"original": task.OriginalPath,
		"modified": task.ModifiedPath,
	})
	logger.Debug("tasks: started")

	result, err := r.run(ctx, task)
	r.record(ctx, task, result, err)
	r.queue.finish(task)

	logger.WithFields(log.Fields{
		"status":   task.GetStatus(),
		"duration": task.Duration().Round(time.Millisecond),
	}).Debug("tasks: finished")
}

// run reads both inputs and diffs them.
func (r *Runner) run(ctx context.Context, task *Task) (*diff.Diff, error) {
	original, modified, err := fsops.ReadPairLimit(task.OriginalPath, task.ModifiedPath, r.opts.MaxFileSize)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", diff.ErrAborted, err)
	}
	return diff.Compare(ctx, task.ModifiedPath, original, modified)
}

// record maps the outcome onto the task's terminal state.
func (r *Runner) record(ctx context.Context, task *Task, result *diff.Diff, err error) {
	switch {
	case err == nil:
		task.MarkComplete(result)
	case errors.Is(ctx.Err(), context.Canceled):
		task.MarkCanceled()
	case errors.Is(ctx.Err(), context.DeadlineExceeded) && r.opts.TaskTimeout > 0:
		task.SetError(fmt.Errorf("task timeout after %v: %w", r.opts.TaskTimeout, err))
	default:
		task.SetError(err)
	}
}

// =============================================================================
// UTILITY FUNCTIONS
// =============================================================================

// Execute runs a task synchronously, without a queue, and returns its error.
// ctx bounds the work; its cancellation marks the task Canceled and its
// deadline marks it Failed.
func Execute(ctx context.Context, task *Task) error {
	return ExecuteWithOptions(ctx, task, RunnerOptions{})
}

// ExecuteWithOptions is Execute with an explicit timeout and read limit.
// MaxConcurrent is ignored.
func ExecuteWithOptions(ctx context.Context, task *Task, opts RunnerOptions) error {
	runner := NewRunnerWithOptions(NewQueue(0), opts)

	if !task.MarkStarted() {
		return fmt.Errorf("task %s is %s, not queued", task.ID, task.GetStatus())
	}

	var cancel context.CancelFunc
	if opts.TaskTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, opts.TaskTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	task.SetCancelFunc(cancel)
	defer cancel()

	result, err := runner.run(ctx, task)
	runner.record(ctx, task, result, err)
	if err == nil || task.GetStatus() == TaskStatusCanceled {
		return err
	}
	return task.Err()
}
