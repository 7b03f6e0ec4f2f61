// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tasks runs file diffs in the background.
//
// A Task names two files. The Runner reads them through fsops, diffs them
// with a per-task timeout and stores the result on the task. Queue keeps
// tasks addressable by ID until they age out of its history.
//
// # Key Types
//
//   - Task: One diff job with status, timing, result and error
//   - Queue: Bounded task store with cancellation and notifications
//   - Runner: Worker pool with timeout and cancellation support
//   - TaskStatus: Queued, Running, Complete, Failed, Canceled
//
// # Usage
//
// Queue work and wait for it:
//
//	queue := tasks.NewQueue(100)
//	runner := tasks.NewRunner(queue)
//	runner.Start()
//	defer runner.Stop()
//
//	task := tasks.NewTask("old/main.go", "new/main.go")
//	if err := queue.Add(task); err != nil {
//	    return err
//	}
//	done, err := queue.Wait(ctx, task.ID)
//	fmt.Println(done.Summary())
//
// Run one task inline:
//
//	err := tasks.Execute(ctx, tasks.NewTask(a, b))
//
// A timed out task is Failed and its error matches diff.ErrAborted.
package tasks
