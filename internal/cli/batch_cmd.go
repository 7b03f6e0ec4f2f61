// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/jeranaias/linediff/internal/config"
	"github.com/jeranaias/linediff/internal/diff"
	"github.com/jeranaias/linediff/internal/fsops"
	"github.com/jeranaias/linediff/internal/tasks"
)

const batchUsage = "linediff batch MANIFEST"

func batchCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:  "batch",
		Usage: "diff every file pair listed in a manifest",
		Description: "Each non-blank manifest line names ORIGINAL and MODIFIED separated by\n" +
			"whitespace. Lines starting with # are comments. Relative paths are resolved\n" +
			"against the manifest's directory.",
		ArgsUsage: "MANIFEST",
		Flags: []cli.Flag{
			newJSONFlag(),
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"j"},
				Usage:   "diffs computed at once (default tasks.max_concurrent)",
			},
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "per-pair timeout, 0 for never (default tasks.timeout_secs)",
			},
		},
		Action: batchCommandAction,
	}
}

// filePair is one manifest entry.
type filePair struct {
	Original string
	Modified string
}

func batchCommandAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return NewUsageError("batch", fmt.Sprintf("expected 1 argument, got %d", cmd.Args().Len()), batchUsage)
	}
	manifest := cmd.Args().First()

	content, err := fsops.ReadText(manifest)
	if err != nil {
		return err
	}
	pairs, err := parseManifest(content, filepath.Dir(manifest))
	if err != nil {
		return err
	}

	cfg := config.Global().Tasks
	opts := tasks.RunnerOptions{
		MaxConcurrent: cfg.MaxConcurrent,
		TaskTimeout:   cfg.Timeout(),
	}
	if cmd.IsSet("concurrency") {
		opts.MaxConcurrent = cmd.Int("concurrency")
	}
	if cmd.IsSet("timeout") {
		opts.TaskTimeout = cmd.Duration("timeout")
	}

	if cmd.Bool("json") {
		var batchErr error
		err := OutputJSON(cmd.Root().Writer, "batch", func() (interface{}, error) {
			results, summary, err := runBatch(ctx, pairs, opts, cfg.MaxQueue)
			if err != nil {
				return nil, err
			}
			infos := make([]tasks.Info, len(results))
			for i, task := range results {
				infos[i] = task.Info()
			}
			batchErr = batchOutcome(results)
			return BatchData{Manifest: manifest, Tasks: infos, Summary: summary}, nil
		})
		if err != nil {
			return err
		}
		if batchErr != nil {
			return reportedError{batchErr}
		}
		return nil
	}

	results, summary, err := runBatch(ctx, pairs, opts, cfg.MaxQueue)
	if err != nil {
		return err
	}
	printBatch(cmd.Root().Writer, results, summary)
	return batchOutcome(results)
}

// runBatch queues every pair, waits for all of them and returns the tasks in
// manifest order. When the queue is bounded, submission waits for earlier
// tasks to finish. If ctx ends, outstanding tasks are canceled.
func runBatch(ctx context.Context, pairs []filePair, opts tasks.RunnerOptions, maxQueue int) ([]*tasks.Task, string, error) {
	queue := tasks.NewQueueWithOptions(len(pairs), maxQueue)
	runner := tasks.NewRunnerWithOptions(queue, opts)

	stopLog := make(chan struct{})
	logDone := make(chan struct{})
	go func() {
		defer close(logDone)
		logNotifications(queue, stopLog)
	}()

	runner.Start()
	defer func() {
		runner.Stop()
		close(stopLog)
		<-logDone
	}()

	submitted := make([]*tasks.Task, 0, len(pairs))
	cancelAll := func() {
		for _, task := range submitted {
			queue.Cancel(task.ID)
		}
	}

	for _, pair := range pairs {
		task := tasks.NewTask(pair.Original, pair.Modified)
		for {
			err := queue.Add(task)
			if err == nil {
				break
			}
			if !errors.Is(err, tasks.ErrQueueFull) {
				cancelAll()
				return nil, "", err
			}
			if !waitForSlot(ctx, submitted) {
				cancelAll()
				return nil, "", ctx.Err()
			}
		}
		submitted = append(submitted, task)
	}

	awaitAll(ctx, submitted, cancelAll)

	// Running tasks report to the queue after their Done closes.
	runner.Stop()
	return submitted, queue.Summary(), nil
}

// awaitAll waits for every task to finish. When ctx ends first, cancel runs
// once and the wait goes on until the canceled tasks close their Done.
func awaitAll(ctx context.Context, submitted []*tasks.Task, cancel func()) {
	canceled := false
	for _, task := range submitted {
		if !canceled {
			select {
			case <-task.Done():
				continue
			case <-ctx.Done():
				cancel()
				canceled = true
			}
		}
		<-task.Done()
	}
}

// waitForSlot blocks until the oldest unfinished task finishes, which lets
// the runner claim a queued one. It reports false when ctx ended first.
func waitForSlot(ctx context.Context, submitted []*tasks.Task) bool {
	for _, task := range submitted {
		if task.IsComplete() {
			continue
		}
		select {
		case <-task.Done():
			return true
		case <-ctx.Done():
			return false
		}
	}
	return ctx.Err() == nil
}

// logNotifications logs finished tasks until stop is closed, then drains
// whatever is still buffered.
func logNotifications(queue *tasks.Queue, stop <-chan struct{}) {
	logOne := func(n tasks.TaskNotification) {
		log.WithFields(log.Fields{
			"task":     n.TaskID,
			"pair":     n.Description,
			"status":   n.Status,
			"duration": n.Duration,
		}).Debug("cli: batch task finished")
	}

	for {
		select {
		case n := <-queue.Notifications():
			logOne(n)
		case <-stop:
			for {
				select {
				case n := <-queue.Notifications():
					logOne(n)
				default:
					return
				}
			}
		}
	}
}

func batchOutcome(results []*tasks.Task) error {
	outcome := &BatchError{Total: len(results)}
	for _, task := range results {
		switch task.GetStatus() {
		case tasks.TaskStatusFailed:
			outcome.Failed++
		case tasks.TaskStatusCanceled:
			outcome.Canceled++
		}
	}
	if outcome.Failed == 0 && outcome.Canceled == 0 {
		return nil
	}
	return outcome
}

func printBatch(w io.Writer, results []*tasks.Task, summary string) {
	for _, task := range results {
		line := fmt.Sprintf("%s %s", RenderTaskStatus(task.GetStatus()), task.Description())
		if d := task.GetResult(); d != nil {
			line += ": " + summaryLine(d)
		} else if msg := task.GetError(); msg != "" {
			line += ": " + msg
		}
		if dur := task.Duration(); dur > 0 {
			line += " " + RenderConditional(DimStyle, "("+formatDurationShort(dur)+")")
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, RenderSeparator(len(summary)))
	fmt.Fprintln(w, summary)
}

// parseManifest reads ORIGINAL MODIFIED pairs, one per line.
func parseManifest(content, baseDir string) ([]filePair, error) {
	var pairs []filePair
	for i, line := range diff.SplitLines(content) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, NewUsageError("batch",
				fmt.Sprintf("manifest line %d: expected ORIGINAL MODIFIED, got %d fields", i+1, len(fields)),
				batchUsage)
		}
		pairs = append(pairs, filePair{
			Original: resolve(baseDir, fields[0]),
			Modified: resolve(baseDir, fields[1]),
		})
	}

	if len(pairs) == 0 {
		return nil, NewUsageError("batch", "manifest lists no file pairs", batchUsage)
	}
	return pairs, nil
}

func resolve(baseDir, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
