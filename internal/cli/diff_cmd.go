// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/jeranaias/linediff/internal/config"
	"github.com/jeranaias/linediff/internal/diff"
	"github.com/jeranaias/linediff/internal/fsops"
	"github.com/jeranaias/linediff/internal/tasks"
)

const diffUsage = "linediff diff ORIGINAL MODIFIED"

func diffCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:      "diff",
		Usage:     "compare two text files line by line",
		ArgsUsage: "ORIGINAL MODIFIED",
		Flags: []cli.Flag{
			newJSONFlag(),
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "give up after this long, 0 for never (default diff.timeout_secs)",
			},
			&cli.BoolFlag{
				Name:    "summary",
				Aliases: []string{"s"},
				Usage:   "print only the change counts",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "write the output to `FILE` instead of stdout",
			},
			&cli.Int64Flag{
				Name:  "max-size",
				Usage: "largest input read, in bytes",
				Value: fsops.DefaultMaxFileSize,
			},
		},
		Action: diffCommandAction,
	}
}

func diffCommandAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return NewUsageError("diff", fmt.Sprintf("expected 2 arguments, got %d", cmd.Args().Len()), diffUsage)
	}
	original, modified := cmd.Args().Get(0), cmd.Args().Get(1)

	timeout := config.Global().Diff.Timeout()
	if cmd.IsSet("timeout") {
		timeout = cmd.Duration("timeout")
	}
	opts := tasks.RunnerOptions{
		TaskTimeout: timeout,
		MaxFileSize: cmd.Int64("max-size"),
	}

	log.WithFields(log.Fields{
		"original": original,
		"modified": modified,
		"timeout":  timeout,
	}).Debug("cli: diff")

	run := func() (*diff.Diff, error) {
		return runDiffTask(ctx, original, modified, opts)
	}

	var buf bytes.Buffer
	if cmd.Bool("json") {
		err := OutputJSON(&buf, "diff", func() (interface{}, error) {
			d, err := run()
			if err != nil {
				return nil, err
			}
			return DiffData{
				Original: original,
				Modified: modified,
				Diff:     d,
				Hunks:    d.Hunks(),
				Summary:  summaryLine(d),
			}, nil
		})
		if emitErr := emit(cmd, &buf); emitErr != nil {
			return emitErr
		}
		return err
	}

	d, err := run()
	if err != nil {
		return err
	}
	styled := cmd.String("out") == ""
	renderDiff(&buf, d, cmd.Bool("summary"), styled)
	return emit(cmd, &buf)
}

// renderDiff writes the diff as one record per op: the op's prefix followed
// by the line. With summary set only the counts are written.
func renderDiff(w io.Writer, d *diff.Diff, summary, styled bool) {
	if summary {
		fmt.Fprintln(w, summaryLine(d))
		return
	}
	for _, op := range d.Ops {
		if styled {
			fmt.Fprintln(w, RenderOp(op))
		} else {
			fmt.Fprintln(w, op.Kind.Prefix()+op.Line)
		}
	}
}

func summaryLine(d *diff.Diff) string {
	s := d.Summary()
	if n := len(d.Hunks()); n > 0 {
		s += fmt.Sprintf(" (%d %s)", n, plural(n, "hunk", "hunks"))
	}
	return s
}

// runDiffTask diffs two files through a one-off task, so timeouts and
// cancellation are handled the same way as in batches.
func runDiffTask(ctx context.Context, original, modified string, opts tasks.RunnerOptions) (*diff.Diff, error) {
	task := tasks.NewTask(original, modified)
	if err := tasks.ExecuteWithOptions(ctx, task, opts); err != nil {
		return nil, err
	}
	return task.GetResult(), nil
}
