// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/jeranaias/linediff/internal/config"
	"github.com/jeranaias/linediff/internal/fsops"
	"github.com/jeranaias/linediff/internal/tasks"
	"github.com/jeranaias/linediff/internal/ui/viewer"
)

const viewUsage = "linediff view ORIGINAL MODIFIED"

func viewCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:      "view",
		Usage:     "page through the diff of two files interactively",
		ArgsUsage: "ORIGINAL MODIFIED",
		Description: "Opens a full screen pager: n/p jump between hunks, q quits.\n" +
			"Without a terminal the diff is printed as by \"linediff diff\".",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Usage:   "give up after this long, 0 for never (default diff.timeout_secs)",
			},
			&cli.Int64Flag{
				Name:  "max-size",
				Usage: "largest input read, in bytes",
				Value: fsops.DefaultMaxFileSize,
			},
		},
		Action: viewCommandAction,
	}
}

func viewCommandAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return NewUsageError("view", fmt.Sprintf("expected 2 arguments, got %d", cmd.Args().Len()), viewUsage)
	}

	opts := tasks.RunnerOptions{
		TaskTimeout: config.Global().Diff.Timeout(),
		MaxFileSize: cmd.Int64("max-size"),
	}
	if cmd.IsSet("timeout") {
		opts.TaskTimeout = cmd.Duration("timeout")
	}

	d, err := runDiffTask(ctx, cmd.Args().Get(0), cmd.Args().Get(1), opts)
	if err != nil {
		return err
	}

	w := cmd.Root().Writer
	if w == os.Stdout && IsStdoutTTY() {
		return viewer.Run(ctx, d, cmd.Root().Reader, w)
	}

	var buf bytes.Buffer
	renderDiff(&buf, d, false, false)
	_, err = w.Write(buf.Bytes())
	return err
}
