// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/jeranaias/linediff/internal/config"
	"github.com/jeranaias/linediff/internal/index"
	"github.com/jeranaias/linediff/internal/util"
)

const indexUsage = "linediff index DIR"

func indexCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "index the files under a directory",
		ArgsUsage: "DIR",
		Flags: []cli.Flag{
			newJSONFlag(),
			&cli.StringFlag{
				Name:  "db",
				Usage: "index database `FILE` (default DIR/.linediff/index.db)",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("LINEDIFF_INDEX_DB"),
				),
			},
			&cli.BoolFlag{
				Name:    "lazy",
				Aliases: []string{"l"},
				Usage:   "stream the traversal without persisting it",
			},
			&cli.BoolFlag{
				Name:  "stats",
				Usage: "print index statistics instead of the paths",
			},
			&cli.BoolFlag{
				Name:    "watch",
				Aliases: []string{"w"},
				Usage:   "keep the index current until interrupted (default index.watch)",
			},
		},
		Action: indexCommandAction,
	}
}

func indexCommandAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 1 {
		return NewUsageError("index", fmt.Sprintf("expected 1 argument, got %d", cmd.Args().Len()), indexUsage)
	}
	dir := cmd.Args().First()

	cfg := config.Global()
	opts := index.Options{
		IgnorePatterns: cfg.Index.IgnorePatterns,
		MaxFileSize:    cfg.Index.MaxFileSize,
	}

	if cmd.Bool("lazy") {
		if cmd.Bool("json") {
			return OutputJSON(cmd.Root().Writer, "index", func() (interface{}, error) {
				files, err := index.BuildIndex(ctx, dir, opts)
				if err != nil {
					return nil, err
				}
				return IndexData{Root: dir, Files: files}, nil
			})
		}
		return streamIndex(ctx, cmd.Root().Writer, dir, opts)
	}

	watch := cfg.Index.Watch
	if cmd.IsSet("watch") {
		watch = cmd.Bool("watch")
	}

	icfg := index.DefaultConfig(dir)
	icfg.Options = opts
	icfg.EnableWatch = watch
	icfg.WatchDebounce = cfg.Index.Debounce()
	if db := cmd.String("db"); db != "" {
		icfg.DatabasePath = db
	} else if cfg.Index.DatabasePath != "" {
		icfg.DatabasePath = cfg.Index.DatabasePath
	}

	handler := func() (interface{}, error) {
		return refreshIndex(ctx, cmd, icfg)
	}
	if cmd.Bool("json") {
		return OutputJSON(cmd.Root().Writer, "index", handler)
	}

	data, err := handler()
	if err != nil {
		return err
	}
	printIndex(cmd.Root().Writer, data.(IndexData))
	return nil
}

// refreshIndex rebuilds the persisted index and, when watching, keeps it
// current until ctx ends.
func refreshIndex(ctx context.Context, cmd *cli.Command, icfg *index.Config) (IndexData, error) {
	idx, err := index.Open(icfg)
	if err != nil {
		return IndexData{}, err
	}
	defer idx.Close()

	if err := idx.Refresh(ctx); err != nil {
		return IndexData{}, err
	}

	if icfg.EnableWatch {
		fmt.Fprintf(cmd.Root().ErrWriter, "Watching %s (Ctrl-C to stop)\n", idx.Root())
		<-ctx.Done()
		// Report the final state even though the run was interrupted.
		ctx = context.WithoutCancel(ctx)
	}

	data := IndexData{Root: idx.Root()}
	if cmd.Bool("stats") {
		stats, err := idx.Stats(ctx)
		if err != nil {
			return IndexData{}, err
		}
		data.Stats = &stats
		return data, nil
	}

	data.Files, err = idx.Paths(ctx)
	if err != nil {
		return IndexData{}, err
	}
	return data, nil
}

// streamIndex prints paths as the traversal finds them. Unreadable entries
// are logged and skipped.
func streamIndex(ctx context.Context, w io.Writer, dir string, opts index.Options) error {
	width := GetTerminalWidth()
	for path, err := range index.Walk(ctx, dir, opts) {
		if err != nil {
			if errors.Is(err, index.ErrInvalidPath) || ctx.Err() != nil {
				return err
			}
			log.WithError(err).Warn("cli: skipping unreadable entry")
			continue
		}
		fmt.Fprintln(w, fitPath(path, width))
	}
	return nil
}

func printIndex(w io.Writer, data IndexData) {
	if data.Stats != nil {
		s := data.Stats
		fmt.Fprintln(w, RenderConditional(TitleStyle, "Index"))
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Root:"), s.Root)
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Files:"), humanize.Comma(int64(s.FileCount)))
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Total size:"), humanize.Bytes(uint64(s.TotalSize)))
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Database:"), humanize.Bytes(uint64(s.DatabaseSize)))
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Last indexed:"), humanize.Time(s.LastIndexed))
		return
	}

	width := GetTerminalWidth()
	for _, rel := range data.Files {
		fmt.Fprintln(w, fitPath(rel, width))
	}
}

// fitPath shortens a path from the left for interactive output, keeping the
// file name visible. Piped output is left intact.
func fitPath(path string, width int) string {
	if !IsStdoutTTY() {
		return path
	}
	return util.TruncateLeft(path, width)
}
