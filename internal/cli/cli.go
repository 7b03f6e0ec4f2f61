// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command tree and entry point for linediff.
package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sort"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/jeranaias/linediff/internal/config"
	applog "github.com/jeranaias/linediff/internal/log"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// NewApp builds the linediff command tree. Every call returns fresh flags,
// so an app can be built per run.
func NewApp() *cli.Command {
	app := &cli.Command{
		Name:                  "linediff",
		Usage:                 "line-level text differ",
		Version:               Version,
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "config file (default ~/.linediff/config.toml)",
				Sources: cli.NewValueSourceChain(
					cli.EnvVar("LINEDIFF_CONFIG"),
				),
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable colored output",
			},
		},
		Before: loadConfig,
	}

	app.Commands = append(app.Commands,
		diffCommandBuilder(),
		indexCommandBuilder(),
		batchCommandBuilder(),
		viewCommandBuilder(),
		serveCommandBuilder(),
		configCommandBuilder(),
		versionCommandBuilder(),
	)

	// Sorted flags for the --help text; usage errors exit with ExitUsageError.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
		cmd.OnUsageError = usageError
		for _, sub := range cmd.Commands {
			sub.OnUsageError = usageError
		}
	}
	app.OnUsageError = usageError

	return app
}

// Run executes args (including the program name) and returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := NewApp()
	app.Writer = stdout
	app.ErrWriter = stderr

	err := app.Run(ctx, args)
	if err == nil {
		return ExitSuccess
	}

	log.WithError(err).Debug("cli: command failed")
	var reported reportedError
	if !errors.As(err, &reported) {
		DisplayError(stderr, err)
	}
	return GetExitCode(err)
}

func usageError(_ context.Context, cmd *cli.Command, err error, _ bool) error {
	return NewUsageError(cmd.FullName(), err.Error(), "")
}

// loadConfig runs before every command. The config command tolerates a
// broken file so it can be used to repair it.
func loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("no-color") {
		ForceColorsEnabled(false)
	}

	path := cmd.String("config")
	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromPath(path)
	} else {
		cfg, err = config.Load()
	}

	if err != nil {
		if cmd.Args().First() != "config" {
			return ctx, &ConfigError{Path: path, Err: err}
		}
		log.WithError(err).Warn("cli: using default config")
		cfg = config.Default()
	}

	applog.InitLogger(cfg.Log.Level)
	config.SetGlobal(cfg)
	return ctx, nil
}

// =============================================================================
// SHARED FLAGS AND OUTPUT
// =============================================================================

func newJSONFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "output a JSON envelope",
	}
}

// emit writes buf to the --out file when one is given, else to stdout.
func emit(cmd *cli.Command, buf *bytes.Buffer) error {
	if out := cmd.String("out"); out != "" {
		return writeOutputFile(out, buf.String())
	}
	_, err := cmd.Root().Writer.Write(buf.Bytes())
	return err
}

// =============================================================================
// VERSION
// =============================================================================

func versionCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:   "version",
		Usage:  "print version information",
		Flags:  []cli.Flag{newJSONFlag()},
		Action: versionCommandAction,
	}
}

func versionCommandAction(_ context.Context, cmd *cli.Command) error {
	data := VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	w := cmd.Root().Writer
	if cmd.Bool("json") {
		return NewJSONResponse("version", data).Write(w)
	}

	fmt.Fprintf(w, "%s %s\n", RenderConditional(TitleStyle, "linediff"), data.Version)
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Commit:"), data.GitCommit)
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Built:"), data.BuildDate)
	fmt.Fprintf(w, "%s%s %s\n", RenderLabel("Go:"), data.GoVersion, data.Platform)
	return nil
}
