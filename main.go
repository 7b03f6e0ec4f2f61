// linediff - A line-level text differ.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"

	"github.com/jeranaias/linediff/internal/cli"
	applog "github.com/jeranaias/linediff/internal/log"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	os.Exit(realMain())
}

func realMain() int {
	// Logging before the config is read only honors LINEDIFF_LOG.
	applog.InitLogger("")
	log.WithField("args", os.Args).Debug("main: args captured")

	// Ctrl-C cancels the running command; index --watch exits cleanly on it.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.Run(ctx, os.Args, os.Stdout, os.Stderr)
}
