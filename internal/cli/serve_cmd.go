// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"net"

	"github.com/apex/log"
	"github.com/urfave/cli/v3"

	"github.com/jeranaias/linediff/internal/config"
	"github.com/jeranaias/linediff/internal/server"
	"github.com/jeranaias/linediff/internal/tasks"
)

func serveCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the diff HTTP API",
		Description: "Diffs texts posted to /v1/diff and queues file pairs under --root\n" +
			"posted to /v1/tasks. Runs until interrupted.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen `ADDRESS` (default server.addr)",
			},
			&cli.StringFlag{
				Name:  "root",
				Usage: "directory task paths are confined to",
				Value: ".",
			},
			&cli.IntFlag{
				Name:  "rate-limit",
				Usage: "requests per minute per client, 0 for none (default server.rate_limit)",
			},
		},
		Action: serveCommandAction,
	}
}

func serveCommandAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 0 {
		return NewUsageError("serve", "unexpected arguments", "linediff serve [--addr ADDRESS] [--root DIR]")
	}

	cfg := config.Global()
	opts := server.Options{
		Addr:         cfg.Server.Addr,
		Root:         cmd.String("root"),
		APIKey:       cfg.Server.APIKey,
		RateLimit:    cfg.Server.RateLimit,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		DiffTimeout:  cfg.Diff.Timeout(),
		Runner: tasks.RunnerOptions{
			MaxConcurrent: cfg.Tasks.MaxConcurrent,
			TaskTimeout:   cfg.Tasks.Timeout(),
		},
		MaxHistory: cfg.Tasks.MaxHistory,
		MaxQueue:   cfg.Tasks.MaxQueue,
		Version:    Version,
	}
	if cmd.IsSet("addr") {
		opts.Addr = cmd.String("addr")
	}
	if cmd.IsSet("rate-limit") {
		opts.RateLimit = cmd.Int("rate-limit")
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", opts.Addr)
	if err != nil {
		return WrapError(err, "listen")
	}

	auth := "off"
	if opts.APIKey != "" {
		auth = "bearer token"
	}
	fmt.Fprintf(cmd.Root().ErrWriter, "Listening on http://%s (root %s, auth %s)\n", l.Addr(), srv.Root(), auth)
	log.WithField("addr", l.Addr().String()).Debug("cli: serve")

	return srv.Serve(ctx, l)
}
