// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the linediff command line.
//
// The command tree is built with urfave/cli. Every command prints human
// output by default and a JSON envelope with --json.
//
// # Usage
//
//	code := cli.Run(ctx, os.Args, os.Stdout, os.Stderr)
//	os.Exit(code)
//
// # Commands Overview
//
//	diff ORIGINAL MODIFIED   Diff two files, one " ", "-" or "+" record per line
//	index DIR                Index a directory tree (--lazy streams it)
//	batch MANIFEST           Diff many file pairs through the task queue
//	view ORIGINAL MODIFIED   Page through a diff full screen
//	serve                    Serve the diff HTTP API
//	config                   Show, get and set configuration
//	version                  Print build information
//
// # Exit Codes
//
// Errors map to exit codes through GetExitCode: 2 for usage errors, 3 for
// configuration errors, 7 when an input is missing and 8 on timeout.
package cli
