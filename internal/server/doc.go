// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the linediff HTTP API.
//
// Small inputs are diffed inline; file pairs on the server are diffed by the
// task queue and polled for.
//
// # Endpoints
//
//   - POST   /v1/diff         - Diff two texts sent in the body
//   - POST   /v1/tasks        - Queue a diff of two files under the root
//   - GET    /v1/tasks        - List queued, running and finished tasks
//   - GET    /v1/tasks/{id}   - One task, with its result once complete
//   - DELETE /v1/tasks/{id}   - Cancel a task
//   - GET    /v1/stats        - Request counters
//   - GET    /health          - Health check
//
// # Security
//
//   - Optional Bearer token, compared in constant time (/health is exempt)
//   - Per-client rate limiting
//   - Request bodies are size-limited
//   - Task paths must stay inside the configured root
//
// # Usage
//
//	srv, err := server.New(server.Options{Addr: "127.0.0.1:8787", Root: "."})
//	if err != nil {
//		return err
//	}
//	return srv.ListenAndServe(ctx)
package server
