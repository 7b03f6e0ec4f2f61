// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package index enumerates and records the files under a directory.
//
// Walk is a lazy traversal: it returns an iter.Seq2 that does no work until
// ranged over and restarts from scratch on every range. PathIndex persists
// the result in SQLite so later runs can list or look up paths without
// touching the tree, and Watcher keeps that table current with fsnotify.
//
// # Key Types
//
//   - Options: Ignore globs and size limit shared by every traversal
//   - PathIndex: SQLite-backed path table
//   - Watcher: File system watcher for incremental updates
//
// # Usage
//
// Stream a tree:
//
//	for path, err := range index.Walk(ctx, root, index.DefaultOptions()) {
//	    if err != nil {
//	        log.WithError(err).Warn("skipped")
//	        continue
//	    }
//	    fmt.Println(path)
//	}
//
// Persist and query:
//
//	idx, err := index.Open(index.DefaultConfig(root))
//	err = idx.Refresh(ctx)
//	paths, err := idx.Paths(ctx)
package index
