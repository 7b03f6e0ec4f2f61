// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package fsops reads and writes the text files that are fed to the differ.
//
// Reads decode a UTF-8 or UTF-16 byte order mark and reject anything that is
// not valid text, so the differ only ever sees well-formed strings. Writes
// are atomic.
//
//	original, modified, err := fsops.ReadPair("old/main.go", "new/main.go")
//	if errors.Is(err, fsops.ErrNotFound) {
//	    ...
//	}
package fsops
