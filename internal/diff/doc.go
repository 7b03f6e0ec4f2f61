// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package diff computes line-level differences between two texts.
//
// A diff is an ordered []DiffOp. Each DiffOp is Equal (line in both inputs),
// Delete (original only) or Insert (modified only). The result is minimal: the
// number of Delete and Insert ops is the smallest edit distance between the two
// line sequences. It is also deterministic, including how ties between equally
// short alignments are broken: equal lines are matched as early as possible,
// a deletion is preferred over an insertion when both keep the script
// shortest, and each hunk lists its deletions before its insertions.
//
// Invariants:
//   - concat(Equal, Delete lines) == SplitLines(original)
//   - concat(Equal, Insert lines) == SplitLines(modified)
//
// # Key Types
//
//   - Op: Kind of a diff line (equal, delete, insert)
//   - DiffOp: One classified line
//   - Hunk: Maximal run of changes, with starting line numbers
//   - Diff: File-level result with statistics
//
// # Usage
//
// Compute a diff between two strings:
//
//	ops := diff.ComputeDiff(oldContent, newContent)
//	for _, op := range ops {
//	    fmt.Println(op)
//	}
//
// Bound the work on large inputs:
//
//	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	d, err := diff.Compare(ctx, "main.go", oldContent, newContent)
//	if errors.Is(err, diff.ErrAborted) {
//	    // gave up
//	}
//
// The package holds no state between calls and is safe for concurrent use.
package diff
